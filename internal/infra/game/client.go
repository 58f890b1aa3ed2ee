// File: internal/infra/game/client.go
package game

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/ports/adapter"
)

var _ adapter.GameClient = (*Client)(nil)

const (
	errCodeCaptchaTooFrequent = 40101
)

// Client talks to the external game service over its signed HTTP API.
// The service rejects any request whose signature does not match its own
// canonicalization, so every payload goes through signPayload.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	log     *zerolog.Logger
}

func NewClient(cfg config.GameConfig, logger *zerolog.Logger) *Client {
	l := logger.With().Str("component", "GameClient").Logger()
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     &l,
	}
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	ErrCode int             `json:"err_code"`
	Data    json.RawMessage `json:"data"`
}

// post signs fields, issues the request and decodes the envelope.
func (c *Client) post(ctx context.Context, path string, fields map[string]any) (*apiEnvelope, error) {
	fields["time"] = time.Now().UnixMilli()
	fields["sign"] = signPayload(fields, c.secret)

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("game api %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("game api %s: unexpected status %d", path, resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("game api %s: decode: %w", path, err)
	}
	return &env, nil
}

func (c *Client) Login(ctx context.Context, accountID string) (*adapter.PlayerProfile, error) {
	env, err := c.post(ctx, "/player", map[string]any{"fid": accountID})
	if err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("login rejected for %s: %s (err_code=%d)", accountID, env.Msg, env.ErrCode)
	}
	var data struct {
		Nickname    string `json:"nickname"`
		StoveLv     int    `json:"stove_lv"`
		AvatarImage string `json:"avatar_image"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &adapter.PlayerProfile{
		AccountID: accountID,
		Nickname:  data.Nickname,
		StoveLv:   data.StoveLv,
		AvatarURL: data.AvatarImage,
	}, nil
}

func (c *Client) GetCaptcha(ctx context.Context, accountID string) ([]byte, error) {
	env, err := c.post(ctx, "/captcha", map[string]any{"fid": accountID, "init": 0})
	if err != nil {
		return nil, err
	}
	if env.ErrCode == errCodeCaptchaTooFrequent {
		return nil, domain.ErrRateLimited
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("captcha fetch failed: %s (err_code=%d)", env.Msg, env.ErrCode)
	}
	var data struct {
		Img string `json:"img"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode captcha: %w", err)
	}
	return decodeImage(data.Img)
}

func (c *Client) SubmitCode(ctx context.Context, accountID, code, answer string) (adapter.SubmitReply, error) {
	env, err := c.post(ctx, "/gift_code", map[string]any{
		"fid":          accountID,
		"cdk":          code,
		"captcha_code": answer,
	})
	if err != nil {
		return adapter.SubmitReply{}, err
	}
	return adapter.SubmitReply{Message: env.Msg, ErrCode: env.ErrCode}, nil
}

// decodeImage strips an optional data-URI prefix and base64-decodes the rest.
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, "base64,"); i >= 0 {
		s = s[i+len("base64,"):]
	}
	if s == "" {
		return nil, errors.New("empty captcha image")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode captcha image: %w", err)
	}
	return b, nil
}
