// File: internal/infra/registry/client.go
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/ports/adapter"
)

var _ adapter.SharedRegistryClient = (*Client)(nil)

const dateLayout = "2006-01-02"

// Client talks to the community-shared code registry. Every request carries
// the API key; the server answers 429/5xx under load, which callers treat as
// a shared-backoff trigger.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zerolog.Logger
}

func NewClient(cfg config.RegistryConfig, logger *zerolog.Logger) *Client {
	l := logger.With().Str("component", "RegistryClient").Logger()
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     &l,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry %s %s: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, domain.ErrRateLimited
	}
	return resp, nil
}

// ListCodes fetches the full (code, date) list. Entries with an empty code or
// an unparseable date are rejected and returned separately; they never abort
// the pull.
func (c *Client) ListCodes(ctx context.Context) ([]adapter.RegistryEntry, []string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/codes", nil)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("registry list: unexpected status %d", resp.StatusCode)
	}

	var raw []struct {
		Code string `json:"code"`
		Date string `json:"date"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("registry list: decode: %w", err)
	}

	entries := make([]adapter.RegistryEntry, 0, len(raw))
	var malformed []string
	for _, e := range raw {
		if e.Code == "" {
			malformed = append(malformed, fmt.Sprintf("(empty code, date=%q)", e.Date))
			continue
		}
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			malformed = append(malformed, fmt.Sprintf("%s (bad date %q)", e.Code, e.Date))
			continue
		}
		entries = append(entries, adapter.RegistryEntry{Code: e.Code, Date: d})
	}
	return entries, malformed, nil
}

func (c *Client) AddCode(ctx context.Context, code string, date time.Time) error {
	resp, err := c.do(ctx, http.MethodPost, "/codes", map[string]string{
		"code": code,
		"date": date.Format(dateLayout),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return domain.ErrAlreadyExists
	case http.StatusUnprocessableEntity:
		// The registry knows the code is invalid; that verdict is authoritative.
		return domain.ErrRegistryRejected
	default:
		return fmt.Errorf("registry add %s: unexpected status %d", code, resp.StatusCode)
	}
}

func (c *Client) RemoveCode(ctx context.Context, code string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/codes/"+url.PathEscape(code), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		// Already gone counts as removed.
		return nil
	}
	return fmt.Errorf("registry remove %s: unexpected status %d", code, resp.StatusCode)
}

func (c *Client) CheckCode(ctx context.Context, code string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/codes/"+url.PathEscape(code), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("registry check %s: unexpected status %d", code, resp.StatusCode)
	}
}
