package game

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := zerolog.Nop()
	return NewClient(config.GameConfig{
		BaseURL: srv.URL,
		Secret:  "test-secret",
		Timeout: 5 * time.Second,
	}, &logger)
}

func TestLoginSendsSignedPayload(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// UseNumber keeps numeric fields as their exact wire text, so the
		// recomputed canonical string matches the client's byte for byte.
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "msg": "success",
			"data": map[string]any{"nickname": "lord42", "stove_lv": 30},
		})
	})

	p, err := c.Login(context.Background(), "42")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if p.Nickname != "lord42" || p.StoveLv != 30 {
		t.Errorf("unexpected profile %+v", p)
	}

	sign, _ := got["sign"].(string)
	if len(sign) != 32 {
		t.Fatalf("sign missing or malformed: %q", sign)
	}
	// The signature must match our own canonicalization of the other fields.
	fields := map[string]any{}
	for k, v := range got {
		if k == "sign" {
			continue
		}
		fields[k] = v
	}
	if want := signPayload(fields, "test-secret"); sign != want {
		t.Errorf("sign = %q, want %q", sign, want)
	}
}

func TestGetCaptchaTooFrequent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 1, "msg": "CAPTCHA CHECK TOO FREQUENT.", "err_code": 40101,
		})
	})
	_, err := c.GetCaptcha(context.Background(), "42")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestGetCaptchaDecodesDataURI(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"img": "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
			},
		})
	})
	img, err := c.GetCaptcha(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetCaptcha: %v", err)
	}
	if string(img) != string(raw) {
		t.Errorf("decoded image mismatch: %v", img)
	}
}

func TestSubmitCodePassesReplyThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 1, "msg": "CDK NOT FOUND.", "err_code": 40014,
		})
	})
	reply, err := c.SubmitCode(context.Background(), "42", "ABC123", "x7k2")
	if err != nil {
		t.Fatalf("SubmitCode: %v", err)
	}
	if reply.Message != "CDK NOT FOUND." || reply.ErrCode != 40014 {
		t.Errorf("unexpected reply %+v", reply)
	}
}

func TestTransportErrorSurfacesAsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.SubmitCode(context.Background(), "42", "ABC123", "x"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
