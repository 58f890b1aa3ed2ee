// File: internal/infra/solver/http_solver.go
package solver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain/ports/adapter"
)

var _ adapter.CaptchaSolver = (*HTTPSolver)(nil)

// HTTPSolver delegates captcha recognition to an external OCR service
// (ddddocr-style HTTP wrapper). The service is a black box: it returns a
// candidate string and a confidence; anything below the configured floor is
// treated as "no usable candidate".
type HTTPSolver struct {
	url           string
	enabled       bool
	minConfidence float64
	http          *http.Client
	log           *zerolog.Logger
}

func NewHTTPSolver(cfg config.SolverConfig, logger *zerolog.Logger) *HTTPSolver {
	l := logger.With().Str("component", "CaptchaSolver").Logger()
	return &HTTPSolver{
		url:           cfg.URL,
		enabled:       cfg.Enabled && cfg.URL != "",
		minConfidence: cfg.MinConfidence,
		http:          &http.Client{Timeout: cfg.Timeout},
		log:           &l,
	}
}

func (s *HTTPSolver) Enabled() bool { return s.enabled }

func (s *HTTPSolver) Solve(ctx context.Context, image []byte) (adapter.SolveResult, error) {
	payload, _ := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return adapter.SolveResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return adapter.SolveResult{}, fmt.Errorf("solver: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return adapter.SolveResult{}, fmt.Errorf("solver: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Text       string  `json:"text"`
		Success    bool    `json:"success"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.SolveResult{}, fmt.Errorf("solver: decode: %w", err)
	}

	res := adapter.SolveResult{
		Text:       strings.TrimSpace(out.Text),
		OK:         out.Success,
		Confidence: out.Confidence,
	}
	if res.Text == "" || res.Confidence < s.minConfidence {
		res.OK = false
	}
	s.log.Debug().Bool("ok", res.OK).Float64("confidence", res.Confidence).Msg("captcha solved")
	return res, nil
}
