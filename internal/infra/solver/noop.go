package solver

import (
	"context"

	"giftcode-redemption/internal/domain/ports/adapter"
)

var _ adapter.CaptchaSolver = (*Noop)(nil)

// Noop is used when no OCR backend is configured. It reports itself disabled
// so the redemption flow refuses work instead of burning captcha cycles.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) Enabled() bool { return false }

func (Noop) Solve(ctx context.Context, image []byte) (adapter.SolveResult, error) {
	return adapter.SolveResult{OK: false}, nil
}
