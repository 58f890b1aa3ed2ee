package adapter

import "context"

// SolveResult is the solver's verdict for one captcha image.
type SolveResult struct {
	Text       string
	OK         bool // false when the solver found no usable candidate
	Confidence float64
}

// CaptchaSolver is the hex port for the pluggable OCR backend. It is a black
// box: fallible, possibly remote, possibly disabled.
type CaptchaSolver interface {
	Enabled() bool
	Solve(ctx context.Context, image []byte) (SolveResult, error)
}
