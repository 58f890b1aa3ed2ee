package adapter

import (
	"context"
)

// PlayerProfile is the slice of the login response the redemption flow needs.
type PlayerProfile struct {
	AccountID string
	Nickname  string
	StoveLv   int
	AvatarURL string
}

// SubmitReply is the raw (message, err_code) pair returned by the code
// submission endpoint. Classification into a canonical outcome happens in the
// use-case layer, not here.
type SubmitReply struct {
	Message string
	ErrCode int
}

// GameClient is the hex port for the external game service. All requests are
// signed; concurrent calls trip the service's rate limiting, so callers must
// go through the serialized work queue.
type GameClient interface {
	// Login authenticates one account and returns its profile.
	Login(ctx context.Context, accountID string) (*PlayerProfile, error)
	// GetCaptcha fetches a captcha challenge image for an authenticated
	// account. A "too frequent" response surfaces as domain.ErrRateLimited,
	// distinct from hard fetch errors.
	GetCaptcha(ctx context.Context, accountID string) ([]byte, error)
	// SubmitCode submits a solved captcha answer together with the gift code.
	SubmitCode(ctx context.Context, accountID, code, answer string) (SubmitReply, error)
}
