package adapter

import (
	"context"
	"time"
)

// RegistryEntry is one (code, date) pair from the shared external registry.
type RegistryEntry struct {
	Code string
	Date time.Time
}

// SharedRegistryClient is the hex port for the community-shared code registry
// (key-authenticated HTTP service).
type SharedRegistryClient interface {
	// ListCodes fetches the full registry. Malformed entries are not fatal;
	// they are returned separately so the caller can report them.
	ListCodes(ctx context.Context) (entries []RegistryEntry, malformed []string, err error)
	// AddCode pushes a locally validated code. domain.ErrAlreadyExists means a
	// concurrent writer won; domain.ErrRegistryRejected means the registry
	// considers the code invalid, which is authoritative.
	AddCode(ctx context.Context, code string, date time.Time) error
	// RemoveCode deletes an invalidated code from the shared registry.
	RemoveCode(ctx context.Context, code string) error
	// CheckCode reports whether the code already exists remotely.
	CheckCode(ctx context.Context, code string) (bool, error)
}
