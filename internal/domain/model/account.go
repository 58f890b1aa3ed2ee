package model

import "time"

// Account is the external service's per-player identifier used to
// authenticate and attempt redemption. Accounts are managed externally;
// this service only reads them.
type Account struct {
	ID        string // external player id
	Name      string
	GroupID   string
	CreatedAt time.Time
}

// Group is a collection of accounts a redemption fans out to.
type Group struct {
	ID         string
	Name       string
	Priority   int // lower runs first; supplied externally
	AutoRedeem bool
	CreatedAt  time.Time
}
