package model

import (
	"time"
)

type CodeStatus string

const (
	CodeStatusPending   CodeStatus = "pending"
	CodeStatusValidated CodeStatus = "validated"
	CodeStatusInvalid   CodeStatus = "invalid"
)

// GiftCode is one promotional code as tracked by the local registry.
// The identifier is case-sensitive and alphanumeric.
type GiftCode struct {
	Code      string
	Status    CodeStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGiftCode records a code on first sighting, either from local discovery
// or a shared-registry pull. Codes always start out pending.
func NewGiftCode(code string) *GiftCode {
	now := time.Now()
	return &GiftCode{
		Code:      code,
		Status:    CodeStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanTransition reports whether a status change is one of the allowed
// transitions: pending->{validated,invalid}, validated->invalid (re-check
// failure) and invalid->validated (reactivation).
func (c *GiftCode) CanTransition(to CodeStatus) bool {
	switch c.Status {
	case CodeStatusPending:
		return to == CodeStatusValidated || to == CodeStatusInvalid
	case CodeStatusValidated:
		return to == CodeStatusInvalid
	case CodeStatusInvalid:
		return to == CodeStatusValidated
	}
	return false
}
