package model

import "time"

// RedemptionRecord is the persisted terminal outcome of one (account, code)
// pair. Its presence short-circuits any further captcha work for the pair.
type RedemptionRecord struct {
	AccountID  string
	Code       string
	Outcome    Outcome
	RedeemedAt time.Time
}

func NewRedemptionRecord(accountID, code string, outcome Outcome) *RedemptionRecord {
	return &RedemptionRecord{
		AccountID:  accountID,
		Code:       code,
		Outcome:    outcome,
		RedeemedAt: time.Now(),
	}
}
