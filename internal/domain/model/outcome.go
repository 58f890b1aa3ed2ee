package model

// Outcome is the canonical classification of one redemption attempt.
// Every response from the external service maps onto exactly one of these.
type Outcome string

const (
	// success family
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeReceived         Outcome = "RECEIVED"
	OutcomeSameTypeExchange Outcome = "SAME_TYPE_EXCHANGE"

	// hard-invalid family: the code itself is dead for everyone
	OutcomeTimeError   Outcome = "TIME_ERROR"
	OutcomeCdkNotFound Outcome = "CDK_NOT_FOUND"
	OutcomeUsageLimit  Outcome = "USAGE_LIMIT"

	// ineligible family: the code stays valid, this account alone fails
	OutcomeTooSmallSpendMore Outcome = "TOO_SMALL_SPEND_MORE"
	OutcomeTooPoorSpendMore  Outcome = "TOO_POOR_SPEND_MORE"

	// retryable family
	OutcomeTimeoutRetry       Outcome = "TIMEOUT_RETRY"
	OutcomeCaptchaInvalid     Outcome = "CAPTCHA_INVALID"
	OutcomeMaxCaptchaAttempts Outcome = "MAX_CAPTCHA_ATTEMPTS_REACHED"
	OutcomeCaptchaTooFrequent Outcome = "CAPTCHA_TOO_FREQUENT"
	OutcomeConnectionError    Outcome = "CONNECTION_ERROR"

	// fatal: protocol mismatch, surfaced to the operator and never retried silently
	OutcomeSignError Outcome = "SIGN_ERROR"

	// account-local failures
	OutcomeLoginFailed        Outcome = "LOGIN_FAILED"
	OutcomeUnknownAPIResponse Outcome = "UNKNOWN_API_RESPONSE"
)

func (o Outcome) IsSuccess() bool {
	return o == OutcomeSuccess || o == OutcomeReceived || o == OutcomeSameTypeExchange
}

func (o Outcome) IsHardInvalid() bool {
	return o == OutcomeTimeError || o == OutcomeCdkNotFound || o == OutcomeUsageLimit
}

func (o Outcome) IsIneligible() bool {
	return o == OutcomeTooSmallSpendMore || o == OutcomeTooPoorSpendMore
}

func (o Outcome) IsRetryable() bool {
	switch o {
	case OutcomeTimeoutRetry, OutcomeCaptchaInvalid, OutcomeMaxCaptchaAttempts,
		OutcomeCaptchaTooFrequent, OutcomeConnectionError:
		return true
	}
	return false
}

func (o Outcome) IsFatal() bool { return o == OutcomeSignError }

// IsTerminal reports whether the outcome ends further attempts for the
// account+code pair within a batch. Retryable outcomes are parked instead.
func (o Outcome) IsTerminal() bool {
	return o.IsSuccess() || o.IsHardInvalid() || o.IsIneligible() ||
		o == OutcomeLoginFailed || o == OutcomeUnknownAPIResponse
}

// IsCacheable reports whether the outcome may be persisted as a
// RedemptionRecord. Only success-family and hard-invalid-family results are
// ever written; transient, captcha and account-local outcomes are not.
func (o Outcome) IsCacheable() bool {
	return o.IsSuccess() || o.IsHardInvalid()
}
