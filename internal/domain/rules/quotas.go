package rules

import "time"

const (
	// FreeMessagesPerDay is the per-identity daily allowance on the free plan.
	FreeMessagesPerDay = 10

	// GlobalDailyCap limits allowed requests per calendar day across all
	// identities, regardless of plan.
	GlobalDailyCap = 1000

	// ProRemainingSentinel is reported as the remaining allowance for pro
	// identities, which are not tracked per message.
	ProRemainingSentinel = 9999

	// FallbackRemaining is reported when the quota store cannot be consulted
	// and the request is allowed through anyway.
	FallbackRemaining = 5
)

// UnknownIPBucket is the shared quota identity for requests whose source IP
// cannot be resolved. All such callers consume from one bucket.
const UnknownIPBucket = "unknown_ip"

// DayKey renders the UTC calendar date used as the quota bucket key.
func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// NextResetAt is the next UTC midnight after now, when daily counters reset.
func NextResetAt(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day()+1, 0, 0, 0, 0, time.UTC)
}
