package budget

// Budget is a snapshot of one daily request cap.
type Budget struct {
	limit     int
	used      int
	remaining int
	resetsAt  int64 // unix millis, converted to ISO 8601 at transport layer
}

// New creates a Budget snapshot. A limit of 0 means unlimited; remaining is then -1.
func New(limit, used int, resetsAt int64) Budget {
	remaining := -1
	if limit > 0 {
		remaining = max(limit-used, 0)
	}
	return Budget{limit: limit, used: used, remaining: remaining, resetsAt: resetsAt}
}

// Limit returns the request cap (0 when unlimited).
func (b Budget) Limit() int { return b.limit }

// Used returns requests spent in the period.
func (b Budget) Used() int { return b.used }

// Remaining returns requests left, or -1 when unlimited.
func (b Budget) Remaining() int { return b.remaining }

// Unlimited reports whether the cap is disabled.
func (b Budget) Unlimited() bool { return b.limit <= 0 }

// IsExhausted reports whether the cap is reached.
func (b Budget) IsExhausted() bool { return b.limit > 0 && b.remaining == 0 }

// ResetsAt returns the reset timestamp (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }
