package health

import "strings"

// Classification thresholds
const (
	StableThreshold    = 80.0
	AttentionThreshold = 70.0
)

// Classify maps a percent to a status tier. Each band includes its lower edge.
func Classify(pct float64) Status {
	pct = Clamp(pct)
	switch {
	case pct >= StableThreshold:
		return StatusStable
	case pct >= AttentionThreshold:
		return StatusAttention
	default:
		return StatusCritical
	}
}

// Worst aggregates statuses worst-wins. No statuses, or only unknown ones, is STABLE.
func Worst(statuses ...Status) Status {
	worst := StatusStable
	for _, s := range statuses {
		switch s {
		case StatusCritical:
			return StatusCritical
		case StatusAttention:
			worst = StatusAttention
		}
	}
	return worst
}

// ParseStatus matches s case-insensitively. Unknown values give "".
func ParseStatus(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusStable:
		return StatusStable
	case StatusAttention:
		return StatusAttention
	case StatusCritical:
		return StatusCritical
	default:
		return ""
	}
}

// Bucket returns the coarse streak bucket of s.
func Bucket(s Status) string {
	if s == StatusStable {
		return BucketStable
	}
	return BucketAttention
}
