package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"careai/internal/domain"
)

// Named periods accepted by AnalyticsFilter.Period. Any "<n>d" also parses.
const (
	Period7d  = "7d"
	Period30d = "30d"
	Period90d = "90d"
	PeriodAll = "all"
)

// ParsePeriod converts "<n>d" to a duration. "" and "all" mean no limit and
// return zero.
func ParsePeriod(p string) (time.Duration, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" || p == PeriodAll {
		return 0, nil
	}
	days, err := strconv.Atoi(strings.TrimSuffix(p, "d"))
	if err != nil || !strings.HasSuffix(p, "d") || days <= 0 {
		return 0, domain.NewSubSystemError("analytics", "ParsePeriod", domain.ErrInvalidInput,
			fmt.Sprintf("period %q (want 7d, 30d, 90d or all)", p))
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// window resolves f to an inclusive [since, until] range. Explicit bounds win
// over Period; zero times are open ends.
func window(f domain.AnalyticsFilter, now time.Time) (since, until time.Time, err error) {
	since, until = f.Since, f.Until
	if since.IsZero() {
		d, perr := ParsePeriod(f.Period)
		if perr != nil {
			return since, until, perr
		}
		if d > 0 {
			since = now.Add(-d)
		}
	}
	return since, until, nil
}

// Apply returns the samples matching f. An invalid period is reported and
// the time window is ignored.
func Apply(samples []domain.PerformanceSample, f domain.AnalyticsFilter, now time.Time) ([]domain.PerformanceSample, error) {
	since, until, err := window(f, now)
	out := make([]domain.PerformanceSample, 0, len(samples))
	for _, s := range samples {
		if f.GameType != "" && !strings.EqualFold(s.GameType, f.GameType) {
			continue
		}
		if !since.IsZero() && s.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && s.Timestamp.After(until) {
			continue
		}
		out = append(out, s)
	}
	return out, err
}
