// Package eta predicts when an issue will likely be resolved, blending the
// category SLA with the assigned department's live workload and its recent
// resolution history.
package eta

import (
	"log"
	"time"

	"civicpulse/internal/routing"
)

const (
	historySample = 50
	historyWeight = 0.6
	loadWeight    = 0.4
)

// Stats is the slice of the store the estimator reads.
type Stats interface {
	CountOpenByDepartment(code string) (int, error)
	RecentResolvedDurations(code string, limit int) ([]time.Duration, error)
}

type Estimator struct {
	stats Stats
	now   func() time.Time
}

func NewEstimator(stats Stats) *Estimator {
	return &Estimator{stats: stats, now: time.Now}
}

// Estimate returns the predicted resolution time for a fresh issue.
// Store errors are logged and absorbed; the estimate falls back to the
// category SLA so issue creation never fails on a prediction.
func (e *Estimator) Estimate(category, departmentCode string) time.Time {
	base := time.Duration(routing.SLAHours(category)) * time.Hour

	load := time.Duration(0)
	if open, err := e.stats.CountOpenByDepartment(departmentCode); err != nil {
		log.Printf("eta open count failed department=%s err=%v", departmentCode, err)
	} else {
		load = time.Duration(open) * time.Hour
	}

	estimate := base + load
	durations, err := e.stats.RecentResolvedDurations(departmentCode, historySample)
	if err != nil {
		log.Printf("eta history failed department=%s err=%v", departmentCode, err)
	} else if len(durations) > 0 {
		var total time.Duration
		for _, d := range durations {
			total += d
		}
		mean := total / time.Duration(len(durations))
		estimate = time.Duration(historyWeight*float64(mean) + loadWeight*float64(base+load))
	}

	// Clamp so one pathological department never produces an absurd or
	// instant promise.
	if estimate < time.Hour {
		estimate = time.Hour
	}
	if max := 2 * base; estimate > max {
		estimate = max
	}
	return e.now().Add(estimate)
}
