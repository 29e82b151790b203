package telemetry

import (
	"context"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ActionStats summarizes the durations of one module/action pair.
type ActionStats struct {
	Module   string  `json:"module"`
	Action   string  `json:"action"`
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	MaxMs    float64 `json:"max_ms"`
}

// FailureRate is Failures/Count.
func (a ActionStats) FailureRate() float64 {
	if a.Count == 0 {
		return 0
	}
	return float64(a.Failures) / float64(a.Count)
}

// Stats summarizes the records matched by f, sorted by module then action.
func (s *Store) Stats(ctx context.Context, f Filter) ([]ActionStats, error) {
	f.Limit = 0
	records, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return Summarize(records), nil
}

// Summarize groups records by module and action.
func Summarize(records []Record) []ActionStats {
	type key struct{ module, action string }
	durations := map[key][]float64{}
	failures := map[key]int{}
	for _, r := range records {
		k := key{r.Module, r.Action}
		durations[k] = append(durations[k], r.DurationMs)
		if r.ExitCode != 0 {
			failures[k]++
		}
	}

	out := make([]ActionStats, 0, len(durations))
	for k, d := range durations {
		slices.Sort(d)
		mean, std := stat.MeanStdDev(d, nil)
		if len(d) < 2 {
			std = 0
		}
		out = append(out, ActionStats{
			Module:   k.module,
			Action:   k.action,
			Count:    len(d),
			Failures: failures[k],
			MeanMs:   mean,
			StdDevMs: std,
			P50Ms:    stat.Quantile(0.5, stat.Empirical, d, nil),
			P95Ms:    stat.Quantile(0.95, stat.Empirical, d, nil),
			MaxMs:    d[len(d)-1],
		})
	}
	slices.SortFunc(out, func(a, b ActionStats) int {
		if a.Module != b.Module {
			if a.Module < b.Module {
				return -1
			}
			return 1
		}
		if a.Action < b.Action {
			return -1
		}
		if a.Action > b.Action {
			return 1
		}
		return 0
	})
	return out
}
