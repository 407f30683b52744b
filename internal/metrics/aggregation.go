package metrics

import "sort"

// Summary aggregates a set of records.
type Summary struct {
	Calls         int     `json:"calls" yaml:"calls"`
	SuccessCount  int     `json:"success_count" yaml:"success_count"`
	ErrorCount    int     `json:"error_count" yaml:"error_count"`
	CacheHits     int     `json:"cache_hits" yaml:"cache_hits"`
	RetryAttempts int     `json:"retry_attempts" yaml:"retry_attempts"`
	Usage         Usage   `json:"usage" yaml:"usage"`
	TotalCostUSD  float64 `json:"total_cost_usd" yaml:"total_cost_usd"`

	// Latency in milliseconds. Percentiles skip cache hits.
	TotalLatencyMs int64   `json:"total_latency_ms" yaml:"total_latency_ms"`
	LatencyP50     float64 `json:"latency_p50_ms" yaml:"latency_p50_ms"`
	LatencyP95     float64 `json:"latency_p95_ms" yaml:"latency_p95_ms"`
	LatencyMax     float64 `json:"latency_max_ms" yaml:"latency_max_ms"`
}

// CacheHitRate returns hits / calls, or 0 when empty.
func (s Summary) CacheHitRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.Calls)
}

// Summary returns totals over every record.
func (a *Accumulator) Summary() Summary {
	return summarize(a.Records())
}

// StageSummaries returns a Summary per stage.
func (a *Accumulator) StageSummaries() map[string]Summary {
	byStage := make(map[string][]Record)
	for _, r := range a.Records() {
		byStage[r.Stage] = append(byStage[r.Stage], r)
	}
	out := make(map[string]Summary, len(byStage))
	for stage, recs := range byStage {
		out[stage] = summarize(recs)
	}
	return out
}

func summarize(records []Record) Summary {
	s := Summary{Calls: len(records)}
	var latencies []float64

	for _, r := range records {
		if r.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		if r.CacheHit {
			s.CacheHits++
		} else if r.LatencyMs > 0 {
			latencies = append(latencies, float64(r.LatencyMs))
		}
		s.RetryAttempts += r.RetryAttempts
		s.Usage = s.Usage.Add(r.Usage)
		s.TotalCostUSD += r.CostUSD
		s.TotalLatencyMs += r.LatencyMs
	}

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		s.LatencyMax = latencies[len(latencies)-1]
		s.LatencyP50 = percentile(latencies, 50)
		s.LatencyP95 = percentile(latencies, 95)
	}
	return s
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
