package results

// Metric counts records passing and failing one status column.
type Metric struct {
	ID       string  `json:"id"`
	Total    int     `json:"total"`
	Failures int     `json:"failures"`
	Passes   int     `json:"passes"`
	PassRate float64 `json:"pass_rate"`
	// Missing marks a target the result has no column for. Nothing was
	// evaluated, so it has no passes and a zero pass rate.
	Missing bool `json:"missing,omitempty"`
}

// Metrics summarises an interpretation per record rather than per row.
type Metrics struct {
	Targets []Metric `json:"targets"`
	Derived []Metric `json:"derived"`
	// OverallPassRate is the share of records with no FAIL in any status
	// column, as a percentage.
	OverallPassRate float64 `json:"overall_pass_rate"`
}

// ComputeMetrics counts every status column on unique record keys.
func ComputeMetrics(in *Interpretation) Metrics {
	total := in.AggregateCount
	m := Metrics{OverallPassRate: passRate(total-in.FailedRecordCount, total)}
	for _, t := range in.Targets {
		if t.Missing {
			m.Targets = append(m.Targets, Metric{ID: t.TargetID, Total: total, Missing: true})
			continue
		}
		m.Targets = append(m.Targets, metric(t.TargetID, total, len(t.FailingKeys)))
	}
	for _, d := range in.Derived {
		m.Derived = append(m.Derived, metric(d.Column, total, len(d.FailingKeys)))
	}
	return m
}

func metric(id string, total, failures int) Metric {
	return Metric{
		ID:       id,
		Total:    total,
		Failures: failures,
		Passes:   total - failures,
		PassRate: passRate(total-failures, total),
	}
}

func passRate(passes, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(passes) / float64(total) * 100
}
