package metrics

import "math/rand"

// QualityMetrics carries demo quality figures for a team. These are NOT
// derived from real data: no defect or rework tracking exists upstream, so
// the values are drawn from fixed ranges and labeled as simulated. Replacing
// them with a real formula is a product decision, not a bug fix.
type QualityMetrics struct {
	BugRate              float64 `json:"bug_rate"`              // [0, 5)
	ReworkPercentage     float64 `json:"rework_percentage"`     // [0, 15)
	CustomerSatisfaction float64 `json:"customer_satisfaction"` // [4, 5)
	Simulated            bool    `json:"simulated"`
}

// SimulatedQuality draws a set of placeholder quality metrics from r.
func SimulatedQuality(r *rand.Rand) QualityMetrics {
	return QualityMetrics{
		BugRate:              r.Float64() * 5,
		ReworkPercentage:     r.Float64() * 15,
		CustomerSatisfaction: 4 + r.Float64(),
		Simulated:            true,
	}
}
