package deals

// Overall recommendations
const (
	RecommendationPass             = "PASS"
	RecommendationFail             = "FAIL"
	RecommendationInsufficientData = "INSUFFICIENT_DATA"
)

// failThreshold is the fail rate, in percent, at which the portfolio is judged a fail.
const failThreshold = 60

type Statistics struct {
	TotalDeals            int     `json:"totalDeals"`
	PassDeals             int     `json:"passDeals"`
	FailDeals             int     `json:"failDeals"`
	PassRate              float64 `json:"passRate"`
	FailRate              float64 `json:"failRate"`
	AverageMetrics        Metrics `json:"averageMetrics"`
	OverallRecommendation string  `json:"overallRecommendation"`
}

// Summarize aggregates saved deals. Decisions and metrics are read from each deal's dealData;
// averages only count deals that carry metrics.
func Summarize(deals []SavedDeal) Statistics {
	if len(deals) == 0 {
		return Statistics{OverallRecommendation: RecommendationInsufficientData}
	}

	stats := Statistics{TotalDeals: len(deals)}
	var sum Metrics
	withMetrics := 0
	for _, deal := range deals {
		switch deal.DealData.Decision {
		case DecisionPass:
			stats.PassDeals++
		case DecisionFail:
			stats.FailDeals++
		}
		if m := deal.DealData.Metrics; m != nil {
			withMetrics++
			sum.CapRate += m.CapRate
			sum.CoCReturn += m.CoCReturn
			sum.IRR += m.IRR
			sum.DSCR += m.DSCR
			sum.PricePerUnit += m.PricePerUnit
			sum.ExpenseRatio += m.ExpenseRatio
		}
	}

	total := float64(stats.TotalDeals)
	stats.PassRate = float64(stats.PassDeals) / total * 100
	stats.FailRate = float64(stats.FailDeals) / total * 100

	if withMetrics > 0 {
		n := float64(withMetrics)
		stats.AverageMetrics = Metrics{
			CapRate:      sum.CapRate / n,
			CoCReturn:    sum.CoCReturn / n,
			IRR:          sum.IRR / n,
			DSCR:         sum.DSCR / n,
			PricePerUnit: sum.PricePerUnit / n,
			ExpenseRatio: sum.ExpenseRatio / n,
		}
	}

	stats.OverallRecommendation = RecommendationPass
	if stats.FailRate >= failThreshold {
		stats.OverallRecommendation = RecommendationFail
	}
	return stats
}
