package metrics

// CostByStage returns cost breakdown by stage.
func (a *Accumulator) CostByStage() map[string]float64 {
	return a.costBy(func(r Record) string { return r.Stage })
}

// CostByModel returns cost breakdown by model.
func (a *Accumulator) CostByModel() map[string]float64 {
	return a.costBy(func(r Record) string { return r.Model })
}

// CostByProvider returns cost breakdown by provider.
func (a *Accumulator) CostByProvider() map[string]float64 {
	return a.costBy(func(r Record) string { return r.Provider })
}

func (a *Accumulator) costBy(key func(Record) string) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, r := range a.Records() {
		breakdown[key(r)] += r.CostUSD
	}
	return breakdown
}
