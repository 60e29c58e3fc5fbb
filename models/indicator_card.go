package models

// IndicatorCard is the derived summary attached to a successful direct fetch:
// the current value plus simple differences against the stored comparison
// baselines. Deltas are current minus comparison; a missing baseline leaves
// the delta nil, never estimated.
type IndicatorCard struct {
	Company      string   `json:"company"`
	Time         string   `json:"time"` // e.g. "2024Q3"
	Metric       string   `json:"metric"`
	Unit         string   `json:"unit,omitempty"`
	Current      float64  `json:"current"`
	CurrentStr   string   `json:"current_str"`
	YoYDelta     *float64 `json:"yoy_delta"`
	YoYDeltaStr  *string  `json:"yoy_delta_str"`
	QoQDelta     *float64 `json:"qoq_delta"`
	QoQDeltaStr  *string  `json:"qoq_delta_str"`
	TargetGap    *float64 `json:"target_gap"` // positive means above target
	TargetGapStr *string  `json:"target_gap_str"`
	Refs         CardRefs `json:"refs"`
}

// CardRefs carries the raw comparison values backing the card's deltas.
type CardRefs struct {
	BaselineTarget     *float64 `json:"baseline_target"`
	BaselineTargetStr  *string  `json:"baseline_target_str"`
	LastYearValue      *float64 `json:"last_year_value"`
	LastYearValueStr   *string  `json:"last_year_value_str"`
	LastPeriodValue    *float64 `json:"last_period_value"`
	LastPeriodValueStr *string  `json:"last_period_value_str"`
	Source             string   `json:"source,omitempty"`
}

// BuildIndicatorCard derives a card from a fact row.
func BuildIndicatorCard(fact *MetricFact, unit string) *IndicatorCard {
	card := &IndicatorCard{
		Company:    fact.CompanyName,
		Time:       Period{Year: fact.Year, Quarter: fact.Quarter}.Label(),
		Metric:     fact.MetricName,
		Unit:       unit,
		Current:    fact.Value,
		CurrentStr: FormatNumber(fact.Value),
		YoYDelta:   delta(fact.Value, fact.LastYearValue),
		QoQDelta:   delta(fact.Value, fact.LastPeriodValue),
		TargetGap:  delta(fact.Value, fact.BaselineTarget),
		Refs: CardRefs{
			BaselineTarget:     fact.BaselineTarget,
			BaselineTargetStr:  FormatNumberPtr(fact.BaselineTarget),
			LastYearValue:      fact.LastYearValue,
			LastYearValueStr:   FormatNumberPtr(fact.LastYearValue),
			LastPeriodValue:    fact.LastPeriodValue,
			LastPeriodValueStr: FormatNumberPtr(fact.LastPeriodValue),
			Source:             fact.Source,
		},
	}
	card.YoYDeltaStr = FormatNumberPtr(card.YoYDelta)
	card.QoQDeltaStr = FormatNumberPtr(card.QoQDelta)
	card.TargetGapStr = FormatNumberPtr(card.TargetGap)
	return card
}

func delta(current float64, baseline *float64) *float64 {
	if baseline == nil {
		return nil
	}
	d := current - *baseline
	return &d
}
