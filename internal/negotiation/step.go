package negotiation

import (
	"dairy-market-lab/internal/domain"
)

// priceStepMultiplier scales the historical mean step per strategy.
var priceStepMultiplier = map[domain.Strategy]float64{
	domain.StrategyAggressive:   1.5,
	domain.StrategyNeutral:      1.0,
	domain.StrategyConservative: 0.5,
}

// escalationFraction is the share of the price step applied per round in ModeEscalate.
var escalationFraction = map[domain.Strategy]float64{
	domain.StrategyAggressive:   1.0,
	domain.StrategyNeutral:      0.5,
	domain.StrategyConservative: 0.25,
}

// CalculatePriceStep averages StepChangeCounterOffers across the history
// table and scales the result by strategy. The value is fixed for a session.
func CalculatePriceStep(history []*domain.MarketDataRow, s domain.Strategy) (float64, error) {
	s, err := domain.ParseStrategy(string(s))
	if err != nil {
		return 0, err
	}
	mult := priceStepMultiplier[s]
	if len(history) == 0 {
		return 0, &domain.InvalidInputError{Field: "market_data", Reason: "no history rows"}
	}

	sum := 0.0
	for _, row := range history {
		sum += row.StepChangeCounterOffers
	}

	return sum / float64(len(history)) * mult, nil
}
