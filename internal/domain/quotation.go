package domain

import "time"

// Quotation is a single price observation from vesper_quotations.
type Quotation struct {
	ProductID    int64
	DataSourceID int64
	DataSeriesID int64
	Price        float64
	Currency     string
	Date         time.Time
}

// Forecast is a forecast value for a data series.
type Forecast struct {
	DataSeriesID int64
	Value        float64
	TargetDate   time.Time
	CreatedAt    time.Time
}

// MarketChange compares the two most recent quotations of a data series.
type MarketChange struct {
	DataSeriesID  int64
	Currency      string
	LatestPrice   float64
	LatestDate    time.Time
	PreviousPrice *float64 // nil when the series has a single quotation
	PreviousDate  *time.Time
	ChangePct     float64 // (latest - previous) / previous * 100, 0 without previous
}
