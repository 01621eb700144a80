package gaf

import "context"

// Source abstracts the upstream backend publishing forecasts and LSALT grids.
type Source interface {
	FetchForecast(ctx context.Context, region Region, period Period) (Forecast, error)
	FetchGrid(ctx context.Context, region Region) ([]GridCell, error)
}

// ForecastStore is the contract the in-memory forecast store must satisfy.
type ForecastStore interface {
	Put(region Region, forecast Forecast)
	Get(region Region, from string) (Forecast, error)
	ValidityWindows() []ValidityWindow
}
