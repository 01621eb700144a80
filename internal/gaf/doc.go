// Package gaf models the Graphical Area Forecast (GAF) documents and Lowest
// Safe Altitude (LSALT) grids published by the upstream backend.
//
// # Regions and periods
//
// Australia is split into ten GAF areas (WA-N, WA-S, NT, QLD-N, QLD-S, SA,
// NSW-W, NSW-E, VIC, TAS). Each publishes a "current" and a "next" forecast.
// Documents are identified by region and the ISO-8601 start of their validity
// window, so older and newer documents for the same region can coexist.
//
// # Areas
//
// A forecast holds major areas ("A", "B", ...) each with optional sub-areas
// ("A1", "B2", ...). Every area carries a boundary ring of [lon, lat] points
// and a day cloud base in feet AMSL. An absent cloud base, or the sentinel
// 999999, means no ceiling.
//
// # LSALT grid
//
// Each region has a static grid of 0.5 x 0.5 degree cells tagged with the
// lowest safe altitude in hundreds of feet.
package gaf
