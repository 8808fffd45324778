// Package domain models wildfire risk assessment for named geographic areas.
//
// # Areas
//
// A GeographicArea is the unit of prediction. Its Name is the key shared with
// the remote prediction service and is matched case-insensitively. The
// service echoes the area's display name back in its responses, so
// reconciliation also accepts an exact case-insensitive display-name match.
//
// # Incidents
//
// FireIncident values are supplied by an external feed. The pipeline reads a
// full snapshot at the moment each batch is submitted; incidents are never
// batched and a snapshot is never mutated after it is taken.
//
// # Risk levels
//
// The remote service reports "Low", "Moderate", "High" and "Extreme". These map
// onto RiskLevel case-insensitively; anything else is treated as RiskLow:
//
//	"EXTREME"      → extreme
//	"moderate"     → moderate
//	"catastrophic" → low
package domain
