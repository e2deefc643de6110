// Package domain models daily hydrological series built from river-level and
// rainfall telemetry, and the lag analysis between them.
//
// # Data Sources
//
// River level comes from ANA (Agência Nacional de Águas) telemetry for the
// Cais Mauá station (66900000) on the Guaíba. Rainfall comes from the INMET
// automatic station A801 (Porto Alegre, Jardim Botânico). Both are sampled
// irregularly: river level roughly every 15 minutes, rainfall hourly.
//
// # Source Conventions
//
// River telemetry export:
//
//	"<dd/mm/yyyy HH:MM>","<value> m"  →  e.g. "03/05/2024 14:15","5,33 m"
//	Decimal comma, trailing unit token. Values that do not parse are kept as
//	absent observations rather than zero.
//
// INMET station CSV:
//
//	Separator ';', latin1 encoded, 8 metadata lines before the header.
//	"Data" is yyyy/mm/dd and "Hora UTC" is an hour code such as "1300 UTC".
//	Hour codes are reduced to their digits, zero-padded to four characters and
//	split into HH:MM: "900 UTC" → "0900" → "09:00".
//
// ANA telemetry CSV:
//
//	Separator ';', 13 metadata lines, "Data" dd/mm/yyyy plus "Hora" HH:MM:SS.
//	"Nivel_1" is in centimetres and is scaled to metres.
//
// No timezone conversion is performed. Timestamps are read as civil time in
// the source's own convention and grouped by that calendar date.
//
// # Pipeline Semantics
//
// The four stages are pure functions:
//
//	Parse     raw table + schema   → observations (dropped rows counted)
//	Resample  observations + agg   → one value per calendar day (sum or mean)
//	Align     daily series + fills → union date axis, per-field fill, then a
//	                                 completeness filter on required fields
//	AnalyzeLag dataset + fields    → Pearson r per lag, best lag
//
// Filling and dropping are separate steps. A missing rainfall day becomes zero
// only when the rainfall field is configured with [FillZero].
//
// # Lag Definition
//
// For lag k the accumulated driver on date d is the sum of the driver over the
// k calendar days d-k … d-1. The current day is excluded. Dates whose lookback
// window is not fully present are left out of that lag's correlation.
package domain
