// Package domain turns raw rain-gauge readings into incremental, time-aggregated
// precipitation records and storm statistics.
//
// # Data Sources
//
// Readings come from several gauge networks that each publish one table in the
// study database. The networks disagree on column names and on whether
// precipitation is reported as a running total or per interval:
//
//	vab   City of Virginia Beach gauges, incremental depth per reading.
//	hrsd  Hampton Roads Sanitation District gauges, incremental, only a subset
//	      of stations lies inside the study area.
//	wu    Weather Underground personal stations. The raw table reports running
//	      totals and names the station identifier "site_code"; its own
//	      "site_name" column is a free-text label and is discarded.
//
// Every table is mapped onto the canonical [Observation] shape by [Normalize].
//
// # Cumulative Readings
//
// Tipping-bucket stations report a running total that resets periodically
// (midnight, power loss, manual reset). [MakeIncremental] differences
// consecutive totals. A decrease marks the preceding reading as a reset and it
// is recorded as a [QuarantineRecord] for the audit log. Two reset policies
// exist because the historical analyses disagree:
//
//	ResetCarry   emit the post-reset total as the step's increment.
//	ResetStrict  emit zero, and also treat a non-positive predecessor as a reset.
//
// # Time Handling
//
// Source timestamps are naive wall-clock times in the study's time zone. They
// are interpreted in that zone and bucketed by wall clock, so 15-minute and
// hourly buckets line up with local clock boundaries and a calendar [Date] is
// midnight to midnight local time.
//
// # Missing Data
//
// A missing value is never zero. NaN precipitation marks missing readings and
// propagates through bucket sums. Summary tables carry an explicit [Cell] with
// a validity flag; sites absent from a column are missing, not zero.
//
// # Storm Windows
//
// The storm window of a day is the span of 15-minute buckets whose cumulative
// rainfall fraction lies strictly between trim and 1-trim (0.025 by default),
// which strips the light drizzle at either end of an event. See
// [DetectStormWindow].
package domain
