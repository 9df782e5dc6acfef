// Package nwm models National Water Model (NWM) channel output data.
//
// # Data Source
//
// The NWM is NOAA's continental hydrologic model. Every model cycle it writes
// channel output files to the NOMADS archive, one file per (product, cycle,
// forecast hour, domain), under date-stamped directories:
//
//	nwm.20260105/short_range/nwm.t06z.short_range.channel_rt.f012.conus.parquet
//
// The archive mirror consumed here serves the channel files in their columnar
// rendition: a feature_id key column, one float column per output variable,
// and a reference_time file-metadata entry carrying the cycle as RFC 3339.
//
// # Products
//
// The catalog is fixed and closed. Each product belongs to one of three
// time-semantics classes that determine how file timestamps relate to the
// cycle:
//
//	analysis_assim        snapshot  hourly cycles, single tm00 file, carries nudge
//	analysis_assim_no_da  snapshot  one cycle per day (00z), no assimilation
//	short_range           forecast  hourly cycles, f001..f018
//	medium_range          forecast  cycles 00/06/12/18z, f003..f240 in steps of 3
//
// Snapshot files are valid exactly at cycle time and use the "tm00" position
// marker. Forecast files are valid at cycle time plus the forecast-hour
// offset and use a zero-padded "fNNN" marker. The medium-range file kind is
// channel_rt_1: member 1, the deterministic member of the ensemble.
//
// # Variables
//
// Channel files carry streamflow (m^3/s), velocity (m/s), and the three
// runoff component flows qSfcLatRunoff, qBucket, and qBtmVertRunoff. The
// data-assimilated analysis additionally carries nudge, the adjustment the
// assimilation applied to streamflow. Cells the model did not produce arrive
// as nulls and are represented as NaN in [WideTable] columns.
//
// # Feature IDs
//
// Every row is keyed by a feature ID from the NHDPlus reach (COMID) space,
// around 2.7 million reaches for the conus domain. Each spatial domain
// (conus, hawaii, puertorico) occupies its own numeric band, which the
// validator uses to catch files built for the wrong domain.
//
// # Time Handling
//
// Cycle times are UTC throughout. A cycle arriving without a zone marker is
// taken as UTC; a zoned cycle is converted, never reinterpreted. Records are
// normalized by [Normalize], which resolves each product's time class and
// pivots wide rows into one [CanonicalRecord] per non-missing cell. A missing
// cell produces no record at all: downstream consumers must read absence as
// "no reading", not "reading was zero".
package nwm
