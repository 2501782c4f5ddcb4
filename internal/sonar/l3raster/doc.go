// Package l3raster owns Layer 3 (Raster) of the sonar data model.
//
// Responsibilities: the cartesian intensity raster and its validity mask,
// the persistent ScanAccumulator that paints successive polar frames into
// them, and one-shot polar conversion for heads that image the whole
// sector every ping.
// Key types: Raster, Mask, ScanAccumulator, AccumulatorConfig.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3raster
