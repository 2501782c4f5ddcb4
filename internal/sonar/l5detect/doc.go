// Package l5detect owns Layer 5 (Detection) of the sonar data model.
//
// Responsibilities: clipping a raster to a physical range band, picking
// the biggest qualifying blob from a thresholded raster, and reporting the
// blob's sensor-facing point in world coordinates.
// Key types: RangeWindow, BlobLocalizer, Detection.
//
// Dependency rule: L5 may depend on L1-L4 and imgproc. No SQL/database
// code is allowed in this package.
package l5detect
