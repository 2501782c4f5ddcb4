// Package l4denoise owns Layer 4 (Denoise) of the sonar data model.
//
// Responsibilities: per-position recursive least-squares smoothing of bin
// or pixel series (infinite, sliding and adaptive windows), three-frame
// suppression of isolated speckle, and removal of left/right symmetric
// common-mode noise from cartesian rasters.
// Key types: RLS, SparsenessFilter, SymmetricSuppressor.
//
// Dependency rule: L4 may depend on L1-L3 and imgproc, but never on L5+.
// All filters are owned by a single pipeline and are not safe for
// concurrent use.
package l4denoise
