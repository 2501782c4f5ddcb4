// Package l2geometry owns Layer 2 (Geometry) of the sonar data model.
//
// Responsibilities: the stateless mapping between polar sensor space
// (range, bearing) and a cartesian raster whose sensor origin sits at the
// bottom-centre pixel, and the mapping from raster pixels back to metric
// world coordinates.
// Key types: Mapper, Size, Sector, WorldPoint.
//
// Conventions: bearing 0 points straight up the raster; positive bearings
// are counter-clockwise, i.e. to the left of the sensor axis. World X is
// forward along the axis and world Y is to the left.
//
// Dependency rule: L2 depends on nothing else in internal/sonar.
package l2geometry
