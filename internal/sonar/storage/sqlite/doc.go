// Package sqlite contains the SQLite repositories for sonar runs and the
// detections they produce.
//
// All database reads and writes for the sonar pipeline belong here rather
// than in the layer packages (L1-L5), which stay free of SQL. The schema is
// versioned with golang-migrate; the migrations are embedded in the binary.
package sqlite
