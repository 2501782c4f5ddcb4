// Package l1frames owns Layer 1 (Frames) of the sonar data model.
//
// Responsibilities: the Frame record delivered by a sonar head, frame
// validation, and the ordered Source interface that feeds a pipeline.
// Key types: Frame, Source, SliceSource, SyntheticScanner.
//
// Dependency rule: L1 depends on nothing else in internal/sonar.
package l1frames
