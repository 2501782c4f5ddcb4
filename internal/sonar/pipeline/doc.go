// Package pipeline wires the sonar layers into one synchronous processing
// chain per sensor channel: accumulate, denoise, suppress symmetric noise,
// clip to the range band, threshold, clean up and localize.
//
// This package is the composition root: it imports from the layer packages
// (l1frames through l5detect) and imgproc, but none of those import
// pipeline/. Each Pipeline owns its accumulators and filters outright;
// RunChannels gives every channel a Pipeline of its own.
package pipeline
