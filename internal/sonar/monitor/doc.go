// Package monitor turns pipeline results into debug artifacts: PNG raster
// snapshots, gonum/plot time-series traces and an echarts HTML report of
// world-frame detections.
//
// Every artifact writer here is a pipeline.Sink, so the replay tool can
// attach them to a channel without the pipeline knowing about files.
package monitor
