//go:build gocv

package imgproc

// Default returns the backend compiled into this binary.
func Default() Ops { return OpenCV{} }
