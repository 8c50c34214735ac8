// Package timescale converts between waveform pixels and timeline milliseconds.
//
// Pixel positions are absolute: measured from the start of the rendered waveform,
// not from the left edge of the scrollable viewport showing it.
package timescale

import "math"

// MsToPixels converts a time to an absolute pixel offset.
func MsToPixels(ms int64, pixelsPerSecond float64) float64 {
	return float64(ms) * pixelsPerSecond / 1000
}

// PixelsToMs converts an absolute pixel offset to milliseconds, rounding half up.
// A non-positive rate maps everything to 0.
func PixelsToMs(px, pixelsPerSecond float64) int64 {
	if pixelsPerSecond <= 0 {
		return 0
	}
	return roundHalfUp(px * 1000 / pixelsPerSecond)
}

// Viewport is the visible window onto the waveform.
type Viewport struct {
	// Left is the viewport's left edge in client coordinates.
	Left float64 `json:"left"`
	// Width is the viewport's visible width in pixels.
	Width float64 `json:"width"`
	// XMin is the horizontal scroll offset: the absolute pixel shown at Left.
	XMin float64 `json:"x_min"`
}

// AbsoluteX maps a client X coordinate to an absolute waveform pixel.
// A degenerate viewport yields 0.
func (v Viewport) AbsoluteX(clientX float64) float64 {
	if v.Width <= 0 {
		return 0
	}
	return clientX - v.Left + v.XMin
}

// PositionMs maps a client X coordinate to a non-negative timeline position.
func (v Viewport) PositionMs(clientX, pixelsPerSecond float64) int64 {
	return max(PixelsToMs(v.AbsoluteX(clientX), pixelsPerSecond), 0)
}

// XMax is the absolute pixel at the viewport's right edge.
func (v Viewport) XMax() float64 {
	return v.XMin + v.Width
}

// Visible reports whether the absolute pixel span [x0, x1] is fully on screen.
func (v Viewport) Visible(x0, x1 float64) bool {
	return x0 >= v.XMin && x1 <= v.XMax()
}

// ClampMs bounds ms to [0, durationMs]. A durationMs of 0 leaves the upper bound open.
func ClampMs(ms, durationMs int64) int64 {
	if ms < 0 {
		return 0
	}
	if durationMs > 0 && ms > durationMs {
		return durationMs
	}
	return ms
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
