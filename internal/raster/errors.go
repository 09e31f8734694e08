package raster

import "fmt"

// MissingBandError reports a band required by a loader mapping or an index
// formula that is absent from the source or stack.
type MissingBandError struct {
	Channel Channel
	Context string
}

func (e *MissingBandError) Error() string {
	return fmt.Sprintf("missing band %s: %s", e.Channel, e.Context)
}

// CorruptRasterError reports a raster source that could not be decoded.
type CorruptRasterError struct {
	Path string
	Err  error
}

func (e *CorruptRasterError) Error() string {
	return fmt.Sprintf("corrupt raster %s: %v", e.Path, e.Err)
}

func (e *CorruptRasterError) Unwrap() error { return e.Err }

// ShapeMismatchError reports grids that were expected to share one shape but
// do not.
type ShapeMismatchError struct {
	What                  string
	WantWidth, WantHeight int
	GotWidth, GotHeight   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: want %dx%d, got %dx%d",
		e.What, e.WantWidth, e.WantHeight, e.GotWidth, e.GotHeight)
}

// AlignmentError reports band footprints with no geographic overlap.
type AlignmentError struct {
	Reason string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment failed: %s", e.Reason)
}

// EmptySeriesError reports a temporal aggregation over zero acquisitions.
type EmptySeriesError struct{}

func (e *EmptySeriesError) Error() string {
	return "empty bloom series: at least one classified acquisition is required"
}
