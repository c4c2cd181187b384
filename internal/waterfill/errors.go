package waterfill

import "errors"

var (
	// ErrEmptyImage indicates a nil image or one with zero width or height.
	ErrEmptyImage = errors.New("waterfill: image is empty")
	// ErrInvalidRate indicates a downsample rate outside (0, 1], or one that
	// shrinks the image to nothing.
	ErrInvalidRate = errors.New("waterfill: rate must be in (0, 1]")
	// ErrInvalidIterations indicates a negative iteration budget.
	ErrInvalidIterations = errors.New("waterfill: iteration count must not be negative")
	// ErrInvalidOptions indicates an out-of-range normalization or worker setting.
	ErrInvalidOptions = errors.New("waterfill: invalid options")
	// ErrSizeMismatch indicates two grids that must share dimensions do not.
	ErrSizeMismatch = errors.New("waterfill: grid dimensions differ")
)
