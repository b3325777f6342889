package octree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// DefaultMaxCapacity is the number of elements a node holds before
	// insertion prefers pushing elements down into children.
	DefaultMaxCapacity = 128

	// DefaultMinSize is the smallest node half-size. Root sizes are rounded
	// up to a power of two multiple of the min size, so nodes reach it
	// exactly.
	DefaultMinSize = 1.0 / 64

	// DefaultMaxMagnitude is the largest per-axis distance from the root
	// center an element can have to be accepted.
	DefaultMaxMagnitude = 1024 * 1024

	// DefaultMaxRadius is the largest accepted element bounding radius.
	DefaultMaxRadius = 4096
)

// ErrTypeInvalidConfig is the error type returned when a tree is created
// with unusable tunables.
const ErrTypeInvalidConfig = "octree_invalid_config"

// Config contains the octree tunables. A tree reads its config at call time,
// which means changing a shared Config affects the next operation on every
// tree that uses it.
type Config struct {
	MaxCapacity  int
	MinSize      float64
	MaxMagnitude float64
	MaxRadius    float64
}

// DefaultConfig returns a config populated with the default tunables.
func DefaultConfig() *Config {
	return &Config{
		MaxCapacity:  DefaultMaxCapacity,
		MinSize:      DefaultMinSize,
		MaxMagnitude: DefaultMaxMagnitude,
		MaxRadius:    DefaultMaxRadius,
	}
}

// Validate reports whether the config can drive a tree.
func (c *Config) Validate() error {
	if c.MaxCapacity <= 0 {
		return errors.New("max capacity must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_capacity", c.MaxCapacity)
	}

	if !(c.MinSize > 0) || math.IsInf(c.MinSize, 0) {
		return errors.New("min size must be a positive number").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_size", c.MinSize)
	}

	if !(c.MaxMagnitude > c.MinSize) || math.IsInf(c.MaxMagnitude, 0) {
		return errors.New("max magnitude must be greater than min size").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_magnitude", c.MaxMagnitude).
			WithTag("min_size", c.MinSize)
	}

	if !(c.MaxRadius > 0) || math.IsInf(c.MaxRadius, 0) {
		return errors.New("max radius must be a positive number").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_radius", c.MaxRadius)
	}
	return nil
}
