package camera

import (
	"encoding/binary"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ViewSize is the size of the serialized view parameters.
const ViewSize = 16

// ErrTypeShortBuffer is the type of the error returned when decoding view
// parameters from a buffer smaller than ViewSize.
const ErrTypeShortBuffer = "camera_short_buffer"

// MarshalBinary packs the field of view, aspect, near and far distances as
// little endian 32 bit floats.
func (c *Camera) MarshalBinary() ([]byte, error) {
	b := make([]byte, ViewSize)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(c.fov)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(c.aspect)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(c.near)))
	binary.LittleEndian.PutUint32(b[12:], math.Float32bits(float32(c.far)))
	return b, nil
}

// UnmarshalBinary sets the view parameters from a buffer produced by
// MarshalBinary. Values are clamped like the setters do.
func (c *Camera) UnmarshalBinary(data []byte) error {
	if len(data) < ViewSize {
		return errors.New("view parameters buffer too short").
			WithType(ErrTypeShortBuffer).
			WithTag("length", len(data)).
			WithTag("expected", ViewSize)
	}

	c.SetView(
		float64(math.Float32frombits(binary.LittleEndian.Uint32(data[0:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(data[8:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(data[12:]))),
	)
	return nil
}
