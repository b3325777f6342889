package modules

import (
	"context"

	"github.com/aukilabs/kenaz/models"
)

// Module is the interface that describes a module that extends a scene with
// per-frame behavior.
type Module interface {
	// Returns the module name.
	Name() string

	// Initializes the module for the given scene.
	Init(*models.Scene) error

	// Handles an entity event drained from the scene. Events are delivered in
	// the order they were queued, before HandleFrame is called.
	HandleEntityEvent(context.Context, models.EntityEvent) error

	// Handles a frame. Frames are numbered from 1.
	HandleFrame(ctx context.Context, frame uint64) error

	// Releases the module resources when the scene is closed.
	Close()
}
