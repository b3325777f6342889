package realtime

import (
	"context"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
)

// Handler is the interface that describes a scene handler: it owns the
// modules of a scene and forwards them entity events and frames.
type Handler interface {
	// Returns the handled scene.
	Scene() *models.Scene

	// Returns the scene modules.
	Modules() []modules.Module

	// Initializes the modules.
	Init() error

	// Forwards an entity event to a module.
	HandleEntityEvent(ctx context.Context, m modules.Module, ev models.EntityEvent) error

	// Forwards a frame to a module.
	HandleFrame(ctx context.Context, m modules.Module, frame uint64) error

	// Closes the modules.
	Close()
}

// SceneHandler is the default scene handler.
type SceneHandler struct {
	scene   *models.Scene
	modules []modules.Module
}

func NewSceneHandler(s *models.Scene, mods ...modules.Module) *SceneHandler {
	return &SceneHandler{
		scene:   s,
		modules: mods,
	}
}

func (h *SceneHandler) Scene() *models.Scene {
	return h.scene
}

func (h *SceneHandler) Modules() []modules.Module {
	return h.modules
}

func (h *SceneHandler) Init() error {
	for i, m := range h.modules {
		if err := m.Init(h.scene); err != nil {
			for _, initialized := range h.modules[:i] {
				initialized.Close()
			}

			return errors.New("initializing module failed").
				WithTag("scene_id", h.scene.ID).
				WithTag("module", m.Name()).
				Wrap(err)
		}
	}
	return nil
}

func (h *SceneHandler) HandleEntityEvent(ctx context.Context, m modules.Module, ev models.EntityEvent) error {
	return m.HandleEntityEvent(ctx, ev)
}

func (h *SceneHandler) HandleFrame(ctx context.Context, m modules.Module, frame uint64) error {
	return m.HandleFrame(ctx, frame)
}

func (h *SceneHandler) Close() {
	for _, m := range h.modules {
		m.Close()
	}
}

// DispatchFrame drains the scene entity events, forwards them to every
// module, then forwards the frame. Module errors are logged and do not stop
// the frame.
func DispatchFrame(ctx context.Context, h Handler, frame uint64) {
	scene := h.Scene()
	events := scene.DrainEvents()

	for _, m := range h.Modules() {
		for _, ev := range events {
			if err := h.HandleEntityEvent(ctx, m, ev); err != nil {
				logs.WithTag("scene_id", scene.ID).
					WithTag("module", m.Name()).
					WithTag("entity_id", ev.Entity.ID).
					WithTag("event", ev.Type.String()).
					Warn(errors.New("handling entity event failed").Wrap(err))
			}
		}
	}

	for _, m := range h.Modules() {
		if err := h.HandleFrame(ctx, m, frame); err != nil {
			logs.WithTag("scene_id", scene.ID).
				WithTag("module", m.Name()).
				WithTag("frame", frame).
				Error(errors.New("handling frame failed").Wrap(err))
		}
	}
}

// Run initializes the handler and dispatches the scene frames until the
// context is done or the scene is closed.
func Run(ctx context.Context, h Handler) error {
	if err := h.Init(); err != nil {
		return err
	}
	defer h.Close()

	scene := h.Scene()

	var frame uint64
	cancel := scene.HandleFrame(func() {
		frame++
		DispatchFrame(ctx, h, frame)
	})
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
			scene.Close()
		case <-scene.Done():
		}
	}()

	scene.StartDispatchFrames()
	return nil
}
