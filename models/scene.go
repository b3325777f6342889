package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hagall-common/messages/hagallpb"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	ErrTypeSceneNotFound  = "scene_not_found"
	ErrTypeEntityNotFound = "entity_not_found"
	ErrTypeInvalidEntity  = "invalid_entity"
)

// EntityEventType describes what happened to an entity.
type EntityEventType int

const (
	EntityAdded EntityEventType = iota
	EntityMoved
	EntityRemoved
)

func (t EntityEventType) String() string {
	switch t {
	case EntityAdded:
		return "added"
	case EntityMoved:
		return "moved"
	case EntityRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// EntityEvent is queued by the scene when an entity is added, moved or
// removed. Events are drained once per frame.
type EntityEvent struct {
	Type   EntityEventType
	Entity *Entity
}

// Scene is a set of entities observed by viewers. Frames are dispatched at a
// fixed rate to the registered frame handlers.
type Scene struct {
	ID        uint32
	SceneUUID string
	Name      string

	viewerIDs   SequentialIDGenerator
	viewerMutex sync.RWMutex
	viewers     map[uint32]*Viewer

	entityIDs   SequentialIDGenerator
	entityMutex sync.RWMutex
	entities    map[uint32]*Entity
	events      []EntityEvent

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	done            chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewScene(id uint32, frameDuration time.Duration) *Scene {
	return &Scene{
		ID:             id,
		SceneUUID:      uuid.New().String(),
		closeFrameChan: make(chan struct{}, 1),
		done:           make(chan struct{}),
		frameTicker:    time.NewTicker(frameDuration),
		viewers:        make(map[uint32]*Viewer),
		entities:       make(map[uint32]*Entity),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}
}

// Close stops the frame dispatch. It is safe to call more than once.
func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
		close(s.done)
	})
}

// Done returns a channel closed when the scene is closed.
func (s *Scene) Done() <-chan struct{} {
	return s.done
}

func (s *Scene) NewViewerID() uint32 {
	return s.viewerIDs.New()
}

func (s *Scene) AddViewer(v *Viewer) {
	s.viewerMutex.Lock()
	defer s.viewerMutex.Unlock()

	s.viewers[v.ID] = v
	instrumentViewerGauge(1)
}

func (s *Scene) RemoveViewer(v *Viewer) {
	s.viewerMutex.Lock()
	defer s.viewerMutex.Unlock()

	if _, ok := s.viewers[v.ID]; !ok {
		return
	}
	delete(s.viewers, v.ID)
	s.viewerIDs.Reuse(v.ID)
	instrumentViewerGauge(-1)
}

func (s *Scene) ViewerByID(id uint32) (*Viewer, bool) {
	s.viewerMutex.RLock()
	defer s.viewerMutex.RUnlock()

	v, ok := s.viewers[id]
	return v, ok
}

// Viewers returns the scene viewers ordered by id.
func (s *Scene) Viewers() []*Viewer {
	s.viewerMutex.RLock()
	defer s.viewerMutex.RUnlock()

	viewers := make([]*Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		viewers = append(viewers, v)
	}
	sort.Slice(viewers, func(i, j int) bool {
		return viewers[i].ID < viewers[j].ID
	})
	return viewers
}

func (s *Scene) ViewerCount() int {
	s.viewerMutex.RLock()
	defer s.viewerMutex.RUnlock()

	return len(s.viewers)
}

func (s *Scene) NewEntityID() uint32 {
	return s.entityIDs.New()
}

// AddEntity adds the entity to the scene and queues an added event.
func (s *Scene) AddEntity(e *Entity) error {
	if e == nil || e.ID == 0 {
		return errors.New("entity has no id").
			WithType(ErrTypeInvalidEntity)
	}

	s.entityMutex.Lock()
	defer s.entityMutex.Unlock()

	if _, ok := s.entities[e.ID]; ok {
		return errors.New("entity already in scene").
			WithType(ErrTypeInvalidEntity).
			WithTag("scene_id", s.ID).
			WithTag("entity_id", e.ID)
	}

	s.entities[e.ID] = e
	s.events = append(s.events, EntityEvent{Type: EntityAdded, Entity: e})
	instrumentEntityGauge(1)
	return nil
}

// MoveEntity updates the entity pose and queues a moved event.
func (s *Scene) MoveEntity(id uint32, p Pose) error {
	s.entityMutex.Lock()
	defer s.entityMutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("scene_id", s.ID).
			WithTag("entity_id", id)
	}

	e.SetPose(p)
	s.events = append(s.events, EntityEvent{Type: EntityMoved, Entity: e})
	return nil
}

// RemoveEntity removes the entity from the scene and queues a removed event.
// The entity id is released once the event is drained.
func (s *Scene) RemoveEntity(id uint32) error {
	s.entityMutex.Lock()
	defer s.entityMutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("scene_id", s.ID).
			WithTag("entity_id", id)
	}

	delete(s.entities, id)
	s.events = append(s.events, EntityEvent{Type: EntityRemoved, Entity: e})
	instrumentEntityGauge(-1)
	return nil
}

// DrainEvents returns the queued entity events in order and clears the
// queue.
func (s *Scene) DrainEvents() []EntityEvent {
	s.entityMutex.Lock()
	defer s.entityMutex.Unlock()

	events := s.events
	s.events = nil

	for _, ev := range events {
		if ev.Type != EntityRemoved {
			continue
		}
		if _, ok := s.entities[ev.Entity.ID]; !ok {
			s.entityIDs.Reuse(ev.Entity.ID)
		}
	}
	return events
}

func (s *Scene) EntityByID(id uint32) (*Entity, bool) {
	s.entityMutex.RLock()
	defer s.entityMutex.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

// Entities returns the scene entities ordered by id.
func (s *Scene) Entities() []*Entity {
	s.entityMutex.RLock()
	defer s.entityMutex.RUnlock()

	entities := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
	return entities
}

func (s *Scene) EntityCount() int {
	s.entityMutex.RLock()
	defer s.entityMutex.RUnlock()

	return len(s.entities)
}

// ToProtobuf returns a snapshot of the scene in the wire model.
func (s *Scene) ToProtobuf() *hagallpb.SessionState {
	return &hagallpb.SessionState{
		Type:         hagallpb.MsgType_MSG_TYPE_SESSION_STATE,
		Timestamp:    timestamppb.Now(),
		Participants: ViewersToProtobuf(s.Viewers()),
		Entities:     EntitiesToProtobuf(s.Entities()),
	}
}

func (s *Scene) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Scene) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

// HandleFrame registers a handler called on every frame. The returned
// function unregisters it.
func (s *Scene) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames calls the frame handlers on every tick until the scene
// is closed.
func (s *Scene) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}

// SceneStore keeps the scenes served by this instance.
type SceneStore struct {
	// The id of this server, used as a prefix for global scene ids.
	ServerID string

	initOnce sync.Once
	mutex    sync.RWMutex
	scenes   map[string]*Scene
	ids      SequentialIDGenerator
}

func (s *SceneStore) init() {
	s.scenes = map[string]*Scene{}

	if s.ServerID == "" {
		s.ServerID = "kenaz"
	}
}

func (s *SceneStore) NewID() uint32 {
	return s.ids.New()
}

func (s *SceneStore) Add(ctx context.Context, scene *Scene) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.scenes[s.GlobalSceneID(scene.ID)] = scene

	logs.WithTag("scene_id", s.GlobalSceneID(scene.ID)).
		WithTag("scene_uuid", scene.SceneUUID).
		WithTag("scene_name", scene.Name).
		Debug("scene added")

	instrumentSceneGauge(1)
	instrumentCountScene()
}

func (s *SceneStore) Remove(ctx context.Context, scene *Scene) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.GlobalSceneID(scene.ID)
	if _, ok := s.scenes[id]; !ok {
		return
	}

	delete(s.scenes, id)
	scene.Close()
	s.ids.Reuse(scene.ID)

	instrumentSceneGauge(-1)
}

// Get returns the scene with the given global id.
func (s *SceneStore) Get(globalID string) (*Scene, error) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	scene, ok := s.scenes[globalID]
	if !ok {
		return nil, errors.New("scene not found").
			WithType(ErrTypeSceneNotFound).
			WithTag("scene_id", globalID)
	}
	return scene, nil
}

// Scenes returns the stored scenes ordered by id.
func (s *SceneStore) Scenes() []*Scene {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	scenes := make([]*Scene, 0, len(s.scenes))
	for _, scene := range s.scenes {
		scenes = append(scenes, scene)
	}
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].ID < scenes[j].ID
	})
	return scenes
}

func (s *SceneStore) GlobalSceneID(sceneID uint32) string {
	s.initOnce.Do(s.init)
	return fmt.Sprintf("%sx%x", s.ServerID, sceneID)
}
