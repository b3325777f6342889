package realtime

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/models"
)

type recordingModule struct {
	name      string
	initErr   error
	eventErr  error
	frameErr  error
	closed    bool
	mutex     sync.Mutex
	events    []models.EntityEvent
	frames    []uint64
	onFrame   func(frame uint64)
	initCalls int
}

func (m *recordingModule) Name() string {
	return m.name
}

func (m *recordingModule) Init(s *models.Scene) error {
	m.initCalls++
	return m.initErr
}

func (m *recordingModule) HandleEntityEvent(ctx context.Context, ev models.EntityEvent) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.events = append(m.events, ev)
	return m.eventErr
}

func (m *recordingModule) HandleFrame(ctx context.Context, frame uint64) error {
	m.mutex.Lock()
	m.frames = append(m.frames, frame)
	m.mutex.Unlock()

	if m.onFrame != nil {
		m.onFrame(frame)
	}
	return m.frameErr
}

func (m *recordingModule) Close() {
	m.closed = true
}

func (m *recordingModule) frameCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.frames)
}

var errTestModule = errors.New("module failure").WithType("test_module_failure")
