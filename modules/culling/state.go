package culling

import (
	"sync"

	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/octree"
	"github.com/aukilabs/kenaz/spatial"
)

// State is the culling state shared by a scene. The partition is only used
// from the frame loop; the snapshot is safe for concurrent reads.
type State struct {
	Partition *spatial.Partition

	mutex    sync.RWMutex
	snapshot Snapshot
}

// Snapshot describes the partition after the last frame.
type Snapshot struct {
	Frame      uint64       `json:"frame"`
	Tree       octree.Stats `json:"tree"`
	LODChanges int          `json:"lod_changes"`
	Rejected   int          `json:"rejected"`
}

func (s *State) setSnapshot(v Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.snapshot = v
}

func (s *State) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.snapshot
}

// StateOf returns the culling state of a scene, if the culling module was
// initialized for it.
func StateOf(s *models.Scene) (*State, bool) {
	v, ok := s.ModuleState(ModuleName)
	if !ok {
		return nil, false
	}
	state, ok := v.(*State)
	return state, ok
}
