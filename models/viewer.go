package models

import (
	"sync"

	"github.com/aukilabs/hagall-common/messages/hagallpb"
	"github.com/aukilabs/kenaz/camera"
)

// VisibleStats summarizes the last visibility pass of a viewer.
type VisibleStats struct {
	Frame       uint64 `json:"frame"`
	Groups      int    `json:"groups"`
	Elements    int    `json:"elements"`
	Occluded    int    `json:"occluded"`
	NodesTested int    `json:"nodes_tested"`
}

// Viewer is a scene observer with its own camera. The camera is not safe for
// concurrent use and is only reachable through WithCamera.
type Viewer struct {
	ID   uint32
	Name string

	mutex   sync.Mutex
	camera  *camera.Camera
	visible []uint32
	stats   VisibleStats
}

func NewViewer(id uint32, name string) *Viewer {
	return &Viewer{
		ID:     id,
		Name:   name,
		camera: camera.New(),
	}
}

// WithCamera calls fn with exclusive access to the viewer camera.
func (v *Viewer) WithCamera(fn func(c *camera.Camera)) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	fn(v.camera)
}

// SetVisible replaces the ids of the entities the viewer sees.
func (v *Viewer) SetVisible(ids []uint32, stats VisibleStats) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.visible = append(v.visible[:0], ids...)
	v.stats = stats
}

// Visible returns a copy of the ids set by the last visibility pass.
func (v *Viewer) Visible() []uint32 {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	ids := make([]uint32, len(v.visible))
	copy(ids, v.visible)
	return ids
}

func (v *Viewer) VisibleStats() VisibleStats {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	return v.stats
}

func (v *Viewer) ToProtobuf() *hagallpb.Participant {
	return &hagallpb.Participant{
		Id: v.ID,
	}
}

func ViewersToProtobuf(viewers []*Viewer) []*hagallpb.Participant {
	res := make([]*hagallpb.Participant, len(viewers))
	for i, v := range viewers {
		res[i] = v.ToProtobuf()
	}
	return res
}
