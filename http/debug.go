package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules/culling"
	"github.com/segmentio/encoding/json"
	"google.golang.org/protobuf/encoding/protojson"
)

// SceneSummary is the debug description of a scene.
type SceneSummary struct {
	ID       string            `json:"id"`
	UUID     string            `json:"uuid"`
	Name     string            `json:"name"`
	Entities int               `json:"entities"`
	Viewers  int               `json:"viewers"`
	Culling  *culling.Snapshot `json:"culling,omitempty"`
}

// ViewerSummary is the debug description of a viewer.
type ViewerSummary struct {
	ID      uint32              `json:"id"`
	Name    string              `json:"name"`
	Origin  [3]float64          `json:"origin"`
	View    []byte              `json:"view"`
	Stats   models.VisibleStats `json:"stats"`
	Visible []uint32            `json:"visible"`
}

// NewDebugHandler returns the handler serving the scene debug routes:
//
//	GET /scenes
//	GET /scenes/{id}
//	GET /scenes/{id}/state
//	GET /scenes/{id}/viewers
func NewDebugHandler(scenes *models.SceneStore) http.Handler {
	h := debugHandler{scenes: scenes}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /scenes", h.handleScenes)
	mux.HandleFunc("GET /scenes/{id}", h.handleScene)
	mux.HandleFunc("GET /scenes/{id}/state", h.handleSceneState)
	mux.HandleFunc("GET /scenes/{id}/viewers", h.handleViewers)
	return mux
}

type debugHandler struct {
	scenes *models.SceneStore
}

func (h debugHandler) handleScenes(w http.ResponseWriter, r *http.Request) {
	scenes := h.scenes.Scenes()

	res := make([]SceneSummary, len(scenes))
	for i, s := range scenes {
		res[i] = h.summary(s)
	}
	writeJSON(w, res)
}

func (h debugHandler) handleScene(w http.ResponseWriter, r *http.Request) {
	scene, ok := h.scene(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.summary(scene))
}

func (h debugHandler) handleSceneState(w http.ResponseWriter, r *http.Request) {
	scene, ok := h.scene(w, r)
	if !ok {
		return
	}

	b, err := protojson.Marshal(scene.ToProtobuf())
	if err != nil {
		httpcmn.InternalServerError(w, errors.New("encoding scene state failed").Wrap(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (h debugHandler) handleViewers(w http.ResponseWriter, r *http.Request) {
	scene, ok := h.scene(w, r)
	if !ok {
		return
	}

	viewers := scene.Viewers()
	res := make([]ViewerSummary, len(viewers))
	for i, v := range viewers {
		res[i] = ViewerSummary{
			ID:      v.ID,
			Name:    v.Name,
			Stats:   v.VisibleStats(),
			Visible: v.Visible(),
		}

		v.WithCamera(func(c *camera.Camera) {
			res[i].Origin = c.Origin()
			res[i].View, _ = c.MarshalBinary()
		})
	}
	writeJSON(w, res)
}

func (h debugHandler) scene(w http.ResponseWriter, r *http.Request) (*models.Scene, bool) {
	scene, err := h.scenes.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return scene, true
}

func (h debugHandler) summary(s *models.Scene) SceneSummary {
	summary := SceneSummary{
		ID:       h.scenes.GlobalSceneID(s.ID),
		UUID:     s.SceneUUID,
		Name:     s.Name,
		Entities: s.EntityCount(),
		Viewers:  s.ViewerCount(),
	}

	if state, ok := culling.StateOf(s); ok {
		snapshot := state.Snapshot()
		summary.Culling = &snapshot
	}
	return summary
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		httpcmn.InternalServerError(w, errors.New("encoding response failed").Wrap(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func writeError(w http.ResponseWriter, code int, err error) {
	logs.WithTag("code", code).
		WithTag("error", err.Error()).
		Debug("debug request failed")

	b, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{
		Type:    errors.Type(err),
		Message: err.Error(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
