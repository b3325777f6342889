package smoketest

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules/culling"
	"github.com/aukilabs/kenaz/octree"
	"github.com/aukilabs/kenaz/realtime"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
)

const ErrTypeSmokeTestFailed = "smoke_test_failed"

// Options describes the synthetic scene a smoke test runs on.
type Options struct {
	Entities int     `json:"entities"`
	Viewers  int     `json:"viewers"`
	Frames   int     `json:"frames"`
	Extent   float64 `json:"extent"`
	Seed     int64   `json:"seed"`

	Config *octree.Config `json:"-"`
}

// DefaultOptions returns the options used when a request leaves them unset.
func DefaultOptions() Options {
	return Options{
		Entities: 2000,
		Viewers:  4,
		Frames:   20,
		Extent:   200,
		Seed:     1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Entities <= 0 {
		o.Entities = d.Entities
	}
	if o.Viewers <= 0 {
		o.Viewers = d.Viewers
	}
	if o.Frames <= 0 {
		o.Frames = d.Frames
	}
	if o.Extent <= 0 {
		o.Extent = d.Extent
	}
	return o
}

// Result is the outcome of a smoke test.
type Result struct {
	Passed     bool          `json:"passed"`
	Frames     int           `json:"frames"`
	Checks     int           `json:"checks"`
	Visible    int           `json:"visible"`
	Tree       octree.Stats  `json:"tree"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	ErrorType  string        `json:"error_type,omitempty"`
	Mismatches int           `json:"mismatches"`
}

// Run builds a synthetic scene, moves, adds and removes entities between
// frames and checks after every frame that each viewer sees exactly the
// entities a brute force frustum test sees, and that the tree is consistent.
func Run(ctx context.Context, opts Options) (Result, error) {
	opts = opts.withDefaults()
	start := time.Now()
	rnd := rand.New(rand.NewSource(opts.Seed))

	scene := models.NewScene(0, time.Hour)
	scene.Name = "smoketest"
	defer scene.Close()

	for i := 0; i < opts.Entities; i++ {
		e := models.NewEntity(scene.NewEntityID(), models.PoseAt(randomPosition(rnd, opts.Extent)), randomRadius(rnd))
		if err := scene.AddEntity(e); err != nil {
			return Result{}, err
		}
	}

	for i := 0; i < opts.Viewers; i++ {
		v := models.NewViewer(scene.NewViewerID(), "smoketest")
		origin := randomPosition(rnd, opts.Extent)
		target := randomPosition(rnd, opts.Extent/4)
		v.WithCamera(func(c *camera.Camera) {
			c.SetView(camera.DefaultFOV, camera.DefaultAspect, camera.DefaultNear, opts.Extent)
			c.LookAt(origin, target, mgl64.Vec3{0, 0, 1})
		})
		scene.AddViewer(v)
	}

	module := &culling.Module{
		Config:   opts.Config,
		HalfSize: opts.Extent / 4,
	}
	h := realtime.NewSceneHandler(scene, module)
	if err := h.Init(); err != nil {
		return Result{}, errors.New("initializing smoke test scene failed").Wrap(err)
	}
	defer h.Close()

	var res Result
	for frame := 1; frame <= opts.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if frame > 1 {
			if err := mutate(scene, rnd, opts.Extent); err != nil {
				return res, err
			}
		}

		realtime.DispatchFrame(ctx, h, uint64(frame))
		res.Frames = frame

		for _, v := range scene.Viewers() {
			expected := bruteForceVisible(scene, v)
			visible := v.Visible()
			res.Checks++
			res.Visible += len(visible)

			if !sameIDs(expected, visible) {
				res.Mismatches++
			}
		}

		state, _ := culling.StateOf(scene)
		if err := state.Partition.Root().Check(); err != nil {
			return res, errors.New("smoke test found a corrupted tree").
				WithType(ErrTypeSmokeTestFailed).
				WithTag("frame", frame).
				Wrap(err)
		}
		res.Tree = state.Partition.Stats()
	}

	res.Duration = time.Since(start)
	if res.Mismatches != 0 {
		return res, errors.New("smoke test visible sets differ from brute force").
			WithType(ErrTypeSmokeTestFailed).
			WithTag("mismatches", res.Mismatches).
			WithTag("checks", res.Checks)
	}

	res.Passed = true
	return res, nil
}

func mutate(scene *models.Scene, rnd *rand.Rand, extent float64) error {
	entities := scene.Entities()

	for _, e := range entities {
		switch n := rnd.Intn(100); {
		case n < 10:
			jitter := randomPosition(rnd, extent/50)
			if err := scene.MoveEntity(e.ID, e.Pose().WithPosition(e.BinPosition().Add(jitter))); err != nil {
				return err
			}

		case n < 11:
			if err := scene.MoveEntity(e.ID, e.Pose().WithPosition(randomPosition(rnd, extent))); err != nil {
				return err
			}

		case n < 12:
			if err := scene.RemoveEntity(e.ID); err != nil {
				return err
			}
		}
	}

	for i := 0; i < len(entities)/100; i++ {
		e := models.NewEntity(scene.NewEntityID(), models.PoseAt(randomPosition(rnd, extent)), randomRadius(rnd))
		if err := scene.AddEntity(e); err != nil {
			return err
		}
	}
	return nil
}

func bruteForceVisible(scene *models.Scene, v *models.Viewer) map[uint32]struct{} {
	visible := make(map[uint32]struct{})
	v.WithCamera(func(c *camera.Camera) {
		for _, e := range scene.Entities() {
			if c.SphereInFrustum(e.BinPosition(), e.BinRadius()) != camera.Outside {
				visible[e.ID] = struct{}{}
			}
		}
	})
	return visible
}

func sameIDs(expected map[uint32]struct{}, ids []uint32) bool {
	if len(expected) != len(ids) {
		return false
	}
	for _, id := range ids {
		if _, ok := expected[id]; !ok {
			return false
		}
	}
	return true
}

func randomPosition(rnd *rand.Rand, extent float64) mgl64.Vec3 {
	return mgl64.Vec3{
		(rnd.Float64()*2 - 1) * extent,
		(rnd.Float64()*2 - 1) * extent,
		(rnd.Float64()*2 - 1) * extent,
	}
}

func randomRadius(rnd *rand.Rand) float64 {
	if rnd.Intn(20) == 0 {
		return 5 + rnd.Float64()*20
	}
	return 0.05 + rnd.Float64()*2
}

// HandleSmokeTest runs a smoke test on every request. The request body can
// override the default options with a JSON object.
func HandleSmokeTest(defaults Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			httpcmn.InternalServerError(w, errors.New("reading body failed").Wrap(err))
			return
		}

		opts := defaults
		if len(b) != 0 {
			if err := json.Unmarshal(b, &opts); err != nil {
				httpcmn.BadRequest(w, httpcmn.ErrBadRequest)
				return
			}
		}

		res, err := Run(r.Context(), opts)
		if err != nil {
			logs.WithTag("entities", opts.Entities).
				WithTag("frames", res.Frames).
				WithTag("seed", opts.Seed).
				Warn(err)

			res.Error = err.Error()
			res.ErrorType = errors.Type(err)
		}

		code := http.StatusOK
		if !res.Passed {
			code = http.StatusInternalServerError
		}

		body, err := json.Marshal(res)
		if err != nil {
			httpcmn.InternalServerError(w, errors.New("encoding smoke test result failed").Wrap(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write(body)
	}
}
