package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/kenaz/featureflag"
	kenazhttp "github.com/aukilabs/kenaz/http"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules/culling"
	"github.com/aukilabs/kenaz/modules/drift"
	"github.com/aukilabs/kenaz/octree"
	"github.com/aukilabs/kenaz/realtime"
	"github.com/aukilabs/kenaz/smoketest"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The Kenaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "kenaz_info",
		Help:        "Kenaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"KENAZ_ADDR"                 help:"Listening address for the service endpoints."`
	AdminAddr          string        `cli:""        env:"KENAZ_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"KENAZ_PUBLIC_ENDPOINT"      help:"The public endpoint where this Kenaz server is reachable."`
	ServerID           string        `cli:""        env:"KENAZ_SERVER_ID"            help:"The id prefixed to global scene ids."`
	LogLevel           string        `cli:""        env:"KENAZ_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"KENAZ_LOG_INDENT"           help:"Indent logs."`
	FrameDuration      time.Duration `cli:",hidden" env:"KENAZ_FRAME_DURATION"       help:"The duration of a scene frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"KENAZ_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by scene."`
	Octree             octreeConfig  `cli:",hidden" env:"-"                          help:"Octree configuration."`
	Demo               demoConfig    `cli:",hidden" env:"-"                          help:"Demo scene configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"KENAZ_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type octreeConfig struct {
	MaxCapacity  int     `cli:",hidden" env:"KENAZ_OCTREE_MAX_CAPACITY"  help:"The number of elements a node stores before pushing them down."`
	MinSize      float64 `cli:",hidden" env:"KENAZ_OCTREE_MIN_SIZE"      help:"The half-size under which nodes are not subdivided."`
	MaxMagnitude float64 `cli:",hidden" env:"KENAZ_OCTREE_MAX_MAGNITUDE" help:"The largest accepted coordinate."`
	MaxRadius    float64 `cli:",hidden" env:"KENAZ_OCTREE_MAX_RADIUS"    help:"The largest accepted element radius."`
	HalfSize     float64 `cli:",hidden" env:"KENAZ_OCTREE_HALF_SIZE"     help:"The initial half-size of a scene octree."`
}

type demoConfig struct {
	Scenes      int     `cli:",hidden" env:"KENAZ_DEMO_SCENES"       help:"The number of demo scenes."`
	Entities    int     `cli:",hidden" env:"KENAZ_DEMO_ENTITIES"     help:"The number of entities per demo scene."`
	Viewers     int     `cli:",hidden" env:"KENAZ_DEMO_VIEWERS"      help:"The number of viewers per demo scene."`
	Extent      float64 `cli:",hidden" env:"KENAZ_DEMO_EXTENT"       help:"The half-size of the cube demo entities live in."`
	Speed       float64 `cli:",hidden" env:"KENAZ_DEMO_SPEED"        help:"The distance a moving entity covers every frame."`
	MovingRatio float64 `cli:",hidden" env:"KENAZ_DEMO_MOVING_RATIO" help:"The share of demo entities that move."`
	Seed        int64   `cli:",hidden" env:"KENAZ_DEMO_SEED"         help:"The random seed of demo scenes."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"KENAZ_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"KENAZ_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"KENAZ_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"KENAZ_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	octreeDefaults := octree.DefaultConfig()

	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		PublicEndpoint:     "http://localhost:4100",
		ServerID:           "kenaz",
		LogLevel:           logs.InfoLevel.String(),
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Octree: octreeConfig{
			MaxCapacity:  octreeDefaults.MaxCapacity,
			MinSize:      octreeDefaults.MinSize,
			MaxMagnitude: octreeDefaults.MaxMagnitude,
			MaxRadius:    octreeDefaults.MaxRadius,
			HalfSize:     culling.DefaultHalfSize,
		},
		Demo: demoConfig{
			Scenes:      1,
			Entities:    5000,
			Viewers:     2,
			Extent:      256,
			Speed:       0.5,
			MovingRatio: 0.1,
			Seed:        1,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Kenaz server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "kenaz",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	scenes := models.SceneStore{
		ServerID: conf.ServerID,
	}
	flags := featureflag.New(conf.FeatureFlags)
	octreeConf := conf.Octree.toOctree()

	var running atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < conf.Demo.Scenes; i++ {
		scene := newDemoScene(scenes.NewID(), conf, int64(i))
		scenes.Add(ctx, scene)

		var h realtime.Handler = realtime.NewSceneHandler(scene,
			&culling.Module{
				Config:       octreeConf,
				HalfSize:     conf.Octree.HalfSize,
				FeatureFlags: flags,
			},
			&drift.Module{
				Extent:      conf.Demo.Extent,
				Speed:       conf.Demo.Speed,
				MovingRatio: conf.Demo.MovingRatio,
				OrbitRadius: conf.Demo.Extent * 1.5,
				OrbitSpeed:  0.002,
				Seed:        conf.Demo.Seed + int64(i),
			},
		)
		h = realtime.HandlerWithLogs(h, conf.LogSummaryInterval)
		h = realtime.HandlerWithMetrics(h)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer scenes.Remove(context.Background(), scene)

			running.Add(1)
			defer running.Add(-1)

			if err := realtime.Run(ctx, h); err != nil {
				logs.WithTag("scene_id", scenes.GlobalSceneID(scene.ID)).
					Error(errors.New("running scene failed").Wrap(err))
			}
		}()
	}

	readinessCheck := func() bool {
		return int(running.Load()) == conf.Demo.Scenes
	}

	var service http.ServeMux
	service.Handle("/health", kenazhttp.HandleWithCORS(http.HandlerFunc(kenazhttp.HandleHealthCheck)))
	service.Handle("/version", kenazhttp.HandleWithCORS(http.HandlerFunc(kenazhttp.HandleVersion(version))))
	service.Handle("/ready", kenazhttp.HandleWithCORS(http.HandlerFunc(kenazhttp.HandleReadyCheck(readinessCheck))))
	debug := kenazhttp.HandleWithCORS(kenazhttp.NewDebugHandler(&scenes))
	service.Handle("/scenes", debug)
	service.Handle("/scenes/", debug)
	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(smoketest.Options{
		Config: octreeConf,
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", kenazhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", kenazhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("scenes", conf.Demo.Scenes).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting kenaz server")

	kenazhttp.ListenAndServe(ctx,
		kenazhttp.Server{
			Role: "service",
			Server: &http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
				kenazhttp.MetricsPathFormatter)},
		},
		kenazhttp.Server{
			Role:   "admin",
			Server: &http.Server{Addr: conf.AdminAddr, Handler: &admin},
		},
	)

	wg.Wait()
}

func (c octreeConfig) toOctree() *octree.Config {
	return &octree.Config{
		MaxCapacity:  c.MaxCapacity,
		MinSize:      c.MinSize,
		MaxMagnitude: c.MaxMagnitude,
		MaxRadius:    c.MaxRadius,
	}
}

func newDemoScene(id uint32, conf config, index int64) *models.Scene {
	scene := models.NewScene(id, conf.FrameDuration)
	scene.Name = fmt.Sprintf("demo-%d", index)

	rnd := rand.New(rand.NewSource(conf.Demo.Seed + index))
	extent := conf.Demo.Extent

	for i := 0; i < conf.Demo.Entities; i++ {
		pos := mgl64.Vec3{
			(rnd.Float64()*2 - 1) * extent,
			(rnd.Float64()*2 - 1) * extent,
			(rnd.Float64()*2 - 1) * extent,
		}

		radius := 0.1 + rnd.ExpFloat64()
		e := models.NewEntity(scene.NewEntityID(), models.PoseAt(pos), radius)
		if err := scene.AddEntity(e); err != nil {
			logs.Warn(err)
		}
	}

	for i := 0; i < conf.Demo.Viewers; i++ {
		scene.AddViewer(models.NewViewer(scene.NewViewerID(), fmt.Sprintf("orbit-%d", i)))
	}
	return scene
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	if err := conf.Octree.toOctree().Validate(); err != nil {
		return errors.New("invalid octree configuration").Wrap(err)
	}

	if conf.Octree.HalfSize <= 0 {
		return errors.New("octree half-size must be positive").
			WithTag("half_size", conf.Octree.HalfSize)
	}

	if conf.Demo.Scenes < 0 || conf.Demo.Entities < 0 || conf.Demo.Viewers < 0 {
		return errors.New("demo scene counts must not be negative")
	}

	if conf.Demo.Scenes > 0 && conf.Demo.Extent <= 0 {
		return errors.New("demo extent must be positive").
			WithTag("extent", conf.Demo.Extent)
	}

	return nil
}
