package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ShutdownTimeout is the time given to a server to finish its requests once
// the serving context is done.
const ShutdownTimeout = 5 * time.Second

// Server is an HTTP server tagged with the role it plays, either the public
// service or the admin endpoints.
type Server struct {
	Role string
	*http.Server
}

// ListenAndServe starts the servers and blocks until they all stopped. The
// servers are shut down when ctx is done.
func ListenAndServe(ctx context.Context, servers ...Server) {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.New("shutting down the server failed").
					WithTag("role", s.Role).
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup

	for _, s := range servers {
		wg.Add(1)

		go func(s Server) {
			defer wg.Done()

			entry := logs.WithTag("role", s.Role).WithTag("addr", s.Addr)
			entry.Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				entry.Info("stopping server")

			default:
				logs.Warn(errors.New("server stopped").
					WithTag("role", s.Role).
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}(s)
	}

	wg.Wait()
}

// MetricsPathFormatter drops the path label of redirects, bad requests and
// unknown routes, and folds the scene debug routes into one label per route
// so scene ids do not create a metric series each.
func MetricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}

	switch {
	case path == "/scenes" || !strings.HasPrefix(path, "/scenes/"):
		return path
	case strings.HasSuffix(path, "/state"):
		return "/scenes/{id}/state"
	case strings.HasSuffix(path, "/viewers"):
		return "/scenes/{id}/viewers"
	default:
		return "/scenes/{id}"
	}
}
