// Package telemetry exports the latest readings to Prometheus.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type service struct {
	repo     Repository
	cfg      Config
	registry *prometheus.Registry
	server   *http.Server
	log      logger.Logger
	done     chan struct{}
}

// NewService registers the gauges on a private registry and, when an
// address is configured, starts serving them.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	cfg = cfg.withDefaults()

	if log == nil {
		log = logger.Component("telemetry")
	}

	registry := prometheus.NewRegistry()
	repo, err := newRepository(registry, cfg.Namespace)
	if err != nil {
		return nil, err
	}

	s := &service{
		repo:     repo,
		cfg:      cfg,
		registry: registry,
		log:      log,
	}

	if cfg.Listen != "" {
		if err := s.listen(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *service) listen() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return errors.New().Wrap(ErrListen, err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s.Handler())
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Telemetry listener stopped")
		}
	}()

	s.log.Info().
		Str("address", ln.Addr().String()).
		Str("path", s.cfg.Path).
		Msg("Serving telemetry")

	return nil
}

func (s *service) Report(ctx context.Context, reports []report.Report) error {
	select {
	case <-ctx.Done():
		return errors.New().Wrap(ErrOperationTimeout, ctx.Err())
	default:
		s.repo.Store(reports)
	}

	return nil
}

func (s *service) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	<-s.done

	return nil
}
