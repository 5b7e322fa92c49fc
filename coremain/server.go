package coremain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pmkol/rrcache-x/mlog"
	"github.com/pmkol/rrcache-x/pkg/resolver_cache"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger *zap.Logger

	cache *resolver_cache.ResolverCache

	httpAPIMux *http.ServeMux
	metricsReg *prometheus.Registry
}

// NewServer builds the cache and the http api from cfg.
func NewServer(cfg *Config, lg *zap.Logger) (*Server, error) {
	cfg.Init()
	classes, err := cfg.Cache.classes()
	if err != nil {
		return nil, err
	}
	cleanerInterval, err := cfg.Cache.cleanerInterval()
	if err != nil {
		return nil, err
	}

	rc, err := resolver_cache.NewResolverCache(resolver_cache.ResolverCacheOpts{
		Size:            cfg.Cache.Size,
		Classes:         classes,
		CleanerInterval: cleanerInterval,
		Logger:          lg.Named("cache"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init cache, %w", err)
	}

	s := &Server{
		logger:     lg,
		cache:      rc,
		httpAPIMux: http.NewServeMux(),
		metricsReg: newMetricsReg(),
	}
	if err := rc.Register(s.GetMetricsReg()); err != nil {
		rc.Close()
		return nil, err
	}

	s.httpAPIMux.Handle("/metrics", promhttp.HandlerFor(s.metricsReg, promhttp.HandlerOpts{}))
	s.httpAPIMux.HandleFunc("/debug/pprof/", pprof.Index)
	s.httpAPIMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.httpAPIMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.httpAPIMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.httpAPIMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.httpAPIMux.Handle("/cache/", newAPIHandler(rc, lg.Named("api")))
	return s, nil
}

// RunServer serves the http api of cfg until ctx is done.
func RunServer(ctx context.Context, cfg *Config) error {
	lg, err := mlog.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	s, err := NewServer(cfg, lg)
	if err != nil {
		return err
	}
	defer s.cache.Close()

	httpAddr := cfg.API.HTTP
	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: s.httpAPIMux,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("starting api http server", zap.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		lg.Info("shutting down api http server")
		sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sCtx)
	})
	return g.Wait()
}

func (s *Server) GetCache() *resolver_cache.ResolverCache {
	return s.cache
}

func (s *Server) GetMetricsReg() prometheus.Registerer {
	return prometheus.WrapRegistererWithPrefix("rrcache_", s.metricsReg)
}

func (s *Server) GetHTTPAPIMux() *http.ServeMux {
	return s.httpAPIMux
}

func newMetricsReg() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
