package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

// Module provides the metric recorder. When the metrics endpoint is enabled a
// Prometheus recorder is provided and served over HTTP; otherwise a noop
// recorder is used.
var Module = fx.Options(
	fx.Provide(newRecorder),
	fx.Invoke(registerMetricsServer),
)

func newRecorder(cfg *config.Config) Recorder {
	if cfg.Gemflux.Metrics.Enabled {
		return NewPrometheusRecorder()
	}
	return NewNoopRecorder()
}

// registerMetricsServer starts the /metrics HTTP listener when the provided
// recorder is a PrometheusRecorder.
func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, recorder Recorder) {
	promRecorder, ok := recorder.(*PrometheusRecorder)
	if !ok {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRecorder.GetRegistry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Gemflux.Metrics.Port),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("Serving metrics on %s/metrics", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Errorf("Metrics server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}
