// Package app assembles the gemflux application with uber-fx and starts the
// batch run on application startup.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/tidewaterlab/gemflux/internal/assemble"
	"github.com/tidewaterlab/gemflux/internal/config"
	"github.com/tidewaterlab/gemflux/internal/interp"
	"github.com/tidewaterlab/gemflux/internal/metrics"
	"github.com/tidewaterlab/gemflux/internal/normalize"
	"github.com/tidewaterlab/gemflux/internal/pipeline"
	"github.com/tidewaterlab/gemflux/internal/rpn"
	"github.com/tidewaterlab/gemflux/internal/solar"
	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
	"github.com/tidewaterlab/gemflux/internal/writer"
)

// RunApplication sets up and runs the batch application using uber-fx.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level based on loaded configuration
	logger.SetLogLevel(cfg.Gemflux.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Gemflux.System.Logging.Level)

	app := fx.New(
		fx.Supply(
			cfg,
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		logger.Module,
		config.Module,
		metrics.Module,
		rpn.Module,
		normalize.Module,
		assemble.Module,
		interp.Module,
		solar.Module,
		writer.Module,
		pipeline.Module,

		// Start the main application logic
		fx.Invoke(fx.Annotate(startBatchRun, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // p *pipeline.Pipeline
			"",              // cfg *config.Config
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	// Execute the application
	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// startBatchRun is invoked by Fx to begin the batch run.
func startBatchRun(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	p *pipeline.Pipeline,
	cfg *config.Config,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: onStartBatchRun(p, cfg, shutdowner, appCtx),
		OnStop:  onStopApplication(),
	})
}

// onStartBatchRun is an Fx Hook helper function that starts the batch run upon
// application startup and shuts the application down when it finishes.
func onStartBatchRun(
	p *pipeline.Pipeline,
	cfg *config.Config,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		start, end, err := parseDateRange(cfg)
		if err != nil {
			return err
		}

		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in batch run: %v", r)
				}
				logger.Infof("Requesting application shutdown after batch completion.")
				if err := shutdowner.Shutdown(); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			logger.Infof("Starting batch run for %s through %s...",
				start.Format("2006-01-02"), end.Format("2006-01-02"))
			if err := p.Run(appCtx, start, end); err != nil {
				logger.Errorf("Batch run finished with failures: %v", err)
				return
			}
			logger.Infof("Batch run completed successfully.")
		}()
		return nil
	}
}

// onStopApplication is an Fx Hook helper function that logs application shutdown.
func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}

// parseDateRange reads and validates the configured batch date range.
func parseDateRange(cfg *config.Config) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	start, err := time.ParseInLocation(layout, cfg.Gemflux.Batch.StartDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, exception.Newf("app", "invalid start date %q", cfg.Gemflux.Batch.StartDate, err)
	}
	end, err := time.ParseInLocation(layout, cfg.Gemflux.Batch.EndDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, exception.Newf("app", "invalid end date %q", cfg.Gemflux.Batch.EndDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, exception.Newf("app", "end date %s precedes start date %s",
			cfg.Gemflux.Batch.EndDate, cfg.Gemflux.Batch.StartDate)
	}
	return start, end, nil
}
