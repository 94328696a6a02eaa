package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/argus-video/argus/internal/alerting"
	"github.com/argus-video/argus/internal/config"
	"github.com/argus-video/argus/internal/engine"
	"github.com/argus-video/argus/internal/executor"
	"github.com/argus-video/argus/internal/live"
	"github.com/argus-video/argus/internal/logger"
	"github.com/argus-video/argus/internal/media"
	"github.com/argus-video/argus/internal/notify"
	"github.com/argus-video/argus/internal/sched"
	"github.com/argus-video/argus/internal/store"
	"github.com/argus-video/argus/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Argus",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	st, err := store.Open(cfg.Store.DataDir, log)
	if err != nil {
		log.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	images, err := alerting.NewImageStore(cfg.Alerts.ImageDir, alerting.S3Options{
		Enabled:   cfg.Alerts.S3.Enabled,
		Endpoint:  cfg.Alerts.S3.Endpoint,
		AccessKey: cfg.Alerts.S3.AccessKey,
		SecretKey: cfg.Alerts.S3.SecretKey,
		Bucket:    cfg.Alerts.S3.Bucket,
		UseSSL:    cfg.Alerts.S3.UseSSL,
	}, log)
	if err != nil {
		log.Error("Failed to prepare alert image storage", "error", err)
		os.Exit(1)
	}

	dispatcher, err := notify.FromConfig(cfg.Notify, log)
	if err != nil {
		log.Error("Failed to build notification sinks", "error", err)
		os.Exit(1)
	}
	defer dispatcher.Close()

	factory := engine.NewFactory(engine.Options{
		InputWidth:   cfg.Inference.InputWidth,
		InputHeight:  cfg.Inference.InputHeight,
		NMSThreshold: cfg.Inference.NMSThreshold,
	}, log)

	hub := live.NewHub()

	mediaOpts := media.Options{
		ReconnectDelay: cfg.Media.ReconnectDelay,
		MaxReconnects:  cfg.Media.MaxReconnects,
		ReadInterval:   cfg.Media.ReadInterval,
	}

	buildExecutor := func(task store.TaskDefinition, model store.Model) (sched.TaskExecutor, error) {
		if !cfg.Scheduler.PlatformMatches(model.Platform) {
			return nil, fmt.Errorf("model %s targets platform %s, node runs %s",
				model.Name, model.Platform, cfg.Scheduler.Platform)
		}
		eng, err := factory.Create(model.Platform,
			filepath.Join(cfg.Scheduler.ModelDir, model.FilePath), model.Labels)
		if err != nil {
			return nil, err
		}
		if err := eng.Load(); err != nil {
			return nil, err
		}
		return executor.New(task, model, executor.Deps{
			Engine: eng,
			Sources: func(spec store.VideoSourceSpec) executor.FrameReader {
				return media.NewFrameSource(spec.URL, spec.Name, mediaOpts, log)
			},
			Alerts:      st,
			Images:      images,
			Notifier:    dispatcher,
			Hub:         hub,
			Logger:      log,
			JPEGQuality: cfg.Alerts.JPEGQuality,
		})
	}

	scheduler := sched.New(st, buildExecutor, cfg.Scheduler.TickInterval, log)
	if err := scheduler.Start(); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	var server *web.Server
	if cfg.Web.Enabled {
		server = web.NewServer(cfg.Web, st, scheduler, hub, cfg.Alerts.ImageDir, log)
		if err := server.Start(); err != nil {
			log.Error("Failed to start web server", "error", err)
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Error stopping web server", "error", err)
		}
	}
	scheduler.Stop()

	log.Info("Shutdown complete")
}
