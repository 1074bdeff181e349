package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/access"
	"face-door-lock/internal/alert"
	"face-door-lock/internal/api/handlers"
	"face-door-lock/internal/cleanup"
	"face-door-lock/internal/core/processor"
	"face-door-lock/internal/core/workerpool"
	"face-door-lock/internal/db/repository"
	"face-door-lock/internal/door"
	"face-door-lock/internal/integrations/email"
	"face-door-lock/internal/integrations/homeassistant"
	"face-door-lock/internal/integrations/insightface"
	"face-door-lock/internal/integrations/mqtt"
	"face-door-lock/internal/integrations/opencv"
	"face-door-lock/internal/integrations/serial"
	"face-door-lock/internal/liveness"
	"face-door-lock/internal/matcher"
	"face-door-lock/internal/session"
	"face-door-lock/internal/sse"
	"face-door-lock/internal/tracker"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	sideEffectWorkers = 4
	statusInterval    = time.Second
	shutdownTimeout   = 10 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the camera loop and the status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// enrollment store, loaded once
	repo, err := openRepository()
	if err != nil {
		return err
	}
	known, err := repo.LoadKnown()
	if err != nil {
		return fmt.Errorf("failed to load enrolled encodings: %w", err)
	}
	if len(known) == 0 {
		log.Warn("No identities enrolled; every face will be treated as unknown")
	}
	m := matcher.New(known, cfg.Detection.Tolerance)
	log.Infof("Loaded %d encodings for %d identities", m.Size(), len(m.Names()))

	camera, err := opencv.OpenCamera(cfg.Camera)
	if err != nil {
		return err
	}
	defer camera.Close()

	detector := insightface.NewService(cfg.Detection)
	if !detector.IsAvailable(ctx) {
		log.Warnf("Face detection service at %s is not reachable yet; ticks stay empty until it is", cfg.Detection.URL)
	}

	pool := workerpool.New(sideEffectWorkers, cfg.Alert.QueueSize)

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to connect MQTT client: %v. Continuing, reconnects are automatic.", err)
		}
	}

	actuator, closeActuator := buildActuator(cfg, mqttClient)

	var notifier access.Notifier
	var queue *alert.Queue
	if cfg.Alert.Enabled {
		dispatcher, err := email.NewDispatcher(cfg.Alert)
		if err != nil {
			log.Warnf("Unknown person alerts will not be sent: %v", err)
		} else {
			queue = alert.NewQueue(pool, dispatcher)
			notifier = queue
		}
	}

	controller := access.NewController(access.Config{
		Session: session.Config{
			TextureThreshold: cfg.Liveness.TextureVariance,
			RequiredFrames:   cfg.Behavior.RequiredFrames,
			Tracker: tracker.Config{
				EARThreshold:     cfg.Behavior.EARThreshold,
				MotionVariance:   cfg.Behavior.MotionVariance,
				MotionCapacity:   cfg.Behavior.MotionCapacity,
				MotionMinSamples: cfg.Behavior.MotionMinSamples,
			},
		},
		Door: door.Config{
			AutoCloseDelay: cfg.Door.AutoCloseDelay,
			SendDelay:      cfg.Door.SendDelay,
		},
		AlertGrace:  cfg.Alert.GracePeriod,
		EvidenceDir: cfg.Alert.EvidenceDir,
	}, m, actuator, notifier)
	if queue != nil {
		queue.OnFailure(controller.ReportAlertFailure)
	}

	controller.AddObserver(repository.NewRecorder(repo, pool))
	hub := sse.NewHub()
	go hub.Run(ctx)
	controller.AddObserver(hub)

	if mqttClient != nil {
		publisher := homeassistant.NewPublisher(mqttClient, pool)
		controller.AddObserver(publisher)
		if cfg.MQTT.HomeAssistant.Enabled {
			if err := homeassistant.NewDiscoveryManager(mqttClient, cfg.MQTT.HomeAssistant).Register(); err != nil {
				log.Warnf("Home Assistant discovery failed: %v", err)
			}
		}
		go publisher.Run(ctx, statusInterval, controller.Status)
	}

	cleanupService := cleanup.NewService(repo, cfg.Cleanup.RetentionDays, cfg.Alert.EvidenceDir, cfg.Cleanup.Interval)
	cleanupService.StartBackgroundCleanup()

	snapshots := opencv.NewSnapshotService(20)
	var server *http.Server
	if cfg.Server.Enabled {
		router := handlers.NewRouter(handlers.NewAPIHandler(controller, repo, hub, pool), snapshots)
		server = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		}
		go func() {
			log.Infof("Starting status API on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Status API failed: %v", err)
			}
		}()
	}

	pipeline := processor.NewPipeline(cfg.Camera, camera, detector, liveness.NewAnalyzer(cfg.Liveness), controller, snapshots)
	runErr := pipeline.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	log.WithField("stats", pipeline.Stats()).Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Status API shutdown: %v", err)
		}
	}
	cleanupService.StopBackgroundCleanup()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Pending side effects abandoned: %v", err)
	}
	closeActuator()
	if mqttClient != nil {
		mqttClient.Stop()
	}
	return runErr
}

// buildActuator selects the lock transport. The returned func releases it.
func buildActuator(cfg *config.Config, mqttClient *mqtt.Client) (door.Actuator, func()) {
	switch cfg.Actuator.Type {
	case "serial":
		a := serial.NewActuator(cfg.Actuator)
		if err := a.Connect(); err != nil {
			log.Warnf("Lock controller not available on %s: %v. Door commands are logged only until it appears.", cfg.Actuator.SerialPort, err)
		}
		return a, func() {
			if err := a.Close(); err != nil {
				log.Warnf("Failed to close serial port: %v", err)
			}
		}
	case "mqtt":
		if mqttClient == nil {
			log.Warn("actuator.type is mqtt but MQTT is disabled; door commands are logged only")
			return door.NopActuator{}, func() {}
		}
		return mqtt.NewActuator(mqttClient, cfg.Actuator.CommandTopic), func() {}
	default:
		log.Info("No lock actuator configured; door commands are logged only")
		return door.NopActuator{}, func() {}
	}
}
