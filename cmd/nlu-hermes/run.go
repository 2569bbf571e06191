package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/nlu-hermes/internal/api"
	"github.com/nerrad567/nlu-hermes/internal/bridges/hermes"
	"github.com/nerrad567/nlu-hermes/internal/graphstore"
	"github.com/nerrad567/nlu-hermes/internal/infrastructure/config"
	"github.com/nerrad567/nlu-hermes/internal/infrastructure/influxdb"
	"github.com/nerrad567/nlu-hermes/internal/infrastructure/logging"
	"github.com/nerrad567/nlu-hermes/internal/infrastructure/mqtt"
	"github.com/nerrad567/nlu-hermes/internal/nlu"
	"github.com/nerrad567/nlu-hermes/internal/transform"
)

// startupTrainID identifies the training run made from sentence files at
// startup.
const startupTrainID = "startup"

// run wires the components and blocks until ctx is cancelled.
//
// Startup failures (bad transform settings, unreadable sentence files, an
// unreachable broker or InfluxDB) are returned; main exits 1 for them.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting nlu-hermes",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = defaultClientID()
	}

	tf, err := buildTransform(cfg.NLU)
	if err != nil {
		return fmt.Errorf("configuring transforms: %w", err)
	}

	store := openGraphStore(ctx, cfg.NLU, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := hermes.NewMetrics(registry)

	checks := map[string]api.HealthCheck{
		"graph_store": store.HealthCheck,
	}

	// Connect to InfluxDB (optional)
	var telemetry hermes.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.With("component", "mqtt"))

	bridge, err := hermes.NewBridge(hermes.BridgeOptions{
		MQTTClient:        mqttClient,
		Store:             store,
		Recognizer:        nlu.NewRecognizer(),
		Trainer:           nlu.NewTrainer(nlu.TrainerOptions{MaxSentencesPerIntent: cfg.NLU.MaxSentences}),
		SiteIDs:           cfg.NLU.SiteIDs,
		Transform:         tf,
		TransformTraining: cfg.NLU.TransformTraining,
		Fuzzy:             cfg.NLU.Fuzzy,
		WriteGraph:        cfg.NLU.WriteGraph,
		TrainQueueSize:    cfg.NLU.TrainQueueSize,
		QoS:               byte(cfg.MQTT.QoS), //nolint:gosec // Validated to 0..2
		ClientID:          cfg.MQTT.Broker.ClientID,
		Version:           version,
		HealthInterval:    cfg.GetHealthInterval(),
		Logger:            log.With("component", "bridge"),
		Metrics:           metrics,
		Telemetry:         telemetry,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	checks["mqtt"] = mqttHealth(mqttClient, bridge.Topics())

	if err := trainAtStartup(ctx, bridge, store, cfg, log); err != nil {
		return err
	}

	willTopic, willPayload, err := bridge.LastWill()
	if err != nil {
		return fmt.Errorf("building last will: %w", err)
	}
	mqttClient.SetWill(willTopic, willPayload)
	mqttClient.SetOnConnect(bridge.HandleConnected)
	mqttClient.SetOnDisconnect(bridge.HandleDisconnected)

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}

	if err := mqttClient.Connect(); err != nil {
		bridge.Stop()
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// The bridge publishes its final health before the session closes.
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Port > 0 {
		server, srvErr := api.New(api.Deps{
			Config:  cfg.HTTP,
			Logger:  log.With("component", "http"),
			Bridge:  bridge,
			Metrics: registry,
			Version: version,
			Checks:  checks,
		})
		if srvErr != nil {
			return fmt.Errorf("creating HTTP server: %w", srvErr)
		}
		if srvErr := server.Start(gctx); srvErr != nil {
			return fmt.Errorf("starting HTTP server: %w", srvErr)
		}
		g.Go(func() error {
			<-gctx.Done()
			return server.Close()
		})
	}

	if cfg.Sentences.Watch && len(cfg.Sentences.Files) > 0 {
		watcher, watchErr := hermes.NewSentenceWatcher(hermes.WatcherOptions{
			Files:  cfg.Sentences.Files,
			Delay:  cfg.GetWatchDelay(),
			SiteID: cfg.SentenceSiteID(),
			Submit: bridge.SubmitTrain,
			Logger: log.With("component", "watcher"),
		})
		if watchErr != nil {
			return fmt.Errorf("creating sentence watcher: %w", watchErr)
		}
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// subscriptionChecker is the part of the MQTT client read by /health.
type subscriptionChecker interface {
	HealthCheck(ctx context.Context) error
	HasSubscription(filter string) bool
}

// mqttHealth fails while the broker session is down or while any of the
// bridge's filters is missing from the client's subscription set.
func mqttHealth(client subscriptionChecker, topics []string) api.HealthCheck {
	return func(ctx context.Context) error {
		if err := client.HealthCheck(ctx); err != nil {
			return err
		}
		for _, topic := range topics {
			if !client.HasSubscription(topic) {
				return fmt.Errorf("not subscribed to %s", topic)
			}
		}
		return nil
	}
}

// defaultClientID returns a client id unique to this process.
func defaultClientID() string {
	return "nlu-hermes-" + uuid.NewString()[:8]
}

// buildTransform chains number expansion and casing. Numbers are spelled
// out first so the casing applies to the spelled words too.
func buildTransform(cfg config.NLUConfig) (transform.Func, error) {
	casing, err := transform.ParseCasing(cfg.Casing)
	if err != nil {
		return nil, err
	}

	var numbers transform.Func
	if cfg.ReplaceNumbers {
		numbers, err = transform.NumberExpander(cfg.Language)
		if err != nil {
			return nil, err
		}
	}

	return transform.Chain(numbers, casing.Func()), nil
}

// openGraphStore creates the store and loads the configured graph. A
// missing or unreadable graph leaves the store empty; the bridge then
// answers every query as not recognised until a train succeeds.
func openGraphStore(ctx context.Context, cfg config.NLUConfig, log *logging.Logger) *graphstore.Store {
	if cfg.IntentGraph == "" {
		log.Info("no intent graph configured")
		return graphstore.New(nil)
	}

	store := graphstore.New(graphstore.PersisterFor(cfg.IntentGraph))
	g, err := store.Load(ctx)
	switch {
	case err == nil:
		log.Info("intent graph loaded",
			"path", store.Location(),
			"intents", len(g.IntentNames()),
			"sentences", g.SentenceCount(),
		)
	case errors.Is(err, graphstore.ErrNotFound):
		log.Info("intent graph not found, starting empty", "path", store.Location())
	default:
		log.Error("failed to load intent graph, starting empty", "error", err)
	}
	return store
}

// trainAtStartup trains from the sentence files when no graph was loaded.
func trainAtStartup(ctx context.Context, bridge *hermes.Bridge, store *graphstore.Store, cfg *config.Config, log *logging.Logger) error {
	files := cfg.Sentences.Files
	if len(files) == 0 {
		return nil
	}
	if _, ok := store.Snapshot(); ok {
		return nil
	}

	sentences, err := hermes.ReadSentenceFiles(files)
	if err != nil {
		return err
	}

	g, err := bridge.Train(ctx, hermes.NluTrain{
		ID:        startupTrainID,
		Sentences: sentences,
		SiteID:    cfg.SentenceSiteID(),
	})
	if err != nil {
		return fmt.Errorf("training from sentence files: %w", err)
	}

	log.Info("trained from sentence files",
		"files", files,
		"intents", len(g.IntentNames()),
		"sentences", g.SentenceCount(),
	)
	return nil
}
