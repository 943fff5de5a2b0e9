package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-items/internal/api"
	"github.com/nerrad567/gray-logic-items/internal/cache/rediscache"
	"github.com/nerrad567/gray-logic-items/internal/cache/sqlitecache"
	"github.com/nerrad567/gray-logic-items/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-items/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-items/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-items/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-items/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-items/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-items/internal/item"
	"github.com/nerrad567/gray-logic-items/internal/itemconfig"
	"github.com/nerrad567/gray-logic-items/internal/plugins/history"
	"github.com/nerrad567/gray-logic-items/internal/plugins/mqttbridge"
	"github.com/nerrad567/gray-logic-items/internal/scene"
	"github.com/nerrad567/gray-logic-items/internal/scheduler"
	"github.com/nerrad567/gray-logic-items/migrations"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the item engine (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

// cleanup collects shutdown steps and runs them in reverse order.
type cleanup []func()

func (c *cleanup) add(fn func()) { *c = append(*c, fn) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Gray Logic Items",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "cache", cfg.Cache.Backend)

	var shutdown cleanup
	defer shutdown.run()

	checks := make(map[string]api.HealthChecker)
	m := metrics.New()

	store, err := openCache(ctx, cfg, log, checks, &shutdown)
	if err != nil {
		return err
	}

	sched := scheduler.New(
		scheduler.WithWorkers(cfg.Scheduler.Workers),
		scheduler.WithQueueSize(cfg.Scheduler.QueueSize),
		scheduler.WithLocation(cfg.Location()),
		scheduler.WithLogger(log.Component("scheduler")),
		scheduler.WithMetrics(m),
	)

	nodes, err := itemconfig.Load(cfg.Items.Path)
	if err != nil {
		return fmt.Errorf("loading items: %w", err)
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"), m)
	scenes := scene.New(cfg.Items.ScenesDir, log.Component("scene"))
	plugins := []item.Plugin{hub, scenes}

	var (
		mqttClient *mqtt.Client
		bridge     *mqttbridge.Bridge
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		shutdown.add(func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		})
		mqttClient.SetLogger(log.Component("mqtt"))
		checks["mqtt"] = mqttClient
		bridge = mqttbridge.New(mqttClient, log.Component("mqttbridge"))
		plugins = append(plugins, bridge)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			// History is optional; the engine runs without it.
			log.Warn("InfluxDB unavailable, item history disabled", "error", influxErr)
		} else {
			shutdown.add(func() {
				log.Info("closing InfluxDB")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			})
			influxClient.SetOnError(func(writeErr error) {
				log.Warn("InfluxDB write failed", "error", writeErr)
			})
			checks["influxdb"] = influxClient
			plugins = append(plugins, history.New(influxClient, log.Component("history")))
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	tree := item.NewTree(item.Deps{
		Scheduler:   sched,
		Persistence: store,
		Logger:      log.Component("items"),
		Metrics:     m,
	}, plugins...)
	if buildErr := tree.Build(ctx, nodes); buildErr != nil {
		log.Warn("item configuration errors", "error", buildErr)
	}
	scenes.Bind(tree)
	if sceneErr := scenes.Validate(); sceneErr != nil {
		log.Warn("scene configuration errors", "error", sceneErr)
	}
	log.Info("item tree built", "items", tree.Len(), "scenes", len(scenes.Scenes()))

	tree.InitPrerun()
	if startErr := sched.Start(ctx); startErr != nil {
		return fmt.Errorf("starting scheduler: %w", startErr)
	}
	shutdown.add(func() {
		log.Info("stopping scheduler")
		sched.Stop()
	})
	tree.InitRun()

	if bridge != nil {
		if subErr := bridge.Start(); subErr != nil {
			return fmt.Errorf("subscribing to item set topics: %w", subErr)
		}
		mqttClient.SetOnConnect(bridge.PublishAll)
		bridge.PublishAll()
		log.Info("MQTT item bridge started", "items", bridge.Items())
	}

	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Items:   tree,
		Hub:     hub,
		Scenes:  scenes,
		Metrics: m.Handler(),
		Checks:  checks,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	shutdown.add(func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	})

	log.Info("Gray Logic Items started")
	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// openCache opens the configured cache backend. The returned Persistence
// is nil for backend "none".
func openCache(ctx context.Context, cfg *config.Config, log *logging.Logger, checks map[string]api.HealthChecker, shutdown *cleanup) (item.Persistence, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		shutdown.add(func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		})
		applied, err := db.Migrate(ctx, migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		checks["database"] = db
		log.Info("database connected", "path", db.Path(), "migrations_applied", applied)
		return sqlitecache.New(db), nil

	case config.CacheBackendRedis:
		store := rediscache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, rediscache.WithPrefix(cfg.Redis.KeyPrefix))
		shutdown.add(func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing redis", "error", closeErr)
			}
		})
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		checks["redis"] = api.HealthCheckFunc(store.Ping)
		log.Info("redis connected", "addr", cfg.Redis.Addr)
		return store, nil

	case config.CacheBackendNone:
		log.Warn("item cache disabled, cached items start from their defaults")
		return nil, nil
	}
	return nil, errors.New("unknown cache backend: " + cfg.Cache.Backend)
}
