package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/engine"
	"github.com/antomihe/SustainableCity/livestate"
	"github.com/antomihe/SustainableCity/logging"
	"github.com/antomihe/SustainableCity/messaging"
	"github.com/antomihe/SustainableCity/notify"
	"github.com/antomihe/SustainableCity/simulate"
	"github.com/antomihe/SustainableCity/store"
	"github.com/antomihe/SustainableCity/www"
)

var Version = "dev"

var log = logging.For("main")

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "sustainablecity.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("sustainablecity", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Init(cfg.App.Name, cfg.Log.Level)

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Infof("database open (%s)", cfg.Database.Driver)

	// Live container state, Redis-backed when enabled
	var redisStore *livestate.RedisStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		redisStore = livestate.NewRedisStore(redisClient)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisStore.Ping(ctx); err != nil {
			log.Warnf("redis not available (%v), live state will fall back to SQL", err)
		} else {
			log.Infof("redis connected (%s)", cfg.Redis.Address)
		}
		cancel()
	}
	liveState := livestate.NewManager(db, redisStore)
	if err := liveState.SyncFromSQL(); err != nil {
		log.Warnf("live state sync from SQL: %v", err)
	}

	// Messaging client
	var msgClient *messaging.Client
	if cfg.Messaging.Backend != "" {
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Warnf("messaging connect failed (%v)", err)
		} else {
			log.Infof("messaging connected (%s)", cfg.Messaging.Backend)
		}
		defer msgClient.Close()
	}

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		LiveState:  liveState,
		MsgClient:  msgClient,
		Notifier:   notify.New(cfg.Mail),
	})
	eng.Start()
	defer eng.Stop()

	if msgClient.Enabled() {
		// Sensor telemetry (inbound)
		consumer := messaging.NewSensorConsumer(msgClient, cfg.Messaging.SensorTopic, eng.Lifecycle())
		if err := consumer.Start(); err != nil {
			log.Warnf("sensor consumer subscribe failed: %v", err)
		} else {
			log.Infof("sensor consumer listening on %s", cfg.Messaging.SensorTopic)
		}

		// Outbox drainer (outbound container events)
		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
		drainer.Start()
		defer drainer.Stop()
	}

	// Demo-mode simulation
	if cfg.Demo() {
		sim := simulate.New(eng.Lifecycle(), db, cfg.Simulation, cfg.Location())
		if err := sim.Start(); err != nil {
			log.Fatalf("start simulation: %v", err)
		}
		defer sim.Stop()
		log.Info("demo mode: simulation jobs scheduled")
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Infof("ready (mode %s)", cfg.App.Mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		reload(eng, *configPath)
	}

	log.Info("shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("web server shutdown: %v", err)
	}

	log.Info("stopped")
}

// reload re-reads the runtime-tunable settings: log level, alert contact and
// the messaging connection. Everything else needs a restart.
func reload(eng *engine.Engine, path string) {
	fresh, err := config.Load(path)
	if err != nil {
		log.Errorf("reload config: %v", err)
		return
	}

	cfg := eng.AppConfig()
	cfg.Lock()
	cfg.Log.Level = fresh.Log.Level
	cfg.Alerts.AdminEmail = fresh.Alerts.AdminEmail
	messagingChanged := cfg.Messaging.Backend == fresh.Messaging.Backend &&
		fmt.Sprint(cfg.Messaging) != fmt.Sprint(fresh.Messaging)
	if messagingChanged {
		cfg.Messaging = fresh.Messaging
	}
	cfg.Unlock()

	if level, err := logrus.ParseLevel(fresh.Log.Level); err == nil {
		logging.Logger.SetLevel(level)
	}
	log.Infof("config reloaded from %s", path)

	if fresh.Messaging.Backend != eng.AppConfig().Messaging.Backend {
		log.Warn("messaging backend changes need a restart")
	}
	if messagingChanged {
		eng.ReconfigureMessaging()
	}
}
