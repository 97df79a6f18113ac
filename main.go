package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"factorylens/config"
	"factorylens/database"
	"factorylens/handlers"
	"factorylens/kafka"
	"factorylens/logger"
	"factorylens/models"
	"factorylens/services"
	"factorylens/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logg.Sync()

	loc, _ := cfg.Dataset.Location()
	logg.Info("Starting FactoryLens server", "port", cfg.Server.Port, "seed", cfg.Dataset.Seed, "tz", loc.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub(logg.With("component", "websocket"), cfg.Server.AllowOrigins())
	go wsHub.Run(ctx)

	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewProducer(cfg.Kafka.BrokerList(), cfg.Kafka.ClientID, kafka.Topics{
			KPI:    cfg.Kafka.KPITopic,
			Alert:  cfg.Kafka.AlertTopic,
			Record: cfg.Kafka.RecordTopic,
		}, logg.With("component", "kafka"))
		if err != nil {
			logg.Fatal("Failed to initialize Kafka producer", "error", err)
		}
		defer producer.Close()
		logg.Info("Kafka producer initialized", "brokers", cfg.Kafka.BrokerList())
	} else {
		logg.Info("Kafka publishing disabled")
	}

	monitor := services.NewThresholdMonitor(logg.With("component", "monitor"), func(alert models.Alert) {
		wsHub.BroadcastAlert(alert)
		if producer != nil {
			if err := producer.PublishAlert(alert); err != nil {
				logg.Warn("Failed to publish alert", "alert_id", alert.ID, "error", err)
			}
		}
	})

	dashboard, err := services.NewDashboard(services.DashboardOptions{
		Seed:      cfg.Dataset.Seed,
		Location:  loc,
		Selection: cfg.Dataset.Selection(),
		Monitor:   monitor,
		Logger:    logg.With("component", "dashboard"),
	})
	if err != nil {
		logg.Fatal("Failed to initialize dashboard", "error", err)
	}

	dashboard.OnChange(func(s services.Snapshot) {
		wsHub.BroadcastSnapshot(s)
		if producer != nil {
			if err := producer.PublishSnapshot(s.Selection.FactoryID, s); err != nil {
				logg.Warn("Failed to publish snapshot", "factory_id", s.Selection.FactoryID, "error", err)
			}
		}
	})

	var exporter handlers.Exporter
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg.GetDatabaseURL())
		if err != nil {
			logg.Fatal("Failed to initialize database", "error", err)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			logg.Fatal("Failed to prepare export schema", "error", err)
		}
		exporter = db
		logg.Info("Database connection established", "host", cfg.Database.Host)

		if cfg.Database.ExportOnStart {
			result, err := db.ExportDataset(ctx, dashboard.Dataset())
			if err != nil {
				logg.Error("Initial export failed", "error", err)
			} else {
				logg.Info("Initial export completed", "batch_id", result.BatchID, "rows", result.Rows)
			}
		}
	} else {
		logg.Info("Snapshot export disabled")
	}

	go broadcastStats(ctx, cfg.Stats.Interval, dashboard, wsHub)

	handler := handlers.New(dashboard, wsHub, exporter, cfg.Dataset.Seed, logg.With("component", "http"))

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(handlers.RequestLogger(logg.With("component", "http")))
	router.Use(gin.Recovery())

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	router.Use(func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	})

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logg.Info("HTTP server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logg.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("Server forced to shutdown", "error", err)
	}

	logg.Info("Server stopped")
}

// broadcastStats pushes a compact KPI summary to websocket clients every interval
func broadcastStats(ctx context.Context, interval time.Duration, dashboard *services.Dashboard, hub *websocket.Hub) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := dashboard.Current()
			stats := map[string]interface{}{
				"selection":         s.Selection,
				"connected_clients": hub.GetClientCount(),
				"qc_fail_rate":      s.QC.FailRate,
				"oee":               s.OEE.Overall.OEE,
				"monitor_alerts":    len(s.MonitorAlerts),
				"timestamp":         time.Now(),
			}
			if live := s.LiveEnergy; live != nil {
				stats["pressure_bar"] = live.PressureBar
				stats["electricity_kw"] = live.ElectricityKw
			}
			hub.BroadcastStats(stats)
		}
	}
}
