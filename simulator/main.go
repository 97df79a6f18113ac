package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"factorylens/config"
	"factorylens/generator"
	"factorylens/kafka"
	"factorylens/logger"
)

// The simulator regenerates the dataset from the configured seed and replays
// it to the record topic one calendar day per tick.
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

	if !cfg.Kafka.Enabled() {
		logg.Fatal("KAFKA_BROKERS must be set for the replay simulator")
	}

	loc, _ := cfg.Dataset.Location()
	ds := generator.Generate(generator.Options{Seed: cfg.Dataset.Seed, Location: loc})
	batches := Batches(ds, loc)

	producer, err := kafka.NewProducer(cfg.Kafka.BrokerList(), cfg.Kafka.ClientID+"-simulator", kafka.Topics{
		KPI:    cfg.Kafka.KPITopic,
		Alert:  cfg.Kafka.AlertTopic,
		Record: cfg.Kafka.RecordTopic,
	}, logg.With("component", "kafka"))
	if err != nil {
		logg.Fatal("Failed to create Kafka producer", "error", err)
	}
	defer producer.Close()

	logg.Info("Starting dataset replay",
		"seed", cfg.Dataset.Seed,
		"days", len(batches),
		"frequency", cfg.Simulator.Frequency,
		"topic", cfg.Kafka.RecordTopic,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := NewReplayer(producer, cfg.Simulator.Frequency, logg).Run(ctx, batches)
	switch {
	case errors.Is(err, context.Canceled):
		logg.Info("Replay interrupted", "days", stats.Days, "published", stats.Published)
	case err != nil:
		logg.Error("Replay finished with failures", "error", err, "published", stats.Published, "failed", stats.Failed)
	default:
		logg.Info("Replay complete", "days", stats.Days, "published", stats.Published)
	}
}
