package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"factorylens/logger"
	"factorylens/models"
)

// Publisher sends one dataset record downstream
type Publisher interface {
	PublishRecord(r models.Record) error
}

// DayBatch holds every record that occurred on one calendar day
type DayBatch struct {
	Day     string
	Records []models.Record
}

// Batches groups the time series by calendar day in loc, oldest day first.
// Records inside a day are in chronological order.
func Batches(ds *models.Dataset, loc *time.Location) []DayBatch {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[string][]models.Record)
	add := func(r models.Record) {
		day := r.OccurredAt().In(loc).Format("2006-01-02")
		byDay[day] = append(byDay[day], r)
	}
	for _, r := range ds.QCRecords {
		add(r)
	}
	for _, s := range ds.OEE {
		add(s)
	}
	for _, e := range ds.Downtime {
		add(e)
	}
	for _, s := range ds.Energy {
		add(s)
	}
	for _, a := range ds.Alerts {
		add(a)
	}

	batches := make([]DayBatch, 0, len(byDay))
	for day, records := range byDay {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].OccurredAt().Before(records[j].OccurredAt())
		})
		batches = append(batches, DayBatch{Day: day, Records: records})
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].Day < batches[j].Day })
	return batches
}

// ReplayStats summarizes a replay run
type ReplayStats struct {
	Days      int
	Published int
	Failed    int
}

// Replayer publishes one day batch per tick
type Replayer struct {
	publisher Publisher
	frequency time.Duration
	log       *logger.Logger
}

func NewReplayer(p Publisher, frequency time.Duration, log *logger.Logger) *Replayer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Replayer{publisher: p, frequency: frequency, log: log}
}

// Run publishes batches until all are sent or ctx is cancelled. Failed
// records are logged and counted; the replay carries on.
func (r *Replayer) Run(ctx context.Context, batches []DayBatch) (ReplayStats, error) {
	var stats ReplayStats
	if len(batches) == 0 {
		return stats, nil
	}

	ticker := time.NewTicker(r.frequency)
	defer ticker.Stop()

	for i, batch := range batches {
		if i > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-ticker.C:
			}
		}
		for _, rec := range batch.Records {
			if err := r.publisher.PublishRecord(rec); err != nil {
				stats.Failed++
				r.log.Warn("Failed to publish record", "day", batch.Day, "factory_id", rec.FactoryRef(), "error", err)
				continue
			}
			stats.Published++
		}
		stats.Days++
		r.log.Info("Day replayed", "day", batch.Day, "records", len(batch.Records))
	}

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d of %d records failed", stats.Failed, stats.Failed+stats.Published)
	}
	return stats, nil
}
