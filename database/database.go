package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"factorylens/models"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// ExportResult describes one completed snapshot export
type ExportResult struct {
	BatchID    string           `json:"batch_id"`
	Seed       int64            `json:"seed"`
	ExportedAt time.Time        `json:"exported_at"`
	Rows       map[string]int64 `json:"rows"`
}

// New creates a new database connection
func New(ctx context.Context, databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS fl_exports (
	batch_id     TEXT PRIMARY KEY,
	seed         BIGINT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	exported_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS fl_factories (
	id              TEXT PRIMARY KEY,
	name_fa         TEXT NOT NULL,
	name_en         TEXT NOT NULL,
	benchmark_label TEXT NOT NULL,
	home            BOOLEAN NOT NULL,
	batch_id        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fl_lines (
	id         TEXT PRIMARY KEY,
	factory_id TEXT NOT NULL,
	name_fa    TEXT NOT NULL,
	name_en    TEXT NOT NULL,
	process    TEXT NOT NULL,
	target_oee DOUBLE PRECISION NOT NULL,
	batch_id   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fl_oee_samples (
	id               TEXT PRIMARY KEY,
	factory_id       TEXT NOT NULL,
	line_id          TEXT NOT NULL,
	sample_date      TIMESTAMPTZ NOT NULL,
	planned_minutes  DOUBLE PRECISION NOT NULL,
	run_minutes      DOUBLE PRECISION NOT NULL,
	ideal_cycle_time DOUBLE PRECISION NOT NULL,
	total_count      INTEGER NOT NULL,
	good_count       INTEGER NOT NULL,
	scrap_count      INTEGER NOT NULL,
	downtime_minutes DOUBLE PRECISION NOT NULL,
	downtime_reason  TEXT NOT NULL,
	batch_id         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fl_qc_records (
	id             TEXT PRIMARY KEY,
	factory_id     TEXT NOT NULL,
	line_id        TEXT NOT NULL,
	product        TEXT NOT NULL,
	shift          TEXT NOT NULL,
	inspected_at   TIMESTAMPTZ NOT NULL,
	result         TEXT NOT NULL,
	defect_class   TEXT,
	outer_diameter DOUBLE PRECISION NOT NULL,
	free_length    DOUBLE PRECISION NOT NULL,
	load           DOUBLE PRECISION NOT NULL,
	model_version  TEXT NOT NULL,
	recipe_version TEXT NOT NULL,
	batch_id       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fl_energy_samples (
	id              TEXT PRIMARY KEY,
	factory_id      TEXT NOT NULL,
	sample_date     TIMESTAMPTZ NOT NULL,
	electricity_kw  DOUBLE PRECISION NOT NULL,
	electricity_kwh DOUBLE PRECISION NOT NULL,
	gas_m3          DOUBLE PRECISION NOT NULL,
	air_nm3h        DOUBLE PRECISION NOT NULL,
	pressure_bar    DOUBLE PRECISION NOT NULL,
	flow_m3_min     DOUBLE PRECISION NOT NULL,
	batch_id        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fl_alerts (
	id         TEXT PRIMARY KEY,
	factory_id TEXT NOT NULL,
	severity   TEXT NOT NULL,
	module     TEXT NOT NULL,
	message_fa TEXT NOT NULL,
	message_en TEXT NOT NULL,
	hint       TEXT NOT NULL,
	raised_at  TIMESTAMPTZ NOT NULL,
	batch_id   TEXT NOT NULL
);
`

// EnsureSchema creates the export tables when missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// copyTable is one table's worth of rows for a COPY load
type copyTable struct {
	name    string
	columns []string
	rows    [][]interface{}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// exportTables flattens a dataset into COPY batches in dependency order
func exportTables(ds *models.Dataset, batchID string) []copyTable {
	factories := copyTable{name: "fl_factories", columns: []string{"id", "name_fa", "name_en", "benchmark_label", "home", "batch_id"}}
	for _, f := range ds.Factories {
		factories.rows = append(factories.rows, []interface{}{f.ID, f.NameFa, f.NameEn, f.BenchmarkLabel, f.Home, batchID})
	}

	lines := copyTable{name: "fl_lines", columns: []string{"id", "factory_id", "name_fa", "name_en", "process", "target_oee", "batch_id"}}
	for _, l := range ds.Lines {
		lines.rows = append(lines.rows, []interface{}{l.ID, l.FactoryID, l.NameFa, l.NameEn, string(l.Process), l.TargetOEE, batchID})
	}

	oee := copyTable{name: "fl_oee_samples", columns: []string{
		"id", "factory_id", "line_id", "sample_date", "planned_minutes", "run_minutes", "ideal_cycle_time",
		"total_count", "good_count", "scrap_count", "downtime_minutes", "downtime_reason", "batch_id",
	}}
	for _, s := range ds.OEE {
		oee.rows = append(oee.rows, []interface{}{
			s.ID, s.FactoryID, s.LineID, s.Date, s.PlannedMinutes, s.RunMinutes, s.IdealCycleTime,
			s.TotalCount, s.GoodCount, s.ScrapCount, s.DowntimeMinutes, s.DowntimeReason, batchID,
		})
	}

	qc := copyTable{name: "fl_qc_records", columns: []string{
		"id", "factory_id", "line_id", "product", "shift", "inspected_at", "result", "defect_class",
		"outer_diameter", "free_length", "load", "model_version", "recipe_version", "batch_id",
	}}
	for _, r := range ds.QCRecords {
		qc.rows = append(qc.rows, []interface{}{
			r.ID, r.FactoryID, r.LineID, string(r.Product), string(r.Shift), r.Timestamp, string(r.Result), nullable(r.DefectClass),
			r.Measurements.OuterDiameter, r.Measurements.FreeLength, r.Measurements.Load, r.ModelVersion, r.RecipeVersion, batchID,
		})
	}

	energy := copyTable{name: "fl_energy_samples", columns: []string{
		"id", "factory_id", "sample_date", "electricity_kw", "electricity_kwh", "gas_m3", "air_nm3h",
		"pressure_bar", "flow_m3_min", "batch_id",
	}}
	for _, e := range ds.Energy {
		energy.rows = append(energy.rows, []interface{}{
			e.ID, e.FactoryID, e.Date, e.ElectricityKw, e.ElectricityKwh, e.GasM3, e.AirNm3h,
			e.PressureBar, e.FlowM3Min, batchID,
		})
	}

	alerts := copyTable{name: "fl_alerts", columns: []string{
		"id", "factory_id", "severity", "module", "message_fa", "message_en", "hint", "raised_at", "batch_id",
	}}
	for _, a := range ds.Alerts {
		alerts.rows = append(alerts.rows, []interface{}{
			a.ID, a.FactoryID, string(a.Severity), string(a.Module), a.MessageFa, a.MessageEn, a.Hint, a.Timestamp, batchID,
		})
	}

	return []copyTable{factories, lines, oee, qc, energy, alerts}
}

// ExportDataset replaces the exported snapshot with ds in one transaction
func (db *DB) ExportDataset(ctx context.Context, ds *models.Dataset) (*ExportResult, error) {
	if ds == nil {
		return nil, errors.New("no dataset to export")
	}

	result := &ExportResult{
		BatchID:    uuid.NewString(),
		Seed:       ds.Seed,
		ExportedAt: time.Now(),
		Rows:       make(map[string]int64),
	}
	tables := exportTables(ds, result.BatchID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin export: %w", err)
	}
	defer tx.Rollback()

	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, pq.QuoteIdentifier(t.name))
	}
	if _, err := tx.ExecContext(ctx, "TRUNCATE "+strings.Join(names, ", ")); err != nil {
		return nil, fmt.Errorf("failed to truncate export tables: %w", err)
	}

	for _, t := range tables {
		n, err := copyRows(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		result.Rows[t.name] = n
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fl_exports (batch_id, seed, generated_at, exported_at) VALUES ($1, $2, $3, $4)`,
		result.BatchID, result.Seed, ds.GeneratedAt, result.ExportedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record export: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit export: %w", err)
	}
	return result, nil
}

func copyRows(ctx context.Context, tx *sql.Tx, t copyTable) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(t.name, t.columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy into %s: %w", t.name, err)
	}
	defer stmt.Close()

	for _, row := range t.rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("failed to copy row into %s: %w", t.name, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to flush copy into %s: %w", t.name, err)
	}
	return int64(len(t.rows)), nil
}

// LatestExport returns the most recent export with current row counts,
// or nil when nothing was exported yet.
func (db *DB) LatestExport(ctx context.Context) (*ExportResult, error) {
	var result ExportResult
	err := db.QueryRowContext(ctx, `
		SELECT batch_id, seed, exported_at
		FROM fl_exports
		ORDER BY exported_at DESC
		LIMIT 1
	`).Scan(&result.BatchID, &result.Seed, &result.ExportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest export: %w", err)
	}

	result.Rows = make(map[string]int64)
	for _, table := range []string{"fl_factories", "fl_lines", "fl_oee_samples", "fl_qc_records", "fl_energy_samples", "fl_alerts"} {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE batch_id = $1", pq.QuoteIdentifier(table))
		if err := db.QueryRowContext(ctx, query, result.BatchID).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		result.Rows[table] = n
	}
	return &result, nil
}
