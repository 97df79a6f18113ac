package services

import (
	"slices"
	"sync"
	"time"

	"factorylens/generator"
	"factorylens/logger"
	"factorylens/models"
)

// recentAlertCount is how many alerts the overview shows
const recentAlertCount = 4

// Snapshot bundles every derived view for one selection
type Snapshot struct {
	Selection     models.Selection     `json:"selection"`
	WindowStart   time.Time            `json:"window_start"`
	GeneratedAt   time.Time            `json:"generated_at"`
	ComputedAt    time.Time            `json:"computed_at"`
	Seed          int64                `json:"seed"`
	QC            QCSummary            `json:"qc"`
	OEE           OEEReport            `json:"oee"`
	Pareto        []ParetoEntry        `json:"pareto"`
	Scatter       []ScatterPoint       `json:"scatter"`
	EnergyTrend   []EnergyPoint        `json:"energy_trend"`
	Cost          []CostEntry          `json:"cost"`
	LiveEnergy    *models.EnergySample `json:"live_energy,omitempty"`
	RecentAlerts  []models.Alert       `json:"recent_alerts"`
	Benchmark     BenchmarkReport      `json:"benchmark"`
	MonitorAlerts []models.Alert       `json:"monitor_alerts"`
}

// DashboardOptions configure a Dashboard
type DashboardOptions struct {
	Seed      int64
	Location  *time.Location
	Selection models.Selection
	// Clock defaults to time.Now
	Clock   func() time.Time
	Monitor *ThresholdMonitor
	Logger  *logger.Logger
}

// Dashboard owns the generated dataset and the current selection.
// The dataset is replaced only by Reset; selection changes recompute views.
type Dashboard struct {
	mu        sync.RWMutex
	dataset   *models.Dataset
	selection models.Selection
	location  *time.Location
	clock     func() time.Time
	monitor   *ThresholdMonitor
	log       *logger.Logger

	listenerMu sync.RWMutex
	listeners  []func(Snapshot)
}

// NewDashboard generates the dataset and validates the initial selection
func NewDashboard(opts DashboardOptions) (*Dashboard, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Monitor == nil {
		opts.Monitor = NewThresholdMonitor(opts.Logger, nil)
	}
	if opts.Selection == (models.Selection{}) {
		opts.Selection = models.DefaultSelection()
	}
	if err := opts.Selection.Validate(); err != nil {
		return nil, err
	}

	d := &Dashboard{
		selection: opts.Selection,
		location:  opts.Location,
		clock:     opts.Clock,
		monitor:   opts.Monitor,
		log:       opts.Logger,
	}
	d.dataset = d.generate(opts.Seed)
	return d, nil
}

func (d *Dashboard) now() time.Time {
	return d.clock().In(d.location)
}

func (d *Dashboard) generate(seed int64) *models.Dataset {
	start := time.Now()
	ds := generator.Generate(generator.Options{Seed: seed, Now: d.now(), Location: d.location})
	d.log.Info("Generated dataset",
		"seed", seed,
		"qc_records", len(ds.QCRecords),
		"oee_samples", len(ds.OEE),
		"downtime_events", len(ds.Downtime),
		"energy_samples", len(ds.Energy),
		"alerts", len(ds.Alerts),
		"took", time.Since(start),
	)
	return ds
}

// OnChange registers a listener called after every selection change or reset
func (d *Dashboard) OnChange(fn func(Snapshot)) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Dashboard) notify(s Snapshot) {
	d.listenerMu.RLock()
	listeners := slices.Clone(d.listeners)
	d.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// Dataset returns the current dataset. Callers must not modify it.
func (d *Dashboard) Dataset() *models.Dataset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dataset
}

// Selection returns the current selection
func (d *Dashboard) Selection() models.Selection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selection
}

// Monitor returns the threshold monitor
func (d *Dashboard) Monitor() *ThresholdMonitor {
	return d.monitor
}

// Current computes the snapshot for the current selection
func (d *Dashboard) Current() Snapshot {
	d.mu.RLock()
	ds, sel := d.dataset, d.selection
	d.mu.RUnlock()
	return d.build(ds, sel, false)
}

// Compute builds the snapshot for sel without changing the current selection
func (d *Dashboard) Compute(sel models.Selection) (Snapshot, error) {
	if err := sel.Validate(); err != nil {
		return Snapshot{}, err
	}
	return d.build(d.Dataset(), sel, false), nil
}

// UpdateSelection merges patch into the current selection, recomputes and
// dispatches monitor alerts and listeners.
func (d *Dashboard) UpdateSelection(patch models.SelectionPatch) (Snapshot, error) {
	d.mu.Lock()
	sel, err := patch.Apply(d.selection)
	if err != nil {
		d.mu.Unlock()
		return Snapshot{}, err
	}
	d.selection = sel
	ds := d.dataset
	d.mu.Unlock()

	d.log.Info("Selection changed", "factory_id", sel.FactoryID, "range", sel.Range, "shift", sel.Shift, "product", sel.Product)
	s := d.build(ds, sel, true)
	d.notify(s)
	return s, nil
}

// Reset regenerates the dataset from seed and recomputes the current selection
func (d *Dashboard) Reset(seed int64) Snapshot {
	ds := d.generate(seed)
	d.mu.Lock()
	d.dataset = ds
	sel := d.selection
	d.mu.Unlock()

	s := d.build(ds, sel, true)
	d.notify(s)
	return s
}

func (d *Dashboard) build(ds *models.Dataset, sel models.Selection, dispatch bool) Snapshot {
	now := d.now()
	f := FilterAt(ds, sel, now)

	lines := ds.LinesFor(sel.FactoryID)
	oee := AggregateOEE(f.OEE, lines)
	qc := SummarizeQC(f.QCRecords)

	s := Snapshot{
		Selection:    sel,
		WindowStart:  f.WindowStart,
		GeneratedAt:  ds.GeneratedAt,
		ComputedAt:   now,
		Seed:         ds.Seed,
		QC:           qc,
		OEE:          oee,
		Pareto:       DowntimePareto(f.Downtime),
		Scatter:      DowntimeScatter(f.Downtime),
		EnergyTrend:  EnergyTrend(f.Energy, PreviousPeriodEnergy(ds, sel, now)),
		Cost:         CostBreakdown(f.Energy, ds.Tariffs),
		RecentAlerts: RecentAlerts(f.Alerts, recentAlertCount),
		Benchmark:    Benchmark(ds, sel.Range, now),
	}
	if live, ok := LatestEnergy(f.Energy); ok {
		s.LiveEnergy = &live
	}

	in := MonitorInput{
		FactoryID:   sel.FactoryID,
		WindowStart: f.WindowStart,
		At:          now,
		QC:          qc,
		Lines:       oee.Lines,
		Overall:     oee.Overall,
		Energy:      f.Energy,
	}
	if dispatch {
		s.MonitorAlerts = d.monitor.Evaluate(in)
	} else {
		s.MonitorAlerts = d.monitor.Inspect(in)
	}
	return s
}
