package models

import (
	"time"
)

// HomeFactoryID is the site every benchmark compares the member factories against
const HomeFactoryID = "fanarlool"

// Process is the process category of a production line
type Process string

const (
	ProcessCoiling       Process = "Coiling"
	ProcessHeatTreatment Process = "Heat Treatment"
	ProcessGrinding      Process = "Grinding"
	ProcessInspection    Process = "Inspection"
)

// ProductCode identifies a spring product family
type ProductCode string

const (
	ProductA ProductCode = "A"
	ProductB ProductCode = "B"
	ProductC ProductCode = "C"
)

// Products lists every product code in catalog order
var Products = []ProductCode{ProductA, ProductB, ProductC}

// ShiftCode identifies one of the three daily shifts
type ShiftCode string

const (
	ShiftA ShiftCode = "A"
	ShiftB ShiftCode = "B"
	ShiftC ShiftCode = "C"
)

// Shifts lists every shift code in the order they run during a day
var Shifts = []ShiftCode{ShiftA, ShiftB, ShiftC}

// QCResult is the outcome of a single inspection
type QCResult string

const (
	QCPass QCResult = "pass"
	QCFail QCResult = "fail"
)

// Severity grades an alert
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertModule names the dashboard module that raised an alert
type AlertModule string

const (
	ModuleEnergy AlertModule = "energy"
	ModuleQC     AlertModule = "qc"
	ModuleOEE    AlertModule = "oee"
)

// ModelStatus is the deployment state of a registry model
type ModelStatus string

const (
	ModelActive  ModelStatus = "Active"
	ModelStaging ModelStatus = "Staging"
)

// Carrier is an energy carrier with its own tariff
type Carrier string

const (
	CarrierElectricity Carrier = "electricity"
	CarrierGas         Carrier = "gas"
	CarrierAir         Carrier = "air"
)

// Record is implemented by every time-stamped, factory-scoped entity.
// OccurredAt is the one temporal field filters look at.
type Record interface {
	FactoryRef() string
	OccurredAt() time.Time
}

// Factory represents a manufacturing site
type Factory struct {
	ID             string `json:"id"`
	NameFa         string `json:"name_fa"`
	NameEn         string `json:"name_en"`
	BenchmarkLabel string `json:"benchmark_label"`
	Home           bool   `json:"home"`
}

// ProductionLine represents a line owned by a factory
type ProductionLine struct {
	ID        string  `json:"id"`
	FactoryID string  `json:"factory_id"`
	NameFa    string  `json:"name_fa"`
	NameEn    string  `json:"name_en"`
	Process   Process `json:"process"`
	TargetOEE float64 `json:"target_oee"`
}

// Measurements holds the three dimensions captured per inspected spring
type Measurements struct {
	OuterDiameter float64 `json:"outer_diameter"`
	FreeLength    float64 `json:"free_length"`
	Load          float64 `json:"load"`
}

// QCRecord represents one vision inspection of a spring
type QCRecord struct {
	ID            string       `json:"id"`
	FactoryID     string       `json:"factory_id"`
	LineID        string       `json:"line_id"`
	Product       ProductCode  `json:"product"`
	Shift         ShiftCode    `json:"shift"`
	Timestamp     time.Time    `json:"timestamp"`
	Result        QCResult     `json:"result"`
	DefectClass   string       `json:"defect_class,omitempty"`
	Measurements  Measurements `json:"measurements"`
	ModelVersion  string       `json:"model_version"`
	RecipeVersion string       `json:"recipe_version"`
}

func (r QCRecord) FactoryRef() string    { return r.FactoryID }
func (r QCRecord) OccurredAt() time.Time { return r.Timestamp }

// Failed reports whether the inspection rejected the part
func (r QCRecord) Failed() bool { return r.Result == QCFail }

// OeeSample represents one line-day of production counters.
// RunMinutes never exceeds PlannedMinutes and GoodCount+ScrapCount equals TotalCount.
type OeeSample struct {
	ID              string    `json:"id"`
	FactoryID       string    `json:"factory_id"`
	LineID          string    `json:"line_id"`
	Date            time.Time `json:"date"`
	PlannedMinutes  float64   `json:"planned_minutes"`
	RunMinutes      float64   `json:"run_minutes"`
	IdealCycleTime  float64   `json:"ideal_cycle_time"`
	TotalCount      int       `json:"total_count"`
	GoodCount       int       `json:"good_count"`
	ScrapCount      int       `json:"scrap_count"`
	DowntimeMinutes float64   `json:"downtime_minutes"`
	DowntimeReason  string    `json:"downtime_reason"`
}

func (s OeeSample) FactoryRef() string    { return s.FactoryID }
func (s OeeSample) OccurredAt() time.Time { return s.Date }

// DowntimeEvent represents a single stoppage on a line
type DowntimeEvent struct {
	ID         string    `json:"id"`
	FactoryID  string    `json:"factory_id"`
	LineID     string    `json:"line_id"`
	Minutes    float64   `json:"minutes"`
	ReasonCode string    `json:"reason_code"`
	Timestamp  time.Time `json:"timestamp"`
	Shift      ShiftCode `json:"shift"`
}

func (e DowntimeEvent) FactoryRef() string    { return e.FactoryID }
func (e DowntimeEvent) OccurredAt() time.Time { return e.Timestamp }

// EnergySample represents one factory-day of utility readings
type EnergySample struct {
	ID             string    `json:"id"`
	FactoryID      string    `json:"factory_id"`
	Date           time.Time `json:"date"`
	ElectricityKw  float64   `json:"electricity_kw"`
	ElectricityKwh float64   `json:"electricity_kwh"`
	GasM3          float64   `json:"gas_m3"`
	AirNm3h        float64   `json:"air_nm3h"`
	PressureBar    float64   `json:"pressure_bar"`
	FlowM3Min      float64   `json:"flow_m3_min"`
}

func (e EnergySample) FactoryRef() string    { return e.FactoryID }
func (e EnergySample) OccurredAt() time.Time { return e.Date }

// Alert represents an operator-facing notification
type Alert struct {
	ID        string      `json:"id"`
	FactoryID string      `json:"factory_id"`
	Severity  Severity    `json:"severity"`
	Module    AlertModule `json:"module"`
	MessageFa string      `json:"message_fa"`
	MessageEn string      `json:"message_en"`
	Hint      string      `json:"hint"`
	Timestamp time.Time   `json:"timestamp"`
}

func (a Alert) FactoryRef() string    { return a.FactoryID }
func (a Alert) OccurredAt() time.Time { return a.Timestamp }

// ModelRegistryItem represents a deployed inspection model
type ModelRegistryItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Status      ModelStatus `json:"status"`
	UpdatedAt   time.Time   `json:"updated_at"`
	TargetLines []string    `json:"target_lines"`
}

// Band is an inclusive [Min, Max] range
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the band, bounds included
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Tolerance groups the per-dimension bands of a recipe
type Tolerance struct {
	OuterDiameter Band `json:"od"`
	Length        Band `json:"length"`
	Load          Band `json:"load"`
}

// Contains reports whether every measurement lies inside its band
func (t Tolerance) Contains(m Measurements) bool {
	return t.OuterDiameter.Contains(m.OuterDiameter) &&
		t.Length.Contains(m.FreeLength) &&
		t.Load.Contains(m.Load)
}

// Recipe represents the inspection configuration for a product
type Recipe struct {
	ID            string      `json:"id"`
	Product       ProductCode `json:"product"`
	Version       string      `json:"version"`
	CameraProfile string      `json:"camera_profile"`
	Lighting      string      `json:"lighting"`
	Tolerance     Tolerance   `json:"tolerance"`
}

// Tariff represents the unit price of an energy carrier
type Tariff struct {
	Carrier Carrier `json:"carrier"`
	Unit    string  `json:"unit"`
	Price   float64 `json:"price"`
}

// Catalog holds the static reference entities
type Catalog struct {
	Factories []Factory           `json:"factories"`
	Lines     []ProductionLine    `json:"lines"`
	Products  []ProductCode       `json:"products"`
	Recipes   []Recipe            `json:"recipes"`
	Models    []ModelRegistryItem `json:"models"`
	Tariffs   []Tariff            `json:"tariffs"`
}

// Factory returns the factory with the given id
func (c *Catalog) Factory(id string) (Factory, bool) {
	for _, f := range c.Factories {
		if f.ID == id {
			return f, true
		}
	}
	return Factory{}, false
}

// LinesFor returns the lines owned by a factory in catalog order
func (c *Catalog) LinesFor(factoryID string) []ProductionLine {
	var lines []ProductionLine
	for _, l := range c.Lines {
		if l.FactoryID == factoryID {
			lines = append(lines, l)
		}
	}
	return lines
}

// Line returns the line with the given id
func (c *Catalog) Line(id string) (ProductionLine, bool) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return ProductionLine{}, false
}

// Dataset is the immutable snapshot produced by one generation run
type Dataset struct {
	Catalog
	Seed        int64           `json:"seed"`
	GeneratedAt time.Time       `json:"generated_at"`
	QCRecords   []QCRecord      `json:"qc_records"`
	OEE         []OeeSample     `json:"oee"`
	Downtime    []DowntimeEvent `json:"downtime"`
	Energy      []EnergySample  `json:"energy"`
	Alerts      []Alert         `json:"alerts"`
}

// FilteredDataset is the subset of a Dataset visible under a Selection
type FilteredDataset struct {
	Selection   Selection       `json:"selection"`
	WindowStart time.Time       `json:"window_start"`
	QCRecords   []QCRecord      `json:"qc_records"`
	OEE         []OeeSample     `json:"oee"`
	Downtime    []DowntimeEvent `json:"downtime"`
	Energy      []EnergySample  `json:"energy"`
	Alerts      []Alert         `json:"alerts"`
}
