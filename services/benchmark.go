package services

import (
	"sort"
	"time"

	"factorylens/models"
)

// FactoryBenchmark holds one factory's headline metrics over the window
type FactoryBenchmark struct {
	FactoryID       string  `json:"factory_id"`
	NameFa          string  `json:"name_fa"`
	NameEn          string  `json:"name_en"`
	Label           string  `json:"label"`
	Home            bool    `json:"home"`
	OEE             float64 `json:"oee"`
	QCFailRate      float64 `json:"qc_fail_rate"`
	EnergyIntensity float64 `json:"energy_intensity"`
	Inspected       int     `json:"inspected"`
	GoodCount       int     `json:"good_count"`
	ElectricityKwh  float64 `json:"electricity_kwh"`
}

// BenchmarkAverage is the arithmetic mean over member factories
type BenchmarkAverage struct {
	Members         int     `json:"members"`
	OEE             float64 `json:"oee"`
	QCFailRate      float64 `json:"qc_fail_rate"`
	EnergyIntensity float64 `json:"energy_intensity"`
}

// LineRank is one home-factory line in the OEE ranking
type LineRank struct {
	Rank       int            `json:"rank"`
	LineID     string         `json:"line_id"`
	NameFa     string         `json:"name_fa"`
	NameEn     string         `json:"name_en"`
	Process    models.Process `json:"process"`
	TargetOEE  float64        `json:"target_oee"`
	OEE        float64        `json:"oee"`
	DefectRate float64        `json:"defect_rate"`
}

// BenchmarkReport compares all factories over the same window
type BenchmarkReport struct {
	WindowStart   time.Time          `json:"window_start"`
	Factories     []FactoryBenchmark `json:"factories"`
	MemberAverage BenchmarkAverage   `json:"member_average"`
	LineRanking   []LineRank         `json:"line_ranking"`
}

// Benchmark recomputes factory OEE, QC fail rate and energy intensity for
// every factory over the range window. Shift and product are ignored.
// Lines of the home factory are ranked by mean per-sample OEE.
func Benchmark(d *models.Dataset, r models.RangeKey, now time.Time) BenchmarkReport {
	after := WindowStart(r, now)
	report := BenchmarkReport{
		WindowStart: after,
		Factories:   make([]FactoryBenchmark, 0),
		LineRanking: make([]LineRank, 0),
	}
	if d == nil {
		return report
	}

	var homeID string
	for _, f := range d.Factories {
		fb := benchmarkFactory(d, f, after)
		report.Factories = append(report.Factories, fb)
		if f.Home {
			homeID = f.ID
			continue
		}
		report.MemberAverage.Members++
		report.MemberAverage.OEE += fb.OEE
		report.MemberAverage.QCFailRate += fb.QCFailRate
		report.MemberAverage.EnergyIntensity += fb.EnergyIntensity
	}
	n := float64(report.MemberAverage.Members)
	report.MemberAverage.OEE = safeDiv(report.MemberAverage.OEE, n)
	report.MemberAverage.QCFailRate = safeDiv(report.MemberAverage.QCFailRate, n)
	report.MemberAverage.EnergyIntensity = safeDiv(report.MemberAverage.EnergyIntensity, n)

	if homeID != "" {
		report.LineRanking = rankLines(d, homeID, after)
	}
	return report
}

func benchmarkFactory(d *models.Dataset, f models.Factory, after time.Time) FactoryBenchmark {
	oee := AggregateFactory(byFactoryWindow(d.OEE, f.ID, after))
	qc := byFactoryWindow(d.QCRecords, f.ID, after)

	var failed int
	for _, r := range qc {
		if r.Failed() {
			failed++
		}
	}
	var kwh float64
	for _, e := range byFactoryWindow(d.Energy, f.ID, after) {
		kwh += e.ElectricityKwh
	}

	return FactoryBenchmark{
		FactoryID:       f.ID,
		NameFa:          f.NameFa,
		NameEn:          f.NameEn,
		Label:           f.BenchmarkLabel,
		Home:            f.Home,
		OEE:             oee.OEE,
		QCFailRate:      safeDiv(float64(failed), float64(len(qc))),
		EnergyIntensity: safeDiv(kwh, float64(oee.GoodCount)),
		Inspected:       len(qc),
		GoodCount:       oee.GoodCount,
		ElectricityKwh:  kwh,
	}
}

func rankLines(d *models.Dataset, factoryID string, after time.Time) []LineRank {
	lines := d.LinesFor(factoryID)
	aggregates := AggregateLines(byFactoryWindow(d.OEE, factoryID, after), lines)

	inspected := make(map[string]int)
	failed := make(map[string]int)
	for _, r := range byFactoryWindow(d.QCRecords, factoryID, after) {
		inspected[r.LineID]++
		if r.Failed() {
			failed[r.LineID]++
		}
	}

	out := make([]LineRank, 0, len(aggregates))
	for _, a := range aggregates {
		out = append(out, LineRank{
			LineID:     a.LineID,
			NameFa:     a.NameFa,
			NameEn:     a.NameEn,
			Process:    a.Process,
			TargetOEE:  a.TargetOEE,
			OEE:        a.OEE,
			DefectRate: safeDiv(float64(failed[a.LineID]), float64(inspected[a.LineID])),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OEE > out[j].OEE })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
