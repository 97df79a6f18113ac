package services

import (
	"math"
	"sort"
	"time"

	"factorylens/models"
)

// dayLayout keys the daily trend buckets
const dayLayout = "2006-01-02"

// OEEMetrics holds the three OEE factors and their product.
// Performance is not clamped: a line that beats its ideal cycle time reports
// Performance above 1 and so can report OEE above 1.
type OEEMetrics struct {
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Quality      float64 `json:"quality"`
	OEE          float64 `json:"oee"`
}

// LineOEE is the per-line aggregate over the filtered window
type LineOEE struct {
	LineID         string         `json:"line_id"`
	NameFa         string         `json:"name_fa"`
	NameEn         string         `json:"name_en"`
	Process        models.Process `json:"process"`
	TargetOEE      float64        `json:"target_oee"`
	Samples        int            `json:"samples"`
	Throughput     int            `json:"throughput"`
	GoodCount      int            `json:"good_count"`
	ScrapCount     int            `json:"scrap_count"`
	RunMinutes     float64        `json:"run_minutes"`
	PlannedMinutes float64        `json:"planned_minutes"`
	OEEMetrics
}

// FactoryOEE is the factory aggregate computed from summed quantities
type FactoryOEE struct {
	OEEMetrics
	Samples    int `json:"samples"`
	Throughput int `json:"throughput"`
	GoodCount  int `json:"good_count"`
}

// TrendPoint is one day of the OEE trend
type TrendPoint struct {
	Day  string    `json:"day"`
	Date time.Time `json:"date"`
	OEE  float64   `json:"oee"`
}

// OEEReport bundles the OEE views of the dashboard
type OEEReport struct {
	Lines   []LineOEE    `json:"lines"`
	Overall FactoryOEE   `json:"overall"`
	Trend   []TrendPoint `json:"trend"`
}

// safeDiv divides with the denominator clamped to at least 1, so empty
// inputs yield zero instead of NaN.
func safeDiv(num, den float64) float64 {
	return num / math.Max(den, 1)
}

// SampleOEE decomposes a single sample
func SampleOEE(s models.OeeSample) OEEMetrics {
	return composeOEE(s.RunMinutes, s.PlannedMinutes, s.IdealCycleTime, float64(s.TotalCount), float64(s.GoodCount))
}

func composeOEE(run, planned, idealCycle, total, good float64) OEEMetrics {
	m := OEEMetrics{
		Availability: safeDiv(run, planned),
		Performance:  safeDiv(idealCycle*total, run*60),
		Quality:      safeDiv(good, total),
	}
	m.OEE = m.Availability * m.Performance * m.Quality
	return m
}

type oeeTotals struct {
	samples int
	run     float64
	planned float64
	ideal   float64
	total   int
	good    int
	scrap   int
}

func (t *oeeTotals) add(s models.OeeSample) {
	t.samples++
	t.run += s.RunMinutes
	t.planned += s.PlannedMinutes
	t.ideal += s.IdealCycleTime
	t.total += s.TotalCount
	t.good += s.GoodCount
	t.scrap += s.ScrapCount
}

// metrics derives the ratios from the sums, using the mean ideal cycle time.
func (t oeeTotals) metrics() OEEMetrics {
	meanIdeal := safeDiv(t.ideal, float64(t.samples))
	return composeOEE(t.run, t.planned, meanIdeal, float64(t.total), float64(t.good))
}

// AggregateOEE builds the line, factory and daily trend views from filtered samples.
// Lines are reported in catalog order; lines without samples are omitted.
func AggregateOEE(samples []models.OeeSample, lines []models.ProductionLine) OEEReport {
	return OEEReport{
		Lines:   AggregateLines(samples, lines),
		Overall: AggregateFactory(samples),
		Trend:   OEETrend(samples),
	}
}

// AggregateLines averages the per-sample ratios of each line and sums its counters.
func AggregateLines(samples []models.OeeSample, lines []models.ProductionLine) []LineOEE {
	type acc struct {
		sum    OEEMetrics
		totals oeeTotals
	}
	perLine := make(map[string]*acc)
	var order []string
	for _, s := range samples {
		a, ok := perLine[s.LineID]
		if !ok {
			a = &acc{}
			perLine[s.LineID] = a
			order = append(order, s.LineID)
		}
		m := SampleOEE(s)
		a.sum.Availability += m.Availability
		a.sum.Performance += m.Performance
		a.sum.Quality += m.Quality
		a.sum.OEE += m.OEE
		a.totals.add(s)
	}

	// catalog order first, then any line the catalog does not know
	ordered := make([]string, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, l := range lines {
		if _, ok := perLine[l.ID]; ok {
			ordered = append(ordered, l.ID)
			seen[l.ID] = true
		}
	}
	for _, id := range order {
		if !seen[id] {
			ordered = append(ordered, id)
		}
	}

	byID := make(map[string]models.ProductionLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}

	out := make([]LineOEE, 0, len(ordered))
	for _, id := range ordered {
		a := perLine[id]
		n := float64(a.totals.samples)
		line := byID[id]
		out = append(out, LineOEE{
			LineID:         id,
			NameFa:         line.NameFa,
			NameEn:         line.NameEn,
			Process:        line.Process,
			TargetOEE:      line.TargetOEE,
			Samples:        a.totals.samples,
			Throughput:     a.totals.total,
			GoodCount:      a.totals.good,
			ScrapCount:     a.totals.scrap,
			RunMinutes:     a.totals.run,
			PlannedMinutes: a.totals.planned,
			OEEMetrics: OEEMetrics{
				Availability: safeDiv(a.sum.Availability, n),
				Performance:  safeDiv(a.sum.Performance, n),
				Quality:      safeDiv(a.sum.Quality, n),
				OEE:          safeDiv(a.sum.OEE, n),
			},
		})
	}
	return out
}

// AggregateFactory computes the factory ratios from summed run, planned and unit counts.
func AggregateFactory(samples []models.OeeSample) FactoryOEE {
	var t oeeTotals
	for _, s := range samples {
		t.add(s)
	}
	return FactoryOEE{
		OEEMetrics: t.metrics(),
		Samples:    t.samples,
		Throughput: t.total,
		GoodCount:  t.good,
	}
}

// OEETrend buckets samples by calendar day and derives one OEE value per day
// from each bucket's sums. Days are returned oldest first.
func OEETrend(samples []models.OeeSample) []TrendPoint {
	buckets := make(map[string]*oeeTotals)
	dates := make(map[string]time.Time)
	for _, s := range samples {
		day := s.Date.Format(dayLayout)
		b, ok := buckets[day]
		if !ok {
			b = &oeeTotals{}
			buckets[day] = b
			y, m, d := s.Date.Date()
			dates[day] = time.Date(y, m, d, 0, 0, 0, 0, s.Date.Location())
		}
		b.add(s)
	}

	out := make([]TrendPoint, 0, len(buckets))
	for day, b := range buckets {
		out = append(out, TrendPoint{Day: day, Date: dates[day], OEE: b.metrics().OEE})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
