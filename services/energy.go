package services

import (
	"sort"
	"time"

	"factorylens/models"
)

// previousFallbackRatio stands in for a missing prior-period reading
const previousFallbackRatio = 0.92

// EnergyPoint is one day of the energy trend paired with the prior period
type EnergyPoint struct {
	Day            string    `json:"day"`
	Date           time.Time `json:"date"`
	ElectricityKw  float64   `json:"electricity_kw"`
	PreviousKw     float64   `json:"previous_kw"`
	ElectricityKwh float64   `json:"electricity_kwh"`
	GasM3          float64   `json:"gas_m3"`
	AirNm3h        float64   `json:"air_nm3h"`
	PressureBar    float64   `json:"pressure_bar"`
}

// CostEntry is the daily cost of one energy carrier
type CostEntry struct {
	Carrier  models.Carrier `json:"carrier"`
	Quantity float64        `json:"quantity"`
	Unit     string         `json:"unit"`
	Price    float64        `json:"price"`
	Cost     float64        `json:"cost"`
}

// sortedByDate returns a chronologically ordered copy
func sortedByDate(samples []models.EnergySample) []models.EnergySample {
	out := append([]models.EnergySample(nil), samples...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// EnergyTrend orders the current samples by date and pairs the i-th point with
// the i-th sample of the previous period. Points without a prior sample fall
// back to 92% of their own draw.
func EnergyTrend(current, previous []models.EnergySample) []EnergyPoint {
	cur := sortedByDate(current)
	prev := sortedByDate(previous)

	out := make([]EnergyPoint, 0, len(cur))
	for i, e := range cur {
		p := EnergyPoint{
			Day:            e.Date.Format(dayLayout),
			Date:           e.Date,
			ElectricityKw:  e.ElectricityKw,
			ElectricityKwh: e.ElectricityKwh,
			GasM3:          e.GasM3,
			AirNm3h:        e.AirNm3h,
			PressureBar:    e.PressureBar,
			PreviousKw:     e.ElectricityKw * previousFallbackRatio,
		}
		if i < len(prev) {
			p.PreviousKw = prev[i].ElectricityKw
		}
		out = append(out, p)
	}
	return out
}

// LatestEnergy returns the most recent sample
func LatestEnergy(samples []models.EnergySample) (models.EnergySample, bool) {
	if len(samples) == 0 {
		return models.EnergySample{}, false
	}
	latest := samples[0]
	for _, e := range samples[1:] {
		if e.Date.After(latest.Date) {
			latest = e
		}
	}
	return latest, true
}

// CostBreakdown prices the latest sample's daily electricity, gas and air
// (hourly air flow times 24) with the matching tariffs. Carriers without a
// tariff cost zero; an empty sample list yields zero costs.
func CostBreakdown(samples []models.EnergySample, tariffs []models.Tariff) []CostEntry {
	latest, _ := LatestEnergy(samples)
	quantities := map[models.Carrier]float64{
		models.CarrierElectricity: latest.ElectricityKwh,
		models.CarrierGas:         latest.GasM3,
		models.CarrierAir:         latest.AirNm3h * 24,
	}
	byCarrier := make(map[models.Carrier]models.Tariff, len(tariffs))
	for _, t := range tariffs {
		byCarrier[t.Carrier] = t
	}

	carriers := []models.Carrier{models.CarrierElectricity, models.CarrierGas, models.CarrierAir}
	out := make([]CostEntry, 0, len(carriers))
	for _, c := range carriers {
		t := byCarrier[c]
		q := quantities[c]
		out = append(out, CostEntry{
			Carrier:  c,
			Quantity: q,
			Unit:     t.Unit,
			Price:    t.Price,
			Cost:     q * t.Price,
		})
	}
	return out
}
