package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylens/models"
)

func event(reason string, minutes float64, hour int) models.DowntimeEvent {
	return models.DowntimeEvent{
		ID:         reason,
		FactoryID:  "f",
		LineID:     "f-l1",
		Minutes:    minutes,
		ReasonCode: reason,
		Timestamp:  time.Date(2024, time.March, 15, hour, 0, 0, 0, time.UTC),
		Shift:      models.ShiftA,
	}
}

func TestDowntimePareto(t *testing.T) {
	events := []models.DowntimeEvent{
		event("setup", 10, 5),
		event("mechanical_failure", 30, 10),
		event("setup", 15, 15),
		event("quality_hold", 15, 5),
		event("material_shortage", 15, 10),
	}

	p := DowntimePareto(events)

	require.Len(t, p, 4)
	assert.Equal(t, "mechanical_failure", p[0].Reason)
	assert.Equal(t, "setup", p[1].Reason)
	assert.Equal(t, 2, p[1].Events)
	// ties keep first appearance
	assert.Equal(t, "quality_hold", p[2].Reason)
	assert.Equal(t, "material_shortage", p[3].Reason)

	assert.InDelta(t, 30.0/85, p[0].Share, 1e-9)
	assert.InDelta(t, 1.0, p[3].Cumulative, 1e-9)
}

func TestDowntimeParetoIsNonIncreasing(t *testing.T) {
	ds := testDataset(t)
	for _, shift := range models.Shifts {
		sel := models.DefaultSelection()
		sel.Range = models.Range30d
		sel.Shift = shift

		p := DowntimePareto(FilterAt(ds, sel, testNow).Downtime)

		require.NotEmpty(t, p)
		for i := 1; i < len(p); i++ {
			assert.GreaterOrEqual(t, p[i-1].Minutes, p[i].Minutes)
			assert.GreaterOrEqual(t, p[i].Cumulative, p[i-1].Cumulative)
		}
	}
}

func TestDowntimeParetoEmpty(t *testing.T) {
	p := DowntimePareto(nil)
	assert.NotNil(t, p)
	assert.Empty(t, p)
}

func TestDowntimeScatter(t *testing.T) {
	points := DowntimeScatter([]models.DowntimeEvent{event("setup", 12.5, 15), event("setup", 3, 5)})

	require.Len(t, points, 2)
	assert.Equal(t, ScatterPoint{Hour: 15, Minutes: 12.5, Reason: "setup", LineID: "f-l1"}, points[0])
	assert.Equal(t, 5, points[1].Hour)
}
