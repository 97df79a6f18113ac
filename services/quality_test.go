package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylens/models"
)

func qc(shift models.ShiftCode, product models.ProductCode, defect string) models.QCRecord {
	r := models.QCRecord{Shift: shift, Product: product, Result: models.QCPass}
	if defect != "" {
		r.Result = models.QCFail
		r.DefectClass = defect
	}
	return r
}

func TestSummarizeQC(t *testing.T) {
	records := []models.QCRecord{
		qc(models.ShiftA, models.ProductA, ""),
		qc(models.ShiftA, models.ProductA, "coil_gap"),
		qc(models.ShiftA, models.ProductA, ""),
		qc(models.ShiftA, models.ProductA, ""),
		qc(models.ShiftB, models.ProductB, "load_drift"),
		qc(models.ShiftB, models.ProductB, "coil_gap"),
	}

	s := SummarizeQC(records)

	assert.Equal(t, 6, s.Inspected)
	assert.Equal(t, 3, s.Passed)
	assert.Equal(t, 3, s.Failed)
	assert.InDelta(t, 0.5, s.PassRate, 1e-9)
	assert.InDelta(t, 0.5, s.FailRate, 1e-9)

	require.Len(t, s.Defects, 2)
	assert.Equal(t, DefectCount{DefectClass: "coil_gap", Count: 2}, s.Defects[0])

	require.Len(t, s.Matrix, 9)
	assert.Equal(t, ShiftProductRate{Shift: models.ShiftA, Product: models.ProductA, Samples: 4, DefectRate: 0.25}, s.Matrix[0])
	assert.Equal(t, ShiftProductRate{Shift: models.ShiftB, Product: models.ProductB, Samples: 2, DefectRate: 1}, s.Matrix[4])
	assert.Zero(t, s.Matrix[8].Samples)
	assert.Zero(t, s.Matrix[8].DefectRate)
}

func TestSummarizeQCEmpty(t *testing.T) {
	s := SummarizeQC(nil)
	assert.Zero(t, s.PassRate)
	assert.Zero(t, s.FailRate)
	assert.NotNil(t, s.Defects)
	assert.Len(t, s.Matrix, 9)
}

func TestRecentAlerts(t *testing.T) {
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	var alerts []models.Alert
	for i := 5; i >= 0; i-- {
		alerts = append(alerts, models.Alert{ID: string(rune('a' + i)), Timestamp: base.AddDate(0, 0, i)})
	}

	got := RecentAlerts(alerts, 4)

	require.Len(t, got, 4)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "f", got[3].ID)
	assert.Len(t, RecentAlerts(alerts[:2], 4), 2)
	assert.Empty(t, RecentAlerts(nil, 4))
}
