package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylens/models"
)

func monitorInput() MonitorInput {
	return MonitorInput{
		FactoryID:   "fanarlool",
		WindowStart: WindowStart(models.Range7d, testNow),
		At:          testNow,
		QC:          QCSummary{Inspected: 100, Failed: 2, FailRate: 0.02},
		Lines: []LineOEE{
			{LineID: "fanarlool-l1", NameEn: "Coiling", TargetOEE: 0.8, Samples: 7, OEEMetrics: OEEMetrics{OEE: 0.9}},
		},
		Overall: FactoryOEE{GoodCount: 1000},
		Energy:  []models.EnergySample{energyOn(0, 100)},
	}
}

func TestMonitorQuietWhenWithinLimits(t *testing.T) {
	m := NewThresholdMonitor(nil, nil)
	assert.Empty(t, m.Evaluate(monitorInput()))
}

func TestMonitorRaisesAlerts(t *testing.T) {
	var mu sync.Mutex
	var received []models.Alert
	m := NewThresholdMonitor(nil, func(a models.Alert) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, a)
	})

	in := monitorInput()
	in.QC.FailRate = 0.12
	in.Energy[0].PressureBar = 6.6
	in.Lines = append(in.Lines, LineOEE{LineID: "fanarlool-l2", NameEn: "Heat Treatment", TargetOEE: 0.85, Samples: 7, OEEMetrics: OEEMetrics{OEE: 0.7}})

	alerts := m.Evaluate(in)

	require.Len(t, alerts, 3)
	assert.Equal(t, alerts, received)

	assert.Equal(t, "fanarlool-mon-qc-fail-rate-2024-03-09", alerts[0].ID)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, models.ModuleQC, alerts[0].Module)
	assert.NotEmpty(t, alerts[0].MessageFa)
	assert.NotEmpty(t, alerts[0].MessageEn)
	assert.Equal(t, testNow, alerts[0].Timestamp)

	assert.Equal(t, models.ModuleEnergy, alerts[1].Module)
	assert.Equal(t, models.SeverityMedium, alerts[1].Severity)

	assert.Equal(t, models.ModuleOEE, alerts[2].Module)
	assert.Contains(t, alerts[2].ID, "fanarlool-l2")

	stats, ok := m.GetFactoryStats("fanarlool")
	require.True(t, ok)
	assert.Equal(t, 1, stats.Evaluations)
	assert.Equal(t, 3, stats.AlertsRaised)
}

func TestMonitorInspectDoesNotDispatch(t *testing.T) {
	calls := 0
	m := NewThresholdMonitor(nil, func(models.Alert) { calls++ })
	in := monitorInput()
	in.QC.FailRate = 0.5

	assert.Len(t, m.Inspect(in), 1)
	assert.Zero(t, calls)
	_, ok := m.GetFactoryStats("fanarlool")
	assert.False(t, ok)
}

func TestMonitorEnergyIntensity(t *testing.T) {
	m := NewThresholdMonitor(nil, nil)
	in := monitorInput()
	assert.Empty(t, m.Inspect(in))

	th := m.GetThresholds()
	th.MaxEnergyIntensity = 1.0
	require.NoError(t, m.UpdateThresholds(th))

	// 2400 kWh over 1000 good units
	alerts := m.Inspect(in)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityLow, alerts[0].Severity)
}

func TestMonitorSkipsEmptyInputs(t *testing.T) {
	m := NewThresholdMonitor(nil, nil)
	th := m.GetThresholds()
	th.MaxEnergyIntensity = 0.001
	require.NoError(t, m.UpdateThresholds(th))

	assert.Empty(t, m.Inspect(MonitorInput{FactoryID: "nowhere"}))
}

func TestMonitorRejectsInvalidThresholds(t *testing.T) {
	m := NewThresholdMonitor(nil, nil)
	err := m.UpdateThresholds(models.KPIThresholds{MaxQCFailRate: 1.5})
	assert.ErrorIs(t, err, models.ErrInvalidThresholds)
	assert.Equal(t, models.DefaultKPIThresholds(), m.GetThresholds())
}
