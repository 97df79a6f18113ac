package services

import (
	"fmt"
	"sync"
	"time"

	"factorylens/logger"
	"factorylens/models"
)

// severePressureGap is how far below the minimum pressure escalates to high severity
const severePressureGap = 0.3

// MonitorInput is the slice of a computed snapshot the monitor inspects
type MonitorInput struct {
	FactoryID   string
	WindowStart time.Time
	At          time.Time
	QC          QCSummary
	Lines       []LineOEE
	Overall     FactoryOEE
	Energy      []models.EnergySample
}

// MonitorStats tracks evaluation counts per factory
type MonitorStats struct {
	Evaluations   int       `json:"evaluations"`
	AlertsRaised  int       `json:"alerts_raised"`
	LastEvaluated time.Time `json:"last_evaluated"`
}

// ThresholdMonitor derives alerts from KPI aggregates
type ThresholdMonitor struct {
	thresholds    models.KPIThresholds
	stats         map[string]*MonitorStats
	mutex         sync.RWMutex
	alertCallback func(models.Alert)
	log           *logger.Logger
}

// NewThresholdMonitor creates a monitor with the default thresholds
func NewThresholdMonitor(log *logger.Logger, alertCallback func(models.Alert)) *ThresholdMonitor {
	if log == nil {
		log = logger.NewNop()
	}
	return &ThresholdMonitor{
		thresholds:    models.DefaultKPIThresholds(),
		stats:         make(map[string]*MonitorStats),
		alertCallback: alertCallback,
		log:           log,
	}
}

// SetAlertCallback replaces the alert callback
func (m *ThresholdMonitor) SetAlertCallback(cb func(models.Alert)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.alertCallback = cb
}

// Inspect returns the alerts the input would raise without dispatching them
func (m *ThresholdMonitor) Inspect(in MonitorInput) []models.Alert {
	m.mutex.RLock()
	t := m.thresholds
	m.mutex.RUnlock()
	return checkThresholds(t, in)
}

// Evaluate inspects the input, records it and hands each alert to the callback
func (m *ThresholdMonitor) Evaluate(in MonitorInput) []models.Alert {
	m.mutex.Lock()
	alerts := checkThresholds(m.thresholds, in)
	s, ok := m.stats[in.FactoryID]
	if !ok {
		s = &MonitorStats{}
		m.stats[in.FactoryID] = s
	}
	s.Evaluations++
	s.AlertsRaised += len(alerts)
	s.LastEvaluated = in.At
	cb := m.alertCallback
	m.mutex.Unlock()

	for _, a := range alerts {
		m.log.Info("KPI threshold violated", "alert_id", a.ID, "factory_id", a.FactoryID, "module", a.Module, "severity", a.Severity)
		if cb != nil {
			cb(a)
		}
	}
	return alerts
}

func checkThresholds(t models.KPIThresholds, in MonitorInput) []models.Alert {
	alerts := make([]models.Alert, 0)
	newAlert := func(kind string, sev models.Severity, module models.AlertModule) models.Alert {
		return models.Alert{
			ID:        fmt.Sprintf("%s-mon-%s-%s", in.FactoryID, kind, in.WindowStart.Format(dayLayout)),
			FactoryID: in.FactoryID,
			Severity:  sev,
			Module:    module,
			Timestamp: in.At,
		}
	}

	if in.QC.Inspected > 0 && in.QC.FailRate > t.MaxQCFailRate {
		sev := models.SeverityMedium
		if in.QC.FailRate > 2*t.MaxQCFailRate {
			sev = models.SeverityHigh
		}
		a := newAlert("qc-fail-rate", sev, models.ModuleQC)
		a.MessageEn = fmt.Sprintf("QC fail rate %.1f%% exceeds limit %.1f%%", in.QC.FailRate*100, t.MaxQCFailRate*100)
		a.MessageFa = fmt.Sprintf("نرخ رد کیفی %.1f%% از حد مجاز %.1f%% بیشتر است", in.QC.FailRate*100, t.MaxQCFailRate*100)
		a.Hint = "Review the dominant defect class and recalibrate the inspection station"
		alerts = append(alerts, a)
	}

	if latest, ok := LatestEnergy(in.Energy); ok && latest.PressureBar < t.MinPressureBar {
		sev := models.SeverityMedium
		if latest.PressureBar < t.MinPressureBar-severePressureGap {
			sev = models.SeverityHigh
		}
		a := newAlert("pressure", sev, models.ModuleEnergy)
		a.MessageEn = fmt.Sprintf("Compressed air pressure %.2f bar below minimum %.2f bar", latest.PressureBar, t.MinPressureBar)
		a.MessageFa = fmt.Sprintf("فشار هوای فشرده %.2f بار کمتر از حداقل %.2f بار است", latest.PressureBar, t.MinPressureBar)
		a.Hint = "Check compressor loading and the main header for leaks"
		alerts = append(alerts, a)
	}

	for _, l := range in.Lines {
		if l.Samples == 0 || l.OEE >= l.TargetOEE-t.OEETargetMargin {
			continue
		}
		a := newAlert("oee-"+l.LineID, models.SeverityMedium, models.ModuleOEE)
		a.MessageEn = fmt.Sprintf("%s OEE %.1f%% below target %.1f%%", l.NameEn, l.OEE*100, l.TargetOEE*100)
		a.MessageFa = fmt.Sprintf("OEE خط %s برابر %.1f%% و کمتر از هدف %.1f%% است", l.NameFa, l.OEE*100, l.TargetOEE*100)
		a.Hint = "Inspect the downtime Pareto for the leading loss reason"
		alerts = append(alerts, a)
	}

	if t.MaxEnergyIntensity > 0 && in.Overall.GoodCount > 0 {
		var kwh float64
		for _, e := range in.Energy {
			kwh += e.ElectricityKwh
		}
		intensity := safeDiv(kwh, float64(in.Overall.GoodCount))
		if intensity > t.MaxEnergyIntensity {
			a := newAlert("energy-intensity", models.SeverityLow, models.ModuleEnergy)
			a.MessageEn = fmt.Sprintf("Energy intensity %.3f kWh/unit exceeds limit %.3f", intensity, t.MaxEnergyIntensity)
			a.MessageFa = fmt.Sprintf("شدت مصرف انرژی %.3f کیلووات‌ساعت بر واحد از حد %.3f بیشتر است", intensity, t.MaxEnergyIntensity)
			a.Hint = "Compare idle consumption between shifts"
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// UpdateThresholds validates and replaces the thresholds
func (m *ThresholdMonitor) UpdateThresholds(t models.KPIThresholds) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidThresholds, err)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.thresholds = t
	m.log.Info("Updated KPI thresholds", "thresholds", t)
	return nil
}

// GetThresholds returns current thresholds
func (m *ThresholdMonitor) GetThresholds() models.KPIThresholds {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.thresholds
}

// GetFactoryStats returns evaluation statistics for a factory
func (m *ThresholdMonitor) GetFactoryStats(factoryID string) (MonitorStats, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.stats[factoryID]
	if !ok {
		return MonitorStats{}, false
	}
	return *s, true
}
