package services

import (
	"time"

	"factorylens/models"
)

// WindowStart returns local midnight of the first day inside the range,
// counting today as day one.
func WindowStart(r models.RangeKey, now time.Time) time.Time {
	days := r.Days()
	return time.Date(now.Year(), now.Month(), now.Day()-(days-1), 0, 0, 0, 0, now.Location())
}

// Filter narrows a dataset to the records visible under sel, relative to the current moment.
func Filter(d *models.Dataset, sel models.Selection) models.FilteredDataset {
	return FilterAt(d, sel, time.Now())
}

// FilterAt is Filter with an explicit reference moment. QC records must match
// factory, product and shift; downtime matches factory and shift; OEE, energy
// and alerts match factory only. Everything must fall on or after the window start.
func FilterAt(d *models.Dataset, sel models.Selection, now time.Time) models.FilteredDataset {
	after := WindowStart(sel.Range, now)
	out := models.FilteredDataset{
		Selection:   sel,
		WindowStart: after,
	}
	if d == nil {
		d = &models.Dataset{}
	}

	out.QCRecords = keep(d.QCRecords, func(r models.QCRecord) bool {
		return inWindow(r, sel.FactoryID, after) && r.Product == sel.Product && r.Shift == sel.Shift
	})
	out.Downtime = keep(d.Downtime, func(e models.DowntimeEvent) bool {
		return inWindow(e, sel.FactoryID, after) && e.Shift == sel.Shift
	})
	out.OEE = byFactoryWindow(d.OEE, sel.FactoryID, after)
	out.Energy = byFactoryWindow(d.Energy, sel.FactoryID, after)
	out.Alerts = byFactoryWindow(d.Alerts, sel.FactoryID, after)
	return out
}

// PreviousPeriodEnergy returns the factory's energy samples from the equal-length
// period that ends where the selection's window starts.
func PreviousPeriodEnergy(d *models.Dataset, sel models.Selection, now time.Time) []models.EnergySample {
	if d == nil {
		return nil
	}
	end := WindowStart(sel.Range, now)
	start := end.AddDate(0, 0, -sel.Range.Days())
	return keep(d.Energy, func(e models.EnergySample) bool {
		at := e.OccurredAt()
		return e.FactoryID == sel.FactoryID && !at.Before(start) && at.Before(end)
	})
}

func inWindow(r models.Record, factoryID string, after time.Time) bool {
	return r.FactoryRef() == factoryID && !r.OccurredAt().Before(after)
}

func byFactoryWindow[T models.Record](items []T, factoryID string, after time.Time) []T {
	return keep(items, func(r T) bool { return inWindow(r, factoryID, after) })
}

func keep[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0)
	for _, item := range items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}
