package services

import (
	"sort"

	"factorylens/models"
)

// ParetoEntry is one downtime reason with its accumulated impact
type ParetoEntry struct {
	Reason     string  `json:"reason"`
	Minutes    float64 `json:"minutes"`
	Events     int     `json:"events"`
	Share      float64 `json:"share"`
	Cumulative float64 `json:"cumulative"`
}

// ScatterPoint places one downtime event on an hour-of-day axis
type ScatterPoint struct {
	Hour    int     `json:"hour"`
	Minutes float64 `json:"minutes"`
	Reason  string  `json:"reason"`
	LineID  string  `json:"line_id"`
}

// DowntimePareto sums minutes per reason and sorts descending. Ties keep the
// order in which reasons first appear.
func DowntimePareto(events []models.DowntimeEvent) []ParetoEntry {
	index := make(map[string]int)
	entries := make([]ParetoEntry, 0)
	var total float64
	for _, e := range events {
		i, ok := index[e.ReasonCode]
		if !ok {
			i = len(entries)
			index[e.ReasonCode] = i
			entries = append(entries, ParetoEntry{Reason: e.ReasonCode})
		}
		entries[i].Minutes += e.Minutes
		entries[i].Events++
		total += e.Minutes
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Minutes > entries[j].Minutes
	})

	var running float64
	for i := range entries {
		running += entries[i].Minutes
		entries[i].Share = safeDiv(entries[i].Minutes, total)
		entries[i].Cumulative = safeDiv(running, total)
	}
	return entries
}

// DowntimeScatter maps each event to its hour of day without aggregating
func DowntimeScatter(events []models.DowntimeEvent) []ScatterPoint {
	out := make([]ScatterPoint, 0, len(events))
	for _, e := range events {
		out = append(out, ScatterPoint{
			Hour:    e.Timestamp.Hour(),
			Minutes: e.Minutes,
			Reason:  e.ReasonCode,
			LineID:  e.LineID,
		})
	}
	return out
}
