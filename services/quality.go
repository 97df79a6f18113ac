package services

import (
	"sort"

	"factorylens/models"
)

// DefectCount is the number of failures attributed to one defect class
type DefectCount struct {
	DefectClass string `json:"defect_class"`
	Count       int    `json:"count"`
}

// ShiftProductRate is one cell of the shift by product matrix
type ShiftProductRate struct {
	Shift      models.ShiftCode   `json:"shift"`
	Product    models.ProductCode `json:"product"`
	Samples    int                `json:"samples"`
	DefectRate float64            `json:"defect_rate"`
}

// QCSummary condenses a set of inspections
type QCSummary struct {
	Inspected int                `json:"inspected"`
	Passed    int                `json:"passed"`
	Failed    int                `json:"failed"`
	PassRate  float64            `json:"pass_rate"`
	FailRate  float64            `json:"fail_rate"`
	Defects   []DefectCount      `json:"defects"`
	Matrix    []ShiftProductRate `json:"matrix"`
}

// SummarizeQC counts passes and failures, ranks defect classes and fills the
// full shift by product matrix, empty cells included.
func SummarizeQC(records []models.QCRecord) QCSummary {
	var s QCSummary
	defects := make(map[string]int)
	var defectOrder []string

	type cellKey struct {
		shift   models.ShiftCode
		product models.ProductCode
	}
	cells := make(map[cellKey][2]int) // samples, failures

	for _, r := range records {
		s.Inspected++
		key := cellKey{r.Shift, r.Product}
		c := cells[key]
		c[0]++
		if r.Failed() {
			s.Failed++
			c[1]++
			if _, ok := defects[r.DefectClass]; !ok {
				defectOrder = append(defectOrder, r.DefectClass)
			}
			defects[r.DefectClass]++
		} else {
			s.Passed++
		}
		cells[key] = c
	}

	s.PassRate = safeDiv(float64(s.Passed), float64(s.Inspected))
	s.FailRate = safeDiv(float64(s.Failed), float64(s.Inspected))

	s.Defects = make([]DefectCount, 0, len(defectOrder))
	for _, d := range defectOrder {
		s.Defects = append(s.Defects, DefectCount{DefectClass: d, Count: defects[d]})
	}
	sort.SliceStable(s.Defects, func(i, j int) bool { return s.Defects[i].Count > s.Defects[j].Count })

	s.Matrix = make([]ShiftProductRate, 0, len(models.Shifts)*len(models.Products))
	for _, shift := range models.Shifts {
		for _, product := range models.Products {
			c := cells[cellKey{shift, product}]
			s.Matrix = append(s.Matrix, ShiftProductRate{
				Shift:      shift,
				Product:    product,
				Samples:    c[0],
				DefectRate: safeDiv(float64(c[1]), float64(c[0])),
			})
		}
	}
	return s
}

// RecentAlerts returns the last n alerts in chronological order
func RecentAlerts(alerts []models.Alert, n int) []models.Alert {
	sorted := append([]models.Alert(nil), alerts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	if n >= 0 && len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
