package generator

import (
	"fmt"
	"math"
	"time"

	"factorylens/models"
)

// DefaultSeed keeps the demo identical across restarts
const DefaultSeed int64 = 42

// LookbackDays is the number of historical day offsets generated
const LookbackDays = 32

const (
	plannedMinutesPerDay = 22 * 60
	homeBaseLoad         = 1.05
	inspectionScrapRate  = 0.01
)

// Nominal measurement centers and the spread drawn around them. Length and
// load spreads reach past the acceptance bounds so a few samples fail; with
// spreads of 1.5 and 15 every sample would pass.
const (
	nominalOD     = 12.0
	nominalLength = 50.0
	nominalLoad   = 240.0
	spreadOD      = 0.2
	spreadLength  = 2.1
	spreadLoad    = 20.5
)

// AcceptanceBounds decide pass/fail for every product. Recipe tolerances
// are display data and do not take part in the decision.
var AcceptanceBounds = models.Tolerance{
	OuterDiameter: models.Band{Min: 11.7, Max: 12.5},
	Length:        models.Band{Min: 48, Max: 52},
	Load:          models.Band{Min: 220, Max: 260},
}

var (
	downtimeReasons = []string{"mechanical_failure", "setup", "material_shortage", "quality_hold"}
	defectClasses   = []string{"surface_scratch", "coil_gap", "length_offset", "load_drift"}
)

// Options control a generation run
type Options struct {
	Seed int64
	// Now anchors the window; day offset 0 is Now's calendar day. Zero means time.Now().
	Now time.Time
	// Location defines calendar days. Nil means time.Local.
	Location *time.Location
}

// Generate builds the catalog and the full time series. The same options
// always produce the same dataset, ids included.
func Generate(opts Options) *models.Dataset {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	now := opts.Now.In(opts.Location)

	src := NewSource(opts.Seed)
	catalog := BuildCatalog(src, now)

	ds := &models.Dataset{
		Catalog:     catalog,
		Seed:        opts.Seed,
		GeneratedAt: now,
	}
	s := &synthesizer{
		src:            src,
		now:            now,
		catalog:        catalog,
		dataset:        ds,
		recipeVersions: make(map[models.ProductCode]string, len(catalog.Recipes)),
	}
	for _, r := range catalog.Recipes {
		s.recipeVersions[r.Product] = r.Version
	}
	if len(catalog.Models) > 0 {
		s.modelVersion = catalog.Models[0].Version
	}

	for day := 0; day < LookbackDays; day++ {
		for _, factory := range catalog.Factories {
			s.factoryDay(factory, day)
		}
	}
	return ds
}

type synthesizer struct {
	src            *Source
	now            time.Time
	catalog        models.Catalog
	dataset        *models.Dataset
	recipeVersions map[models.ProductCode]string
	modelVersion   string
}

// at returns the given hour on the calendar day daysAgo before now.
// Hours past 23 roll into the following day.
func (s *synthesizer) at(daysAgo, hour int) time.Time {
	return time.Date(s.now.Year(), s.now.Month(), s.now.Day()-daysAgo, hour, 0, 0, 0, s.now.Location())
}

func (s *synthesizer) factoryDay(factory models.Factory, day int) {
	baseLoad := homeBaseLoad
	if !factory.Home {
		baseLoad = s.src.Range(0.92, 1.0)
	}

	s.energy(factory, day, baseLoad)

	for _, line := range s.catalog.LinesFor(factory.ID) {
		s.oee(line, day)
		for idx, shift := range models.Shifts {
			s.inspections(line, day, idx, shift)
		}
		s.downtime(line, day)
	}

	if day%3 == 0 {
		s.alert(factory, day)
	}
}

func (s *synthesizer) energy(factory models.Factory, day int, baseLoad float64) {
	d := float64(day)
	electricityKwh := 2200 * baseLoad * (1 - d*0.003 + s.src.Float64()*0.05)
	gas := 980 * baseLoad * (1 - d*0.002 + s.src.Float64()*0.04)
	air := 610 * baseLoad * (1 - d*0.002 + s.src.Float64()*0.03)
	pressure := 7.2 - s.src.Float64()*0.5
	flow := 5.5 + s.src.Float64()*1.2

	s.dataset.Energy = append(s.dataset.Energy, models.EnergySample{
		ID:             fmt.Sprintf("%s-e-%d", factory.ID, day),
		FactoryID:      factory.ID,
		Date:           s.at(day, 12),
		ElectricityKw:  electricityKwh / 24,
		ElectricityKwh: electricityKwh,
		GasM3:          gas,
		AirNm3h:        air / 24,
		PressureBar:    pressure,
		FlowM3Min:      flow,
	})
}

func (s *synthesizer) oee(line models.ProductionLine, day int) {
	planned := float64(plannedMinutesPerDay)
	downtime := 60 + s.src.Float64()*80
	run := planned - downtime
	idealCycle := 2.4 + s.src.Float64()*0.4
	total := int(math.Round(run * 60 / idealCycle))
	scrapRate := 0.02 + s.src.Float64()*0.03
	if line.Process == models.ProcessInspection {
		scrapRate += inspectionScrapRate
	}
	scrap := int(math.Round(float64(total) * scrapRate))
	reason := Pick(s.src, downtimeReasons)

	s.dataset.OEE = append(s.dataset.OEE, models.OeeSample{
		ID:              fmt.Sprintf("%s-oee-%d", line.ID, day),
		FactoryID:       line.FactoryID,
		LineID:          line.ID,
		Date:            s.at(day, 17),
		PlannedMinutes:  planned,
		RunMinutes:      run,
		IdealCycleTime:  idealCycle,
		TotalCount:      total,
		GoodCount:       total - scrap,
		ScrapCount:      scrap,
		DowntimeMinutes: downtime,
		DowntimeReason:  reason,
	})
}

// inspections emits 6 to 9 QC records for one shift. Shift N runs product N.
func (s *synthesizer) inspections(line models.ProductionLine, day, shiftIdx int, shift models.ShiftCode) {
	product := s.catalog.Products[shiftIdx%len(s.catalog.Products)]
	samples := 6 + s.src.Intn(4)
	for i := 0; i < samples; i++ {
		od := nominalOD + s.src.Range(-spreadOD, spreadOD)
		length := nominalLength + s.src.Range(-spreadLength, spreadLength)
		load := nominalLoad + s.src.Range(-spreadLoad, spreadLoad)

		rec := models.QCRecord{
			ID:        fmt.Sprintf("%s-qc-%d-%s-%d", line.ID, day, shift, i),
			FactoryID: line.FactoryID,
			LineID:    line.ID,
			Product:   product,
			Shift:     shift,
			Timestamp: s.at(day, 6+shiftIdx*6+i),
			Result:    models.QCPass,
			Measurements: models.Measurements{
				OuterDiameter: roundTo(od, 2),
				FreeLength:    roundTo(length, 2),
				Load:          roundTo(load, 1),
			},
			ModelVersion:  s.modelVersion,
			RecipeVersion: s.recipeVersion(product),
		}
		// decided on the raw draws, before display rounding
		if !AcceptanceBounds.Contains(models.Measurements{OuterDiameter: od, FreeLength: length, Load: load}) {
			rec.Result = models.QCFail
			rec.DefectClass = Pick(s.src, defectClasses)
		}
		s.dataset.QCRecords = append(s.dataset.QCRecords, rec)
	}
}

func (s *synthesizer) recipeVersion(p models.ProductCode) string {
	if v, ok := s.recipeVersions[p]; ok {
		return v
	}
	return "v1.0"
}

func (s *synthesizer) downtime(line models.ProductionLine, day int) {
	events := 2 + s.src.Intn(3)
	for k := 0; k < events; k++ {
		minutes := 10 + s.src.Float64()*45
		s.dataset.Downtime = append(s.dataset.Downtime, models.DowntimeEvent{
			ID:         fmt.Sprintf("%s-dt-%d-%d", line.ID, day, k),
			FactoryID:  line.FactoryID,
			LineID:     line.ID,
			Minutes:    roundTo(minutes, 1),
			ReasonCode: Pick(s.src, downtimeReasons),
			Timestamp:  s.at(day, 5+k*5),
			Shift:      models.Shifts[k%len(models.Shifts)],
		})
	}
}

// alert alternates an air-leak scenario and a QC drift scenario.
func (s *synthesizer) alert(factory models.Factory, day int) {
	a := models.Alert{
		ID:        fmt.Sprintf("%s-alert-%d", factory.ID, day),
		FactoryID: factory.ID,
		Timestamp: s.at(day, 9),
	}
	if day%2 == 0 {
		a.Severity = models.SeverityHigh
		a.Module = models.ModuleEnergy
		a.MessageFa = "مشاهده افزایش مصرف کمپرسور و افت فشار - احتمال نشت هوا"
		a.MessageEn = "Compressor power up with pressure drop - leak suspected"
		a.Hint = "بررسی شیر یکطرفه و اتصالات، فعال‌سازی حالت اکو در شیفت کم‌بار"
	} else {
		a.Severity = models.SeverityMedium
		a.Module = models.ModuleQC
		a.MessageFa = "انحراف طول فنر در خط ۳ نیازمند بازبینی مدل"
		a.MessageEn = "Spring length drift on Line 3 requires model review"
		a.Hint = "Check recipe version and camera focus; consider rollback"
	}
	s.dataset.Alerts = append(s.dataset.Alerts, a)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
