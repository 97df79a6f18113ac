package generator

import (
	"fmt"
	"time"

	"factorylens/models"
)

var factories = []models.Factory{
	{
		ID:             models.HomeFactoryID,
		NameFa:         "کارخانه فنر لول ایران",
		NameEn:         "Fanar Lool Iran",
		BenchmarkLabel: "فَنَر لول",
		Home:           true,
	},
	{
		ID:             "member-a",
		NameFa:         "کارخانه عضو A",
		NameEn:         "Member Factory A",
		BenchmarkLabel: "عضو A",
	},
	{
		ID:             "member-b",
		NameFa:         "کارخانه عضو B",
		NameEn:         "Member Factory B",
		BenchmarkLabel: "عضو B",
	},
	{
		ID:             "member-c",
		NameFa:         "کارخانه عضو C",
		NameEn:         "Member Factory C",
		BenchmarkLabel: "عضو C",
	},
}

type lineTemplate struct {
	nameFa  string
	nameEn  string
	process models.Process
}

// Every factory gets one line per template, in this order.
var lineTemplates = []lineTemplate{
	{nameFa: "خط ۱: پیچش فنر", nameEn: "Line 1: Coiling", process: models.ProcessCoiling},
	{nameFa: "خط ۲: عملیات حرارتی", nameEn: "Line 2: Heat Treatment", process: models.ProcessHeatTreatment},
	{nameFa: "خط ۳: سنگ زنی", nameEn: "Line 3: Grinding", process: models.ProcessGrinding},
	{nameFa: "خط ۴: بازرسی نهایی", nameEn: "Line 4: Final Inspection", process: models.ProcessInspection},
}

const (
	targetOEEBase   = 0.78
	targetOEESpread = 0.08
)

var tariffs = []models.Tariff{
	{Carrier: models.CarrierElectricity, Unit: "kWh", Price: 4500},
	{Carrier: models.CarrierGas, Unit: "m3", Price: 1200},
	{Carrier: models.CarrierAir, Unit: "Nm3", Price: 900},
}

// BuildCatalog constructs the reference entities. It draws once per line
// from src to place each target OEE inside its band.
func BuildCatalog(src *Source, now time.Time) models.Catalog {
	lines := make([]models.ProductionLine, 0, len(factories)*len(lineTemplates))
	for _, f := range factories {
		for idx, lt := range lineTemplates {
			lines = append(lines, models.ProductionLine{
				ID:        fmt.Sprintf("%s-l%d", f.ID, idx+1),
				FactoryID: f.ID,
				NameFa:    lt.nameFa,
				NameEn:    lt.nameEn,
				Process:   lt.process,
				TargetOEE: targetOEEBase + src.Float64()*targetOEESpread,
			})
		}
	}

	products := append([]models.ProductCode(nil), models.Products...)

	return models.Catalog{
		Factories: append([]models.Factory(nil), factories...),
		Lines:     lines,
		Products:  products,
		Recipes:   buildRecipes(products),
		Models:    buildModels(lines, now),
		Tariffs:   append([]models.Tariff(nil), tariffs...),
	}
}

// buildRecipes widens every tolerance band by the product's index.
func buildRecipes(products []models.ProductCode) []models.Recipe {
	recipes := make([]models.Recipe, 0, len(products))
	for idx, p := range products {
		shift := float64(idx)
		lighting := "5500K diffuse"
		if idx%2 != 0 {
			lighting = "6000K ring"
		}
		recipes = append(recipes, models.Recipe{
			ID:            fmt.Sprintf("recipe-%s", p),
			Product:       p,
			Version:       fmt.Sprintf("v1.%d", idx+1),
			CameraProfile: fmt.Sprintf("Cam-%s-%d", p, idx+1),
			Lighting:      lighting,
			Tolerance: models.Tolerance{
				OuterDiameter: models.Band{Min: 11.8 + shift*0.3, Max: 12.4 + shift*0.3},
				Length:        models.Band{Min: 48 + shift*2, Max: 52 + shift*2},
				Load:          models.Band{Min: 220 + shift*10, Max: 260 + shift*10},
			},
		})
	}
	return recipes
}

func buildModels(lines []models.ProductionLine, now time.Time) []models.ModelRegistryItem {
	updated := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	var inspection, other []string
	for _, l := range lines {
		if l.Process == models.ProcessInspection {
			inspection = append(inspection, l.ID)
		} else {
			other = append(other, l.ID)
		}
	}
	return []models.ModelRegistryItem{
		{
			ID:          "mdl-1",
			Name:        "SpringVision",
			Version:     "1.3.2",
			Status:      models.ModelActive,
			UpdatedAt:   updated,
			TargetLines: inspection,
		},
		{
			ID:          "mdl-2",
			Name:        "DimensionNet",
			Version:     "1.1.0",
			Status:      models.ModelStaging,
			UpdatedAt:   updated.AddDate(0, 0, -5),
			TargetLines: other,
		},
	}
}
