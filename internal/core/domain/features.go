package domain

import (
	"strconv"
)

type FeatureKind int

const (
	Numerical FeatureKind = iota
	Categorical
)

func (k FeatureKind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numerical"
}

const UnknownCategory = "Unknown"

// Feature names used by the demand model at training time.
const (
	FeatureStoreID            = "Store ID"
	FeatureProductID          = "Product ID"
	FeatureCategory           = "Category"
	FeatureRegion             = "Region"
	FeatureInventoryLevel     = "Inventory Level"
	FeatureUnitsOrdered       = "Units Ordered"
	FeaturePrice              = "Price"
	FeatureDiscount           = "Discount"
	FeatureWeather            = "Weather Condition"
	FeatureHoliday            = "Holiday/Promotion"
	FeatureCompetitorPrice    = "Competitor Pricing"
	FeatureSeasonality        = "Seasonality"
	FeatureYear               = "Year"
	FeatureMonth              = "Month"
	FeatureDay                = "Day"
	FeatureDayOfWeek          = "DayOfWeek"
	FeatureWeekOfYear         = "WeekOfYear"
	FeatureUnitsSoldLag1      = "Units Sold Lag1"
	FeatureInventoryLevelLag1 = "Inventory Level Lag1"
)

type Feature struct {
	Name string
	Kind FeatureKind
}

// FeatureSchema is the ordered list of inputs the predictor expects. It is
// resolved once at startup and never mutated afterwards.
type FeatureSchema []Feature

// DefaultFeatureSchema mirrors the feature lists the demand model was trained on.
func DefaultFeatureSchema() FeatureSchema {
	return FeatureSchema{
		{FeatureInventoryLevel, Numerical},
		{FeaturePrice, Numerical},
		{FeatureDiscount, Numerical},
		{FeatureUnitsSoldLag1, Numerical},
		{FeatureInventoryLevelLag1, Numerical},
		{FeatureUnitsOrdered, Numerical},
		{FeatureCompetitorPrice, Numerical},
		{FeatureStoreID, Categorical},
		{FeatureProductID, Categorical},
		{FeatureCategory, Categorical},
		{FeatureRegion, Categorical},
		{FeatureWeather, Categorical},
		{FeatureHoliday, Categorical},
		{FeatureSeasonality, Categorical},
		{FeatureYear, Categorical},
		{FeatureMonth, Categorical},
		{FeatureDay, Categorical},
		{FeatureDayOfWeek, Categorical},
		{FeatureWeekOfYear, Categorical},
	}
}

type FeatureValue struct {
	Name     string
	Kind     FeatureKind
	Number   float64
	Category string
}

// FeatureVector is one model input row, ordered as its schema.
type FeatureVector []FeatureValue

// Map renders the vector as name -> scalar, the wire shape model servers expect.
func (v FeatureVector) Map() map[string]any {
	m := make(map[string]any, len(v))
	for _, f := range v {
		if f.Kind == Categorical {
			m[f.Name] = f.Category
		} else {
			m[f.Name] = f.Number
		}
	}
	return m
}

// FeatureRow is the set of fields the forecast engine computes for one
// simulated day.
type FeatureRow struct {
	StoreID            string
	ProductID          string
	Category           string
	Region             string
	InventoryLevel     float64
	UnitsOrdered       float64
	Price              float64
	Discount           float64
	Weather            string
	Holiday            string
	CompetitorPrice    float64
	Seasonality        string
	Year               int
	Month              int
	Day                int
	DayOfWeek          int
	WeekOfYear         int
	UnitsSoldLag1      float64
	InventoryLevelLag1 float64
}

func (r FeatureRow) fields() map[string]any {
	return map[string]any{
		FeatureStoreID:            r.StoreID,
		FeatureProductID:          r.ProductID,
		FeatureCategory:           r.Category,
		FeatureRegion:             r.Region,
		FeatureInventoryLevel:     r.InventoryLevel,
		FeatureUnitsOrdered:       r.UnitsOrdered,
		FeaturePrice:              r.Price,
		FeatureDiscount:           r.Discount,
		FeatureWeather:            r.Weather,
		FeatureHoliday:            r.Holiday,
		FeatureCompetitorPrice:    r.CompetitorPrice,
		FeatureSeasonality:        r.Seasonality,
		FeatureYear:               r.Year,
		FeatureMonth:              r.Month,
		FeatureDay:                r.Day,
		FeatureDayOfWeek:          r.DayOfWeek,
		FeatureWeekOfYear:         r.WeekOfYear,
		FeatureUnitsSoldLag1:      r.UnitsSoldLag1,
		FeatureInventoryLevelLag1: r.InventoryLevelLag1,
	}
}

// Vector projects the row onto schema. Schema entries the row does not
// compute get 0.0 or UnknownCategory; computed fields outside the schema are
// dropped.
func (r FeatureRow) Vector(schema FeatureSchema) FeatureVector {
	computed := r.fields()
	vec := make(FeatureVector, 0, len(schema))
	for _, f := range schema {
		fv := FeatureValue{Name: f.Name, Kind: f.Kind}
		raw, ok := computed[f.Name]
		if f.Kind == Categorical {
			fv.Category = UnknownCategory
			if ok {
				if s := categoryOf(raw); s != "" {
					fv.Category = s
				}
			}
		} else if ok {
			fv.Number = numberOf(raw)
		}
		vec = append(vec, fv)
	}
	return vec
}

func categoryOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func numberOf(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Season maps a month to the four-way season label used in training.
func Season(month int) string {
	switch {
	case month >= 3 && month <= 5:
		return "Spring"
	case month >= 6 && month <= 8:
		return "Summer"
	case month >= 9 && month <= 11:
		return "Autumn"
	default:
		return "Winter"
	}
}
