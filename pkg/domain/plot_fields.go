package domain

import (
	"fmt"
	"strings"
)

// PlotVariables lists the plot schema in output column order.
var PlotVariables = []string{
	"INVENTORY_ID", "PLOT_ID", "PLOT_TYPE", "PLOT_AREA", "PROVINCE",
	"STUDY_AREA", "MUNICIPALITY", "FOREST", "MAIN_SPECIE", "SPECIE_IFN_ID",
	"SLOPE", "ASPECT", "CONTINENTALITY", "LONGITUDE", "LATITUDE", "ALTITUDE",
	"EXPAN", "AGE", "DENSITY", "BASAL_AREA", "BA_MAX", "BA_MIN", "MEAN_BA",
	"DBH_MAX", "DBH_MIN", "MEAN_DBH", "QM_DBH", "DOMINANT_DBH",
	"H_MAX", "H_MIN", "MEAN_H", "DOMINANT_H", "DOMINANT_SECTION",
	"CROWN_MEAN_D", "CROWN_DOM_D", "CANOPY_COVER", "REINEKE", "HART", "SI", "QI",
	"VOL", "BOLE_VOL", "BARK_VOL",
	"WSW", "WSB", "W_CORK", "WTHICKB", "WSTB", "WB2_7", "WB2_T", "WTHINB",
	"WB05", "WL", "WTBL", "WBL0_7", "WR", "WT",
	"UNWINDING", "VENEER", "SAW_BIG", "SAW_SMALL", "SAW_CANTER", "POST", "STAKE", "CHIPS",
}

var plotStringFields = map[string]func(*Plot) *string{
	"PLOT_TYPE":    func(p *Plot) *string { return &p.Type },
	"PROVINCE":     func(p *Plot) *string { return &p.Province },
	"STUDY_AREA":   func(p *Plot) *string { return &p.StudyArea },
	"MUNICIPALITY": func(p *Plot) *string { return &p.Municipality },
	"FOREST":       func(p *Plot) *string { return &p.Forest },
	"MAIN_SPECIE":  func(p *Plot) *string { return &p.MainSpecie },
}

var plotFloatFields = map[string]func(*Plot) *float64{
	"PLOT_AREA":        func(p *Plot) *float64 { return &p.Area },
	"SPECIE_IFN_ID":    func(p *Plot) *float64 { return &p.SpecieIFNID },
	"SLOPE":            func(p *Plot) *float64 { return &p.Slope },
	"ASPECT":           func(p *Plot) *float64 { return &p.Aspect },
	"CONTINENTALITY":   func(p *Plot) *float64 { return &p.Continentality },
	"LONGITUDE":        func(p *Plot) *float64 { return &p.Longitude },
	"LATITUDE":         func(p *Plot) *float64 { return &p.Latitude },
	"ALTITUDE":         func(p *Plot) *float64 { return &p.Altitude },
	"EXPAN":            func(p *Plot) *float64 { return &p.Expan },
	"AGE":              func(p *Plot) *float64 { return &p.Age },
	"DENSITY":          func(p *Plot) *float64 { return &p.Density },
	"BASAL_AREA":       func(p *Plot) *float64 { return &p.BasalArea },
	"BA_MAX":           func(p *Plot) *float64 { return &p.BAMax },
	"BA_MIN":           func(p *Plot) *float64 { return &p.BAMin },
	"MEAN_BA":          func(p *Plot) *float64 { return &p.MeanBA },
	"DBH_MAX":          func(p *Plot) *float64 { return &p.DBHMax },
	"DBH_MIN":          func(p *Plot) *float64 { return &p.DBHMin },
	"MEAN_DBH":         func(p *Plot) *float64 { return &p.MeanDBH },
	"QM_DBH":           func(p *Plot) *float64 { return &p.QMDBH },
	"DOMINANT_DBH":     func(p *Plot) *float64 { return &p.DominantDBH },
	"H_MAX":            func(p *Plot) *float64 { return &p.HMax },
	"H_MIN":            func(p *Plot) *float64 { return &p.HMin },
	"MEAN_H":           func(p *Plot) *float64 { return &p.MeanH },
	"DOMINANT_H":       func(p *Plot) *float64 { return &p.DominantH },
	"DOMINANT_SECTION": func(p *Plot) *float64 { return &p.DominantSection },
	"CROWN_MEAN_D":     func(p *Plot) *float64 { return &p.CrownMeanD },
	"CROWN_DOM_D":      func(p *Plot) *float64 { return &p.CrownDomD },
	"CANOPY_COVER":     func(p *Plot) *float64 { return &p.CanopyCover },
	"REINEKE":          func(p *Plot) *float64 { return &p.Reineke },
	"HART":             func(p *Plot) *float64 { return &p.Hart },
	"SI":               func(p *Plot) *float64 { return &p.SI },
	"QI":               func(p *Plot) *float64 { return &p.QI },
	"VOL":              func(p *Plot) *float64 { return &p.Vol },
	"BOLE_VOL":         func(p *Plot) *float64 { return &p.BoleVol },
	"BARK_VOL":         func(p *Plot) *float64 { return &p.BarkVol },
	"WSW":              func(p *Plot) *float64 { return &p.WSW },
	"WSB":              func(p *Plot) *float64 { return &p.WSB },
	"W_CORK":           func(p *Plot) *float64 { return &p.WCork },
	"WTHICKB":          func(p *Plot) *float64 { return &p.WThickB },
	"WSTB":             func(p *Plot) *float64 { return &p.WSTB },
	"WB2_7":            func(p *Plot) *float64 { return &p.WB27 },
	"WB2_T":            func(p *Plot) *float64 { return &p.WB2T },
	"WTHINB":           func(p *Plot) *float64 { return &p.WThinB },
	"WB05":             func(p *Plot) *float64 { return &p.WB05 },
	"WL":               func(p *Plot) *float64 { return &p.WL },
	"WTBL":             func(p *Plot) *float64 { return &p.WTBL },
	"WBL0_7":           func(p *Plot) *float64 { return &p.WBL07 },
	"WR":               func(p *Plot) *float64 { return &p.WR },
	"WT":               func(p *Plot) *float64 { return &p.WT },
	"UNWINDING":        func(p *Plot) *float64 { return &p.Unwinding },
	"VENEER":           func(p *Plot) *float64 { return &p.Veneer },
	"SAW_BIG":          func(p *Plot) *float64 { return &p.SawBig },
	"SAW_SMALL":        func(p *Plot) *float64 { return &p.SawSmall },
	"SAW_CANTER":       func(p *Plot) *float64 { return &p.SawCanter },
	"POST":             func(p *Plot) *float64 { return &p.Post },
	"STAKE":            func(p *Plot) *float64 { return &p.Stake },
	"CHIPS":            func(p *Plot) *float64 { return &p.Chips },
}

// IsPlotField reports whether name belongs to the plot schema.
func IsPlotField(name string) bool {
	switch name {
	case "INVENTORY_ID", "PLOT_ID":
		return true
	}
	if _, ok := plotStringFields[name]; ok {
		return true
	}
	_, ok := plotFloatFields[name]
	return ok
}

// Value returns a numeric plot field by schema name.
func (p *Plot) Value(name string) (float64, error) {
	switch name {
	case "INVENTORY_ID":
		return float64(p.InventoryID), nil
	case "PLOT_ID":
		return float64(p.ID), nil
	}
	ptr, ok := plotFloatFields[name]
	if !ok {
		return 0, fmt.Errorf("%w: plot.%s", ErrUnknownField, name)
	}
	return *ptr(p), nil
}

// Field returns a plot field for tabular output.
func (p *Plot) Field(name string) (any, error) {
	if ptr, ok := plotStringFields[name]; ok {
		return *ptr(p), nil
	}
	return p.Value(name)
}

// SetValue assigns a plot field by schema name with the same coercion rules as
// Tree.SetValue.
func (p *Plot) SetValue(name string, value any) error {
	switch name {
	case "INVENTORY_ID", "PLOT_ID":
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("plot.%s: %w", name, err)
		}
		if name == "PLOT_ID" {
			p.ID = n
		} else {
			p.InventoryID = n
		}
		return nil
	}
	if ptr, ok := plotStringFields[name]; ok {
		*ptr(p) = strings.TrimSpace(toString(value))
		return nil
	}
	ptr, ok := plotFloatFields[name]
	if !ok {
		return fmt.Errorf("%w: plot.%s", ErrUnknownField, name)
	}
	f, err := toFloat(value)
	if err != nil {
		return fmt.Errorf("plot.%s: %w", name, err)
	}
	*ptr(p) = f
	return nil
}

// Add accumulates delta onto a numeric plot field.
func (p *Plot) Add(name string, delta float64) error {
	ptr, ok := plotFloatFields[name]
	if !ok {
		return fmt.Errorf("%w: plot.%s", ErrUnknownField, name)
	}
	*ptr(p) += delta
	return nil
}
