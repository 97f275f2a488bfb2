package report

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Supported report locales; the first is the fallback.
var locales = []language.Tag{language.English, language.Spanish}

var matcher = language.NewMatcher(locales)

// translations holds every label that differs from its key. Schema variable
// names are printed as they are.
var translations = map[language.Tag]map[string]string{
	language.English: {
		"Ho":         "Ho (m)",
		"N":          "N (trees/ha)",
		"Dg":         "Dg (cm)",
		"G":          "G (m2/ha)",
		"V":          "V (m3/ha)",
		"before":     "Main stand before thinning",
		"harvested":  "Harvested stand",
		"after":      "Main stand after thinning",
		"dead":       "Dead stand",
		"ingrowth":   "Ingrowth",
		"specie_ifn": "IFN species id",
		"LOAD":       "Load",
		"INIT":       "Initialization",
		"EXECUTION":  "Execution",
		"HARVEST":    "Harvest",
		"Empty":      "",
	},
	language.Spanish: {
		"Summary":              "Resumen",
		"Plots":                "Parcelas",
		"Node":                 "Nodo",
		"Trees":                "Pies",
		"Study area":           "Zona de estudio",
		"Forest":               "Monte",
		"Main species":         "Especie principal",
		"specie_ifn":           "Especie IFN",
		"Inventory":            "Inventario",
		"Plot":                 "Parcela",
		"Model":                "Modelo",
		"Scenario":             "Escenario",
		"Age":                  "Edad",
		"Ho":                   "Ho (m)",
		"N":                    "N (pies/ha)",
		"Dg":                   "Dg (cm)",
		"G":                    "G (m2/ha)",
		"V":                    "V (m3/ha)",
		"before":               "Masa principal antes de la clara",
		"harvested":            "Masa extraída",
		"after":                "Masa principal después de la clara",
		"dead":                 "Masa muerta",
		"ingrowth":             "Masa incorporada",
		"Id":                   "Id",
		"Min age":              "Edad mínima",
		"Max age":              "Edad máxima",
		"Action":               "Acción",
		"Years":                "Años",
		"Harvest by":           "Tipo de corta",
		"Value":                "Valor",
		"By means of":          "Criterio",
		"LOAD":                 "Carga",
		"INIT":                 "Inicialización",
		"EXECUTION":            "Ejecución",
		"HARVEST":              "Corta",
		"Percent of trees":     "Porcentaje de pies",
		"Volumen":              "Volumen",
		"Area":                 "Área basimétrica",
		"Empty":                "",
		"Cut Down by Tallest":  "Clara por lo alto",
		"Cut Down by Smallest": "Clara por lo bajo",
		"Systematics cut down": "Clara sistemática",
	},
}

func newCatalog() (*catalog.Builder, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, messages := range translations {
		for key, msg := range messages {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("label %s/%s: %w", tag, key, err)
			}
		}
	}
	return b, nil
}

var loadCatalog = sync.OnceValues(newCatalog)

// Labels translates report captions for one locale.
type Labels struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLabels returns the labels of the supported locale closest to locale.
// Unknown or empty locales fall back to English.
func NewLabels(locale string) (*Labels, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	_, idx := language.MatchStrings(matcher, locale)
	tag := locales[idx]
	return &Labels{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}, nil
}

// Locale is the resolved locale tag.
func (l *Labels) Locale() string { return l.tag.String() }

// Get returns the caption of key, or key itself when no translation exists.
func (l *Labels) Get(key string) string { return l.printer.Sprintf(key) }
