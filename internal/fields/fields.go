// Package fields is the static catalogue of tracked values: where each value
// is published, how it is recognised in page text, and where it is declared
// inside the calculator documents.
package fields

import (
	"fmt"

	"github.com/nexus-paies/fiscal-updater/internal/extract"
	"github.com/nexus-paies/fiscal-updater/internal/model"
)

// MonthlyLegalHours is the legal monthly duration used to derive the monthly
// SMIC from the hourly rate (35h x 52 / 12).
const MonthlyLegalHours = 151.67

// IRCeilings is the number of bounded brackets of the income tax scale. The
// top bracket has no ceiling.
const IRCeilings = 4

// Routine names.
const (
	RoutineCotisations   = "cotisations"
	RoutineBaremeIR      = "bareme_ir"
	RoutinePlafondsMicro = "plafonds_micro"
	RoutineSMIC          = "smic"
	RoutinePMSS          = "pmss"
)

// Spec binds a baseline field to its extraction rule.
type Spec struct {
	Field model.Field
	Rule  extract.Rule
}

// Routine is an independent field-update routine: a list of alternative
// source pages and the fields read from them.
type Routine struct {
	Name  string
	URLs  []string
	Specs []Spec
}

// DefaultSources lists the official pages consulted by each routine, in order.
var DefaultSources = map[string][]string{
	RoutineCotisations: {
		"https://www.autoentrepreneur.urssaf.fr/portail/accueil/sinformer-sur-le-statut/lessentiel-du-statut.html",
		"https://entreprendre.service-public.fr/vosdroits/F23267",
	},
	RoutineBaremeIR:      {"https://www.service-public.fr/particuliers/vosdroits/F1419"},
	RoutinePlafondsMicro: {"https://entreprendre.service-public.fr/vosdroits/F32353"},
	RoutineSMIC:          {"https://www.service-public.fr/particuliers/vosdroits/F2300"},
	RoutinePMSS:          {"https://www.urssaf.fr/accueil/outils-documentation/taux-baremes/plafonds-securite-sociale.html"},
}

const (
	pct    = `\b(\d{1,2}(?:[,.]\d{1,2})?) ?%`
	amount = `\b(\d{1,3}(?: ?\d{3})*) ?(?:€|euros?)`
)

func rate(key, label, bound string) model.Field {
	return model.Field{Key: key, Label: label, Category: "cotisation", Bound: bound, Unit: model.UnitRate, Tolerance: model.UnitRate.DefaultTolerance()}
}

func cotisations(urls []string) Routine {
	return Routine{
		Name: RoutineCotisations,
		URLs: urls,
		Specs: []Spec{
			{
				Field: rate("cotisations_sociales.bnc.normal", "BNC", "cotisation_bnc"),
				Rule: extract.Rule{
					Name: "bnc",
					Patterns: extract.MustPatterns(
						`(?:BNC|libérale?s?).{0,200}?`+pct,
						pct+`.{0,200}?(?:BNC|libérale?s?)`,
					),
					Parse:   extract.ParsePercent,
					Derived: []extract.Derivation{{Key: "cotisations_sociales.bnc.acre", Compute: extract.Half}},
				},
			},
			{
				Field: rate("cotisations_sociales.bic_services.normal", "BIC services", "cotisation_bic_services"),
				Rule: extract.Rule{
					Name: "bic_services",
					Patterns: extract.MustPatterns(
						`(?:prestations? de services? (?:commerciales|artisanales)|BIC services).{0,150}?`+pct,
						pct+`.{0,150}?(?:prestations? de services? (?:commerciales|artisanales)|BIC services)`,
					),
					Parse:   extract.ParsePercent,
					Derived: []extract.Derivation{{Key: "cotisations_sociales.bic_services.acre", Compute: extract.Half}},
				},
			},
			{
				Field: rate("cotisations_sociales.bic_vente.normal", "BIC vente", "cotisation_bic_vente"),
				Rule: extract.Rule{
					Name: "bic_vente",
					Patterns: extract.MustPatterns(
						`(?:vente de marchandises|achat[- ]revente|BIC vente).{0,150}?`+pct,
						pct+`.{0,150}?(?:vente de marchandises|achat[- ]revente|BIC vente)`,
					),
					Parse:   extract.ParsePercent,
					Derived: []extract.Derivation{{Key: "cotisations_sociales.bic_vente.acre", Compute: extract.Half}},
				},
			},
		},
	}
}

// CeilingKey is the baseline key of the i-th bracket ceiling (0-based).
func CeilingKey(i int) string {
	return fmt.Sprintf("bareme_ir.tranches.%d.plafond", i)
}

func baremeIR(urls []string) Routine {
	r := Routine{Name: RoutineBaremeIR, URLs: urls}
	for i := range IRCeilings {
		r.Specs = append(r.Specs, Spec{
			Field: model.Field{
				Key:      CeilingKey(i),
				Label:    fmt.Sprintf("Tranche IR %d", i+1),
				Category: "ir",
				Bound:    fmt.Sprintf("ir_tranche_%d", i+1),
				Unit:     model.UnitAmount,
			},
			Rule: extract.Rule{
				Name: fmt.Sprintf("ir_tranche_%d", i+1),
				Patterns: extract.MustPatterns(
					`(?:jusqu['’]à|de \d[\d ]* ?(?:€|euros?)? à) ?`+amount,
					`n['’]excédant pas `+amount,
				),
				Parse:      extract.ParseAmount,
				Occurrence: i,
			},
		})
	}
	return r
}

func plafondsMicro(urls []string) Routine {
	return Routine{
		Name: RoutinePlafondsMicro,
		URLs: urls,
		Specs: []Spec{
			{
				Field: model.Field{Key: "plafonds_micro.vente_marchandises", Label: "Plafond vente", Category: "plafond", Bound: "plafond_vente", Unit: model.UnitAmount},
				Rule: extract.Rule{
					Name: "plafond_vente",
					Patterns: extract.MustPatterns(
						`\b(\d{3} ?\d{3}) ?(?:€|euros?).{0,150}?(?:vente|marchandises|commerc)`,
						`(?:vente de marchandises|commerciales).{0,150}?\b(\d{3} ?\d{3}) ?(?:€|euros?)`,
					),
					Parse: extract.ParseAmount,
				},
			},
			{
				Field: model.Field{Key: "plafonds_micro.prestations_services", Label: "Plafond services", Category: "plafond", Bound: "plafond_services", Unit: model.UnitAmount},
				Rule: extract.Rule{
					Name: "plafond_services",
					Patterns: extract.MustPatterns(
						`(?:services?|prestations?).{0,150}?\b(\d{2} ?\d{3}) ?(?:€|euros?)`,
					),
					Parse: extract.ParseAmount,
				},
			},
		},
	}
}

// SMICKeys returns the hourly and monthly SMIC baseline keys for year.
func SMICKeys(year int) (hourly, monthly string) {
	return fmt.Sprintf("smic_horaire.%d", year), fmt.Sprintf("smic_mensuel.%d", year)
}

func smic(urls []string, year int) Routine {
	hourly, monthly := SMICKeys(year)
	return Routine{
		Name: RoutineSMIC,
		URLs: urls,
		Specs: []Spec{{
			Field: model.Field{Key: hourly, Label: "SMIC horaire", Category: "smic", Bound: "smic_horaire", Unit: model.UnitWage, Tolerance: model.UnitWage.DefaultTolerance()},
			Rule: extract.Rule{
				Name: "smic_horaire",
				Patterns: extract.MustPatterns(
					`smic horaire(?: brut)?.{0,80}?\b(\d{2},\d{2}) ?(?:€|euros?)`,
					`\b(\d{2},\d{2}) ?(?:€|euros?) (?:brut )?(?:de l['’]heure|par heure|/ ?h\b)`,
				),
				Parse:   extract.ParseDecimal,
				Derived: []extract.Derivation{{Key: monthly, Compute: extract.Times(MonthlyLegalHours)}},
			},
		}},
	}
}

func pmss(urls []string) Routine {
	return Routine{
		Name: RoutinePMSS,
		URLs: urls,
		Specs: []Spec{{
			Field: model.Field{Key: "plafond_securite_sociale.mensuel", Label: "PMSS", Category: "pmss", Bound: "pmss", Unit: model.UnitAmount},
			Rule: extract.Rule{
				Name: "pmss",
				Patterns: extract.MustPatterns(
					`(?:plafond mensuel(?: de la sécurité sociale)?|PMSS).{0,80}?\b(\d ?\d{3}) ?(?:€|euros?)`,
				),
				Parse:   extract.ParseAmount,
				Derived: []extract.Derivation{{Key: "plafond_securite_sociale.annuel", Compute: extract.Times(12)}},
			},
		}},
	}
}

// Catalogue returns the update routines for the given tax year, in run order.
// sources overrides DefaultSources per routine name.
func Catalogue(year int, sources map[string][]string) []Routine {
	urls := func(name string) []string {
		if u, ok := sources[name]; ok && len(u) > 0 {
			return u
		}
		return DefaultSources[name]
	}
	return []Routine{
		cotisations(urls(RoutineCotisations)),
		baremeIR(urls(RoutineBaremeIR)),
		plafondsMicro(urls(RoutinePlafondsMicro)),
		smic(urls(RoutineSMIC), year),
		pmss(urls(RoutinePMSS)),
	}
}
