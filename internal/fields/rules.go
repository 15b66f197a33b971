package fields

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/nexus-paies/fiscal-updater/internal/patch"
)

// Rule set names accepted in documents[].rules.
const (
	SetCotisations   = "cotisations"
	SetBaremeIR      = "bareme_ir"
	SetPlafondsMicro = "plafonds_micro"
	SetSMIC          = "smic"
	SetPMSS          = "pmss"
)

// num captures a JavaScript numeric literal payload.
const num = `(\d+(?:\.\d+)?)`

// smicBody skips year entries without leaving the SMIC object literal.
const smicBody = `(?:[^{}]|\{[^{}]*\})*?`

func cotisationRule(docKey, baseKey string) patch.Rule {
	return patch.Rule{
		Name:    "cotisations." + docKey,
		Pattern: regexp.MustCompile(`['"]` + regexp.QuoteMeta(docKey) + `['"]:\s*\{\s*normal:\s*` + num + `,\s*acre:\s*` + num),
		Sources: []string{
			"cotisations_sociales." + baseKey + ".normal",
			"cotisations_sociales." + baseKey + ".acre",
		},
	}
}

// RuleSets returns every patch rule set for the given tax year.
func RuleSets(year int) map[string][]patch.Rule {
	irTable := fmt.Sprintf(`const\s+TRANCHES_IR_%d\s*=\s*\[\s*`, year)
	var ir []patch.Rule
	for i := range IRCeilings {
		ir = append(ir, patch.Rule{
			Name:    fmt.Sprintf("bareme_ir.%d.tranche_%d", year, i+1),
			Pattern: regexp.MustCompile(irTable + fmt.Sprintf(`(?:\{[^{}]*\}\s*,\s*){%d}\{\s*plafond:\s*`, i) + num),
			Sources: []string{CeilingKey(i)},
		})
	}

	hourly, monthly := SMICKeys(year)

	return map[string][]patch.Rule{
		SetCotisations: {
			cotisationRule("bnc", "bnc"),
			cotisationRule("bic-services", "bic_services"),
			cotisationRule("bic-vente", "bic_vente"),
		},
		SetBaremeIR: ir,
		SetPlafondsMicro: {
			{
				Name:    "plafonds_micro.vente",
				Pattern: regexp.MustCompile(`PLAFONDS_MICRO\s*=\s*\{[^{}]*?\bvente:\s*` + num),
				Sources: []string{"plafonds_micro.vente_marchandises"},
			},
			{
				Name:    "plafonds_micro.services",
				Pattern: regexp.MustCompile(`PLAFONDS_MICRO\s*=\s*\{[^{}]*?\bservices:\s*` + num),
				Sources: []string{"plafonds_micro.prestations_services"},
			},
		},
		SetSMIC: {
			{
				Name:    fmt.Sprintf("smic.%d", year),
				Pattern: regexp.MustCompile(fmt.Sprintf(`\bSMIC\s*=\s*\{`+smicBody+`\b%d\s*:\s*\{\s*horaire:\s*`, year) + num + `,\s*mensuel:\s*` + num),
				Sources: []string{hourly, monthly},
			},
		},
		SetPMSS: {
			{
				Name:    "pmss.mensuel",
				Pattern: regexp.MustCompile(`\bconst\s+PMSS\s*=\s*` + num),
				Sources: []string{"plafond_securite_sociale.mensuel"},
			},
			{
				Name:    "pmss.annuel",
				Pattern: regexp.MustCompile(`\bconst\s+PASS\s*=\s*` + num),
				Sources: []string{"plafond_securite_sociale.annuel"},
			},
		},
	}
}

// SetNames returns the known rule set names, sorted.
func SetNames() []string {
	names := make([]string, 0, 5)
	for name := range RuleSets(0) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules returns the rules of the named sets in a stable order. No names means
// every set. Unknown names are reported.
func Rules(year int, names []string) ([]patch.Rule, []string) {
	sets := RuleSets(year)
	if len(names) == 0 {
		names = SetNames()
	}
	var rules []patch.Rule
	var unknown []string
	for _, n := range names {
		rs, ok := sets[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		rules = append(rules, rs...)
	}
	return rules, unknown
}
