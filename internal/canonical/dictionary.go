package canonical

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/theorygraph/backend/internal/storage/models"
)

// Dictionary maps known lowercase surface variants to canonical display
// names, per entity kind. Entries are data: built-in seeds, an optional JSON
// file, and rows added at runtime all feed the same maps. Safe for
// concurrent use.
type Dictionary struct {
	mu      sync.RWMutex
	entries map[models.EntityKind]map[string]string
}

// Seed synonyms for the concepts that show up constantly in management and
// information-systems research. Runtime additions extend these, never
// replace them.
var seedEntries = map[models.EntityKind]map[string]string{
	models.KindTheory: {
		"rbv":                             "Resource-Based View",
		"resource based view":             "Resource-Based View",
		"resource-based view of the firm": "Resource-Based View",
		"resource based theory":           "Resource-Based View",
		"resource-based theory":           "Resource-Based View",
		"dynamic capabilities":            "Dynamic Capabilities Theory",
		"dynamic capability theory":       "Dynamic Capabilities Theory",
		"tam":                             "Technology Acceptance Model",
		"technology acceptance model":     "Technology Acceptance Model",
		"tce":                             "Transaction Cost Economics",
		"transaction cost theory":         "Transaction Cost Economics",
		"transaction cost economics":      "Transaction Cost Economics",
		"institutional theory":            "Institutional Theory",
		"neo-institutional theory":        "Institutional Theory",
		"agency theory":                   "Agency Theory",
		"principal-agent theory":          "Agency Theory",
		"principal agent theory":          "Agency Theory",
		"stakeholder theory":              "Stakeholder Theory",
		"actor-network theory":            "Actor-Network Theory",
		"actor network theory":            "Actor-Network Theory",
		"ant":                             "Actor-Network Theory",
		"diffusion of innovations":        "Diffusion of Innovations",
		"diffusion of innovation theory":  "Diffusion of Innovations",
		"knowledge-based view":            "Knowledge-Based View",
		"kbv":                             "Knowledge-Based View",
		"upper echelons theory":           "Upper Echelons Theory",
		"contingency theory":              "Contingency Theory",
		"absorptive capacity":             "Absorptive Capacity Theory",
		"social exchange theory":          "Social Exchange Theory",
		"organizational learning theory":  "Organizational Learning Theory",
		"utaut":                           "Unified Theory of Acceptance and Use of Technology",
	},
	models.KindMethod: {
		"sem":                          "Structural Equation Modeling",
		"structural equation modeling": "Structural Equation Modeling",
		"structural equation model":    "Structural Equation Modeling",
		"pls":                          "Partial Least Squares",
		"partial least squares":        "Partial Least Squares",
		"pls-sem":                      "Partial Least Squares",
		"ols":                          "Ordinary Least Squares Regression",
		"ols regression":               "Ordinary Least Squares Regression",
		"regression analysis":          "Regression Analysis",
		"multiple regression":          "Regression Analysis",
		"anova":                        "Analysis of Variance",
		"analysis of variance":         "Analysis of Variance",
		"case study":                   "Case Study",
		"multiple case study":          "Case Study",
		"grounded theory method":       "Grounded Theory Method",
		"content analysis":             "Content Analysis",
		"thematic analysis":            "Thematic Analysis",
		"meta-analysis":                "Meta-Analysis",
		"meta analysis":                "Meta-Analysis",
		"difference-in-differences":    "Difference-in-Differences",
		"diff-in-diff":                 "Difference-in-Differences",
		"did":                          "Difference-in-Differences",
		"fsqca":                        "Fuzzy-Set Qualitative Comparative Analysis",
		"qca":                          "Qualitative Comparative Analysis",
	},
	models.KindSoftware: {
		"spss":      "SPSS",
		"ibm spss":  "SPSS",
		"stata":     "Stata",
		"r":         "R",
		"rstudio":   "R",
		"nvivo":     "NVivo",
		"amos":      "AMOS",
		"smartpls":  "SmartPLS",
		"smart pls": "SmartPLS",
		"mplus":     "Mplus",
		"python":    "Python",
		"sas":       "SAS",
		"atlas.ti":  "ATLAS.ti",
		"lisrel":    "LISREL",
	},
	models.KindPhenomenon: {},
	models.KindVariable:   {},
}

func NewDictionary() *Dictionary {
	d := &Dictionary{entries: make(map[models.EntityKind]map[string]string)}
	for _, kind := range models.AllKinds() {
		d.entries[kind] = make(map[string]string)
	}
	for kind, variants := range seedEntries {
		for variant, canonical := range variants {
			d.add(kind, variant, canonical)
		}
	}
	return d
}

// LoadFile merges entries from a JSON file shaped as
// {"Theory": {"variant": "Canonical Name", ...}, ...}.
func (d *Dictionary) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read dictionary file: %w", err)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse dictionary file: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for kindStr, variants := range raw {
		kind, ok := models.ParseEntityKind(kindStr)
		if !ok {
			return fmt.Errorf("dictionary file has unknown entity kind %q", kindStr)
		}
		for variant, canonical := range variants {
			d.add(kind, variant, canonical)
		}
	}
	return nil
}

// Add registers a variant at runtime.
func (d *Dictionary) Add(kind models.EntityKind, variant, canonical string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.add(kind, variant, canonical)
}

// add indexes the variant, the canonical's own lowercase form (so canonical
// names resolve to themselves), and suffix-stripped spellings of both.
// Callers hold the lock.
func (d *Dictionary) add(kind models.EntityKind, variant, canonical string) {
	canonical = strings.TrimSpace(canonical)
	if canonical == "" {
		return
	}
	kindMap := d.entries[kind]
	if kindMap == nil {
		kindMap = make(map[string]string)
		d.entries[kind] = kindMap
	}

	for _, key := range []string{strings.ToLower(strings.TrimSpace(variant)), strings.ToLower(canonical)} {
		if key == "" {
			continue
		}
		kindMap[key] = canonical
		if stripped, ok := stripGenericSuffix(key, kind); ok {
			if _, taken := kindMap[stripped]; !taken {
				kindMap[stripped] = canonical
			}
		}
	}
}

// Lookup resolves a lowercase variant to its canonical display name.
func (d *Dictionary) Lookup(kind models.EntityKind, lowerVariant string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	canonical, ok := d.entries[kind][lowerVariant]
	return canonical, ok
}

// Keys returns the sorted lowercase variants known for a kind. Sorting keeps
// fuzzy and containment scans deterministic across runs.
func (d *Dictionary) Keys(kind models.EntityKind) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.entries[kind]))
	for k := range d.entries[kind] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, kindMap := range d.entries {
		total += len(kindMap)
	}
	return total
}
