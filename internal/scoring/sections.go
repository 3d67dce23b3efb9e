package scoring

import "strings"

// Fixed ordering of the canonical paper sections, used for distance decay.
var sectionOrder = map[string]int{
	"introduction":      0,
	"literature_review": 1,
	"methodology":       2,
	"results":           3,
	"discussion":        4,
}

var sectionAliases = map[string]string{
	"intro":             "introduction",
	"background":        "introduction",
	"literature review": "literature_review",
	"related work":      "literature_review",
	"theory":            "literature_review",
	"method":            "methodology",
	"methods":           "methodology",
	"research design":   "methodology",
	"findings":          "results",
	"analysis":          "results",
	"conclusion":        "discussion",
	"conclusions":       "discussion",
	"implications":      "discussion",
}

func normalizeSection(section string) string {
	s := strings.ToLower(strings.TrimSpace(section))
	s = strings.ReplaceAll(s, "-", " ")
	if alias, ok := sectionAliases[s]; ok {
		return alias
	}
	return strings.ReplaceAll(s, " ", "_")
}

// sectionScore rewards co-location: same section 0.2, adjacent sections 0.1,
// farther apart 0.05, either section unknown 0.
func sectionScore(theorySection, phenomenonSection string) float64 {
	a := normalizeSection(theorySection)
	b := normalizeSection(phenomenonSection)

	if a != "" && a == b {
		return 0.2
	}

	ia, okA := sectionOrder[a]
	ib, okB := sectionOrder[b]
	if !okA || !okB {
		return 0.0
	}

	distance := ia - ib
	if distance < 0 {
		distance = -distance
	}
	if distance == 1 {
		return 0.1
	}
	return 0.05
}
