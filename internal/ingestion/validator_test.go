package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/theorygraph/backend/internal/storage/models"
)

func TestSanitizeText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  spaced\tout\n text ", "spaced out text"},
		{"network <i>effects</i>  dominate", "network effects dominate"},
		{"<p>nested <b>tags</b></p>", "nested tags"},
		{"a < b > c", "a < b > c"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitizeText(tc.in); got != tc.want {
			t.Errorf("sanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseMention_TheoryNarrowing(t *testing.T) {
	raw := json.RawMessage(`{
		"kind": "theory",
		"name": "  Resource   based view ",
		"section": "Introduction",
		"role": " Primary ",
		"aliases": ["RBV", "<i>resource view</i>", ""],
		"usage_context": "<p>explains  advantage</p>"
	}`)

	mention, inputErr := ParseMention(raw, "p1")
	if inputErr != nil {
		t.Fatalf("ParseMention failed: %v", inputErr)
	}

	theory, ok := mention.(models.TheoryMention)
	if !ok {
		t.Fatalf("narrowed to %T, want TheoryMention", mention)
	}
	base := theory.Base()
	if base.RawName != "Resource based view" {
		t.Errorf("raw name = %q", base.RawName)
	}
	if base.PaperID != "p1" || base.Section != "Introduction" {
		t.Errorf("base = %+v", base)
	}
	if theory.Role != "primary" {
		t.Errorf("role = %q, want lowercased and trimmed", theory.Role)
	}
	if base.UsageContext != "explains advantage" {
		t.Errorf("usage context = %q, markup must be stripped", base.UsageContext)
	}
	if len(base.Aliases) != 2 || base.Aliases[0] != "RBV" || base.Aliases[1] != "resource view" {
		t.Errorf("aliases = %v", base.Aliases)
	}
}

func TestParseMention_KindSpecificFields(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		check func(m models.Mention) (string, bool)
	}{
		{
			"method type",
			`{"kind": "Method", "name": "pls", "method_type": " survey "}`,
			func(m models.Mention) (string, bool) {
				mm, ok := m.(models.MethodMention)
				return mm.MethodType, ok && mm.MethodType == "survey"
			},
		},
		{
			"software version",
			`{"kind": "SOFTWARE", "name": "stata", "version": " 18 "}`,
			func(m models.Mention) (string, bool) {
				sm, ok := m.(models.SoftwareMention)
				return sm.Version, ok && sm.Version == "18"
			},
		},
		{
			"phenomenon context",
			`{"kind": "phenomenon", "name": "pricing", "context": "<b>in courts</b>"}`,
			func(m models.Mention) (string, bool) {
				pm, ok := m.(models.PhenomenonMention)
				return pm.Context, ok && pm.Context == "in courts"
			},
		},
		{
			"variable type",
			`{"kind": "Variable", "name": "trust", "variable_type": "dependent"}`,
			func(m models.Mention) (string, bool) {
				vm, ok := m.(models.VariableMention)
				return vm.VariableType, ok && vm.VariableType == "dependent"
			},
		},
	}

	for _, tc := range cases {
		mention, inputErr := ParseMention(json.RawMessage(tc.raw), "p1")
		if inputErr != nil {
			t.Fatalf("%s: ParseMention failed: %v", tc.name, inputErr)
		}
		if got, ok := tc.check(mention); !ok {
			t.Errorf("%s: narrowed value = %q on %T", tc.name, got, mention)
		}
	}
}

func TestParseMention_Quarantinable(t *testing.T) {
	longName := strings.Repeat("x", maxNameLength+1)
	cases := []struct {
		name  string
		raw   string
		field string
	}{
		{"malformed json", `{"kind": "theory"`, "mention"},
		{"unknown kind", `{"kind": "gadget", "name": "x"}`, "kind"},
		{"blank name", `{"kind": "theory", "name": "   "}`, "name"},
		{"markup-only name", `{"kind": "theory", "name": "<br/>"}`, "name"},
		{"oversized name", fmt.Sprintf(`{"kind": "theory", "name": %q}`, longName), "name"},
	}

	for _, tc := range cases {
		_, inputErr := ParseMention(json.RawMessage(tc.raw), "p1")
		if inputErr == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		if inputErr.Field != tc.field {
			t.Errorf("%s: field = %q, want %q", tc.name, inputErr.Field, tc.field)
		}
	}
}

func TestParseMention_DropsUnusableAliases(t *testing.T) {
	raw := fmt.Sprintf(`{"kind": "theory", "name": "tam", "aliases": [%q, ""]}`,
		strings.Repeat("a", maxNameLength+1))

	mention, inputErr := ParseMention(json.RawMessage(raw), "p1")
	if inputErr != nil {
		t.Fatalf("ParseMention failed: %v", inputErr)
	}
	if got := mention.Base().Aliases; len(got) != 0 {
		t.Errorf("aliases = %v, want none", got)
	}
}

func TestParseRelationship(t *testing.T) {
	raw := json.RawMessage(`{
		"theory_name": " <b>RBV</b> ",
		"phenomenon_name": "firm  performance",
		"role": " PRIMARY ",
		"usage_context": "rbv explains firm performance",
		"section": "Discussion"
	}`)

	rel, inputErr := ParseRelationship(raw, "p7")
	if inputErr != nil {
		t.Fatalf("ParseRelationship failed: %v", inputErr)
	}
	if rel.TheoryName != "RBV" || rel.PhenomenonName != "firm performance" {
		t.Errorf("names = %q / %q", rel.TheoryName, rel.PhenomenonName)
	}
	if rel.Role != "primary" {
		t.Errorf("role = %q", rel.Role)
	}
	if rel.PaperID != "p7" || rel.Section != "Discussion" {
		t.Errorf("rel = %+v", rel)
	}
}

func TestParseRelationship_RequiredNames(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing theory", `{"phenomenon_name": "firm performance"}`, "theory_name"},
		{"markup-only theory", `{"theory_name": "<hr>", "phenomenon_name": "x"}`, "theory_name"},
		{"missing phenomenon", `{"theory_name": "rbv"}`, "phenomenon_name"},
		{"malformed", `[not json`, "relationship"},
	}

	for _, tc := range cases {
		_, inputErr := ParseRelationship(json.RawMessage(tc.raw), "p1")
		if inputErr == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		if inputErr.Field != tc.field {
			t.Errorf("%s: field = %q, want %q", tc.name, inputErr.Field, tc.field)
		}
	}
}

func TestParseRelationship_BlankRolePassesThrough(t *testing.T) {
	raw := json.RawMessage(`{"theory_name": "rbv", "phenomenon_name": "firm performance"}`)

	rel, inputErr := ParseRelationship(raw, "p1")
	if inputErr != nil {
		t.Fatalf("a blank role must not be rejected at the boundary: %v", inputErr)
	}
	if rel.Role != "" || rel.UsageContext != "" {
		t.Errorf("rel = %+v", rel)
	}
}
