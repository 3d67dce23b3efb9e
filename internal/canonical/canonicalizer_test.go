package canonical

import (
	"context"
	"errors"
	"testing"

	"github.com/theorygraph/backend/internal/storage/models"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeIndex struct {
	hits []NameHit
	err  error
}

func (f fakeIndex) SearchNearest(ctx context.Context, kind models.EntityKind, vector []float32, topK int) ([]NameHit, error) {
	return f.hits, f.err
}

func newTestCanonicalizer(cfg Config) *Canonicalizer {
	return NewCanonicalizer(NewDictionary(), cfg)
}

func TestCanonicalize_SynonymConvergence(t *testing.T) {
	canon := newTestCanonicalizer(Config{})
	ctx := context.Background()

	inputs := []string{
		"RBV",
		"resource based view",
		"Resource-Based View of the Firm",
		"resource based theory",
	}

	for _, input := range inputs {
		res, err := canon.Canonicalize(ctx, input, models.KindTheory)
		if err != nil {
			t.Fatalf("Canonicalize(%q) failed: %v", input, err)
		}
		if res.CanonicalName != "Resource-Based View" {
			t.Errorf("Canonicalize(%q) = %q, want Resource-Based View", input, res.CanonicalName)
		}
		if res.IsNew {
			t.Errorf("Canonicalize(%q) marked as new", input)
		}
	}
}

func TestCanonicalize_MethodOrder(t *testing.T) {
	canon := newTestCanonicalizer(Config{})
	ctx := context.Background()

	cases := []struct {
		input      string
		kind       models.EntityKind
		wantName   string
		wantMethod string
	}{
		{"tam", models.KindTheory, "Technology Acceptance Model", MethodExact},
		{"Dynamic Capabilities Framework", models.KindTheory, "Dynamic Capabilities Theory", MethodSuffix},
		{"Technology Acceptance Model (TAM)", models.KindTheory, "Technology Acceptance Model", MethodContainment},
		{"SmartPLS 4", models.KindSoftware, "SmartPLS", MethodContainment},
		{"instituional theory", models.KindTheory, "Institutional Theory", MethodFuzzy},
		{"Cybernetic Governance Theory", models.KindTheory, "Cybernetic Governance Theory", MethodNew},
	}

	for _, tc := range cases {
		res, err := canon.Canonicalize(ctx, tc.input, tc.kind)
		if err != nil {
			t.Fatalf("Canonicalize(%q) failed: %v", tc.input, err)
		}
		if res.CanonicalName != tc.wantName {
			t.Errorf("Canonicalize(%q) = %q, want %q", tc.input, res.CanonicalName, tc.wantName)
		}
		if res.Method != tc.wantMethod {
			t.Errorf("Canonicalize(%q) method = %q, want %q", tc.input, res.Method, tc.wantMethod)
		}
	}
}

func TestCanonicalize_NewNameRoundTrip(t *testing.T) {
	dict := NewDictionary()
	canon := NewCanonicalizer(dict, Config{})
	ctx := context.Background()

	first, err := canon.Canonicalize(ctx, "effectuation theory", models.KindTheory)
	if err != nil {
		t.Fatal(err)
	}
	if !first.IsNew {
		t.Fatalf("expected a new canonical, got method %q", first.Method)
	}
	if first.CanonicalName != "Effectuation Theory" {
		t.Fatalf("new canonical = %q, want Effectuation Theory", first.CanonicalName)
	}

	// Registration makes the next sighting an exact hit on the same form.
	dict.Add(models.KindTheory, first.CanonicalName, first.CanonicalName)

	second, err := canon.Canonicalize(ctx, "Effectuation", models.KindTheory)
	if err != nil {
		t.Fatal(err)
	}
	if second.IsNew {
		t.Error("second sighting still marked new after registration")
	}
	if second.CanonicalName != "Effectuation Theory" {
		t.Errorf("second sighting = %q, want Effectuation Theory", second.CanonicalName)
	}
}

func TestCanonicalize_AmbiguousBandRegistersNew(t *testing.T) {
	dict := NewDictionary()
	dict.Add(models.KindVariable, "customer satisfaction", "Customer Satisfaction")
	canon := NewCanonicalizer(dict, Config{FuzzyThreshold: 0.95, AmbiguousMargin: 0.2})

	res, err := canon.Canonicalize(context.Background(), "customr satisfacton", models.KindVariable)
	if err != nil {
		t.Fatal(err)
	}

	if !res.IsNew || res.Method != MethodNew {
		t.Fatalf("ambiguous input should register as new, got method %q", res.Method)
	}
	if res.Ambiguity == nil {
		t.Fatal("expected ambiguity details")
	}
	if res.Ambiguity.Candidate != "customer satisfaction" {
		t.Errorf("ambiguity candidate = %q", res.Ambiguity.Candidate)
	}
	if res.Ambiguity.Score < 0.75 || res.Ambiguity.Score >= 0.95 {
		t.Errorf("ambiguity score %.3f outside the indeterminate band", res.Ambiguity.Score)
	}
	if res.Ambiguity.Error() == "" {
		t.Error("ambiguity error text is empty")
	}
}

func TestCanonicalize_ContainmentLengthGuard(t *testing.T) {
	input := "Social Capital In Emerging Markets"

	permissive := NewDictionary()
	permissive.Add(models.KindTheory, "social capital", "Social Capital Theory")
	canon := NewCanonicalizer(permissive, Config{})

	res, err := canon.Canonicalize(context.Background(), input, models.KindTheory)
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != MethodContainment || res.CanonicalName != "Social Capital Theory" {
		t.Fatalf("with the default cutoff, got %q via %q", res.CanonicalName, res.Method)
	}

	strict := NewDictionary()
	strict.Add(models.KindTheory, "social capital", "Social Capital Theory")
	guarded := NewCanonicalizer(strict, Config{ContainmentMaxLen: 20})

	res, err = guarded.Canonicalize(context.Background(), input, models.KindTheory)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsNew {
		t.Fatalf("long phrase collapsed despite the guard: %q via %q", res.CanonicalName, res.Method)
	}
	if res.CanonicalName != "Social Capital In Emerging Markets" {
		t.Errorf("guarded canonical = %q", res.CanonicalName)
	}
}

func TestCanonicalize_EmbeddingStage(t *testing.T) {
	ctx := context.Background()
	input := "Perceived Agency Frameworks"

	t.Run("accepts a confident neighbor", func(t *testing.T) {
		canon := newTestCanonicalizer(Config{
			Embedder: fakeEmbedder{vec: []float32{0.1, 0.2}},
			Index: fakeIndex{hits: []NameHit{
				{CanonicalName: "Stakeholder Theory", Score: 0.41},
				{CanonicalName: "Social Cognitive Theory", Score: 0.92},
			}},
		})

		res, err := canon.Canonicalize(ctx, input, models.KindTheory)
		if err != nil {
			t.Fatal(err)
		}
		if res.Method != MethodEmbedding {
			t.Fatalf("method = %q, want %q", res.Method, MethodEmbedding)
		}
		if res.CanonicalName != "Social Cognitive Theory" {
			t.Errorf("canonical = %q", res.CanonicalName)
		}
		if res.Score != 0.92 {
			t.Errorf("score = %v", res.Score)
		}
	})

	t.Run("near miss is ambiguous", func(t *testing.T) {
		canon := newTestCanonicalizer(Config{
			Embedder: fakeEmbedder{vec: []float32{0.1, 0.2}},
			Index:    fakeIndex{hits: []NameHit{{CanonicalName: "Social Cognitive Theory", Score: 0.78}}},
		})

		res, err := canon.Canonicalize(ctx, input, models.KindTheory)
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsNew || res.Ambiguity == nil {
			t.Fatalf("expected new-with-ambiguity, got %+v", res)
		}
		if res.Ambiguity.Candidate != "Social Cognitive Theory" {
			t.Errorf("candidate = %q", res.Ambiguity.Candidate)
		}
	})

	t.Run("embedder failure degrades to new", func(t *testing.T) {
		canon := newTestCanonicalizer(Config{
			Embedder: fakeEmbedder{err: errors.New("rate limited")},
			Index:    fakeIndex{hits: []NameHit{{CanonicalName: "Social Cognitive Theory", Score: 0.99}}},
		})

		res, err := canon.Canonicalize(ctx, input, models.KindTheory)
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsNew || res.Ambiguity != nil {
			t.Fatalf("expected clean fallback to new, got %+v", res)
		}
	})

	t.Run("variables never consult the index", func(t *testing.T) {
		canon := newTestCanonicalizer(Config{
			Embedder: fakeEmbedder{vec: []float32{0.1}},
			Index:    fakeIndex{hits: []NameHit{{CanonicalName: "Firm Performance", Score: 0.99}}},
		})

		res, err := canon.Canonicalize(ctx, "Brand Loyalty", models.KindVariable)
		if err != nil {
			t.Fatal(err)
		}
		if res.CanonicalName != "Brand Loyalty" || !res.IsNew {
			t.Errorf("variable took the embedding path: %+v", res)
		}
	})
}

func TestCanonicalize_PhenomenonReduction(t *testing.T) {
	canon := newTestCanonicalizer(Config{})
	ctx := context.Background()

	cases := []struct {
		input string
		want  string
	}{
		{"pricing variations", "Pricing"},
		{"pricing patterns", "Pricing"},
		{"Employee Turnover Patterns In Tech Startups", "Employee Turnover Patterns"},
		// A three-word phrase sits at the floor and is never reduced further.
		{"Trust In Platforms", "Trust In Platforms"},
		{"price dispersion", "Price Dispersion"},
	}

	for _, tc := range cases {
		res, err := canon.Canonicalize(ctx, tc.input, models.KindPhenomenon)
		if err != nil {
			t.Fatalf("Canonicalize(%q) failed: %v", tc.input, err)
		}
		if res.CanonicalName != tc.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tc.input, res.CanonicalName, tc.want)
		}
	}
}

func TestCanonicalize_PhenomenonDictionaryHit(t *testing.T) {
	dict := NewDictionary()
	dict.Add(models.KindPhenomenon, "pricing", "Price Dispersion")
	canon := NewCanonicalizer(dict, Config{})

	res, err := canon.Canonicalize(context.Background(), "Pricing Patterns", models.KindPhenomenon)
	if err != nil {
		t.Fatal(err)
	}
	if res.CanonicalName != "Price Dispersion" || res.Method != MethodExact {
		t.Errorf("got %q via %q, want Price Dispersion via exact", res.CanonicalName, res.Method)
	}
}

func TestCanonicalize_EmptyNameFails(t *testing.T) {
	canon := newTestCanonicalizer(Config{})

	for _, input := range []string{"", "   ", "\t\n"} {
		if _, err := canon.Canonicalize(context.Background(), input, models.KindTheory); err == nil {
			t.Errorf("Canonicalize(%q) succeeded, want error", input)
		}
	}
}

func TestCleanName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"  social   capital ", "Social Capital"},
		{"TAM", "TAM"},
		{"resource–based view", "Resource-Based View"},
		{"self-efficacy theory", "Self-Efficacy Theory"},
		{"IBM SPSS", "IBM SPSS"},
		{"machine learning", "Machine Learning"},
	}

	for _, tc := range cases {
		if got := CleanName(tc.raw); got != tc.want {
			t.Errorf("CleanName(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
