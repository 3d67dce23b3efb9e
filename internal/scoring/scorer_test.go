package scoring

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func newLexicalScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(Config{})
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	return s
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_FailsClosedOnMissingFields(t *testing.T) {
	s := newLexicalScorer(t)
	ctx := context.Background()

	complete := TheoryUsage{TheoryName: "Agency Theory", Role: "primary", UsageContext: "explains monitoring costs", Section: "discussion"}
	phen := PhenomenonUsage{PhenomenonName: "Executive Compensation", Context: "pay levels", Section: "discussion"}

	cases := []struct {
		name   string
		theory TheoryUsage
		phen   PhenomenonUsage
	}{
		{"blank role", TheoryUsage{TheoryName: "Agency Theory", UsageContext: "explains monitoring costs"}, phen},
		{"blank usage context", TheoryUsage{TheoryName: "Agency Theory", Role: "primary", UsageContext: "   "}, phen},
		{"blank phenomenon name", complete, PhenomenonUsage{Context: "pay levels"}},
	}

	for _, tc := range cases {
		res := s.Score(ctx, tc.theory, tc.phen)
		if res.TotalStrength != 0 {
			t.Errorf("%s: strength = %v, want 0", tc.name, res.TotalStrength)
		}
		if res.Factors.Sum() != 0 {
			t.Errorf("%s: factors nonzero: %+v", tc.name, res.Factors)
		}
	}
}

func TestScore_RoleWeights(t *testing.T) {
	s := newLexicalScorer(t)
	ctx := context.Background()

	// Every other factor is engineered to zero: sections blank, no token
	// overlap, phenomenon name too short for the bonus.
	cases := []struct {
		role string
		want float64
	}{
		{"primary", 0.4},
		{"PRIMARY", 0.4},
		{"supporting", 0.2},
		{"extending", 0.15},
		{"challenging", 0.1},
		{"decorative", 0.1},
	}

	for _, tc := range cases {
		res := s.Score(ctx,
			TheoryUsage{TheoryName: "X", Role: tc.role, UsageContext: "zzz qqq"},
			PhenomenonUsage{PhenomenonName: "kkk"},
		)
		if !almostEqual(res.TotalStrength, tc.want) {
			t.Errorf("role %q: strength = %v, want %v", tc.role, res.TotalStrength, tc.want)
		}
		if !almostEqual(res.Factors.RoleWeight, tc.want) {
			t.Errorf("role %q: factor = %v, want %v", tc.role, res.Factors.RoleWeight, tc.want)
		}
	}
}

func TestSectionScore(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"introduction", "introduction", 0.2},
		{"Intro", "Background", 0.2},
		{"appendix", "appendix", 0.2},
		{"introduction", "literature_review", 0.1},
		{"Methods", "Findings", 0.1},
		{"introduction", "results", 0.05},
		{"introduction", "", 0.0},
		{"", "", 0.0},
		{"appendix", "introduction", 0.0},
	}

	for _, tc := range cases {
		if got := sectionScore(tc.a, tc.b); !almostEqual(got, tc.want) {
			t.Errorf("sectionScore(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestKeywordScoreBuckets(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"high overlap", "platform competition pricing", "platform competition pricing dynamics", 0.2},
		{"moderate overlap", "platform competition", "platform governance rules", 0.1},
		{"slight overlap", "platform competition pricing", "platform adoption barriers emerging economies", 0.05},
		{"disjoint", "absorptive capacity routines", "hospital triage workflows", 0.0},
		{"empty side", "platform competition", "", 0.0},
	}

	for _, tc := range cases {
		if got := keywordScore(tc.a, tc.b); !almostEqual(got, tc.want) {
			t.Errorf("%s: keywordScore = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSemanticScoreLexicalBuckets(t *testing.T) {
	s := newLexicalScorer(t)
	ctx := context.Background()

	identical := "digital platform network effects shape market concentration"
	if got := s.semanticScore(ctx, identical, identical); !almostEqual(got, 0.2) {
		t.Errorf("identical text: semantic = %v, want 0.2", got)
	}

	// One shared bigram out of five: blended similarity 0.12 lands in the
	// lowest nonzero bucket.
	a := "digital platform network effects"
	b := "digital platform governance mechanisms"
	if got := s.semanticScore(ctx, a, b); !almostEqual(got, 0.05) {
		t.Errorf("partial text: semantic = %v, want 0.05", got)
	}

	if got := s.semanticScore(ctx, "", "anything at all here"); got != 0 {
		t.Errorf("blank theory context: semantic = %v, want 0", got)
	}
	if got := s.semanticScore(ctx, "disjoint tokens entirely", "separate vocabulary altogether present"); got != 0 {
		t.Errorf("disjoint text: semantic = %v, want 0", got)
	}
}

func TestSemanticScoreEmbeddingMode(t *testing.T) {
	ctx := context.Background()

	aligned, err := NewScorer(Config{
		SemanticMode: SemanticModeEmbedding,
		Embedder:     stubEmbedder{vecs: map[string][]float32{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := aligned.semanticScore(ctx, "theory side", "phenomenon side"); !almostEqual(got, 0.2) {
		t.Errorf("identical vectors: semantic = %v, want 0.2", got)
	}

	orthogonal, err := NewScorer(Config{
		SemanticMode: SemanticModeEmbedding,
		Embedder: stubEmbedder{vecs: map[string][]float32{
			"theory side":     {1, 0},
			"phenomenon side": {0, 1},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := orthogonal.semanticScore(ctx, "theory side", "phenomenon side"); got != 0 {
		t.Errorf("orthogonal vectors: semantic = %v, want 0", got)
	}

	failing, err := NewScorer(Config{
		SemanticMode: SemanticModeEmbedding,
		Embedder:     stubEmbedder{err: errors.New("quota exhausted")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := failing.semanticScore(ctx, "theory side", "phenomenon side"); got != 0 {
		t.Errorf("embedder failure: semantic = %v, want 0", got)
	}
}

func TestNewScorerRejectsBadConfig(t *testing.T) {
	if _, err := NewScorer(Config{SemanticMode: SemanticModeEmbedding}); err == nil {
		t.Error("embedding mode without embedder must fail")
	}
	if _, err := NewScorer(Config{SemanticMode: "oracle"}); err == nil {
		t.Error("unknown semantic mode must fail")
	}
}

func TestExplicitBonus(t *testing.T) {
	cases := []struct {
		name    string
		context string
		phen    string
		want    float64
	}{
		{"verbatim", "we examine price dispersion across platforms", "price dispersion", 0.1},
		{"verbatim with case and spacing", "explains Price   Dispersion", "price dispersion", 0.1},
		{"all meaningful words scattered", "consumer behavior and the switching costs consumers face", "consumer switching behavior", 0.08},
		{"half the meaningful words", "identity shifts during structural change", "organizational identity change", 0.05},
		{"too few words found", "discusses unrelated constructs entirely", "organizational identity change", 0.0},
		{"only short words", "the use of it", "use of it", 0.1},
		{"short words absent", "completely different text", "use of it", 0.0},
	}

	for _, tc := range cases {
		if got := explicitBonus(tc.context, tc.phen); !almostEqual(got, tc.want) {
			t.Errorf("%s: explicitBonus = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestScore_ClipsAtOne(t *testing.T) {
	s := newLexicalScorer(t)

	shared := "digital platform network effects drive winner take all market concentration"
	res := s.Score(context.Background(),
		TheoryUsage{TheoryName: "Platform Theory", Role: "primary", UsageContext: shared, Section: "discussion"},
		PhenomenonUsage{PhenomenonName: "market concentration", Context: shared, Section: "discussion"},
	)

	if res.TotalStrength != 1.0 {
		t.Errorf("strength = %v, want exactly 1.0", res.TotalStrength)
	}
	if res.Factors.Sum() <= 1.0 {
		t.Errorf("factor sum = %v, expected the raw sum to exceed the clip", res.Factors.Sum())
	}
	if !s.ShouldCreateConnection(res.TotalStrength) {
		t.Error("a maxed-out score must clear the threshold")
	}
}

func TestScore_WeakClaimStaysBelowThreshold(t *testing.T) {
	s := newLexicalScorer(t)

	res := s.Score(context.Background(),
		TheoryUsage{TheoryName: "Contingency Theory", Role: "challenging", UsageContext: "mentioned briefly alongside unrelated constructs", Section: "introduction"},
		PhenomenonUsage{PhenomenonName: "supply chain resilience", Context: "operational disruptions", Section: "results"},
	)

	if !almostEqual(res.TotalStrength, 0.15) {
		t.Errorf("strength = %v, want 0.15", res.TotalStrength)
	}
	if s.ShouldCreateConnection(res.TotalStrength) {
		t.Error("0.15 must not clear the default threshold")
	}
}

func TestShouldCreateConnectionBoundary(t *testing.T) {
	if !ShouldCreateConnection(0.3, 0.3) {
		t.Error("strength equal to the threshold must create a connection")
	}
	if ShouldCreateConnection(0.29999, 0.3) {
		t.Error("strength below the threshold must not create a connection")
	}

	s := newLexicalScorer(t)
	if s.Threshold() != DefaultConnectionThreshold {
		t.Errorf("default threshold = %v", s.Threshold())
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); !almostEqual(got, 1.0) {
		t.Errorf("identical vectors = %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); !almostEqual(got, 0.0) {
		t.Errorf("orthogonal vectors = %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths = %v", got)
	}
	if got := cosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors = %v", got)
	}
}
