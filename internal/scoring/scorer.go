package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/storage/models"
)

// Semantic factor strategies. Exactly one runs per scoring call, fixed at
// construction.
const (
	SemanticModeEmbedding = "embedding"
	SemanticModeLexical   = "lexical"
)

// DefaultConnectionThreshold is the materialization cutoff for scored edges.
const DefaultConnectionThreshold = 0.3

// Embedder produces sentence embeddings for the semantic factor.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TheoryUsage is the theory side of a scoring call: how one paper used a
// theory. Role and UsageContext are mandatory.
type TheoryUsage struct {
	TheoryName   string
	Role         string
	UsageContext string
	Section      string
	PaperID      string
}

// PhenomenonUsage is the phenomenon side. PhenomenonName is mandatory.
type PhenomenonUsage struct {
	PhenomenonName string
	Context        string
	Description    string
	Section        string
	PaperID        string
}

// Result bundles the total strength with its factor breakdown. A zero Result
// means a mandatory field was missing and the scorer failed closed.
type Result struct {
	TotalStrength float64
	Factors       models.FactorScores
}

type Config struct {
	ConnectionThreshold float64
	SemanticMode        string
	Embedder            Embedder
	Logger              *zap.Logger
}

// Scorer computes the deterministic five-factor connection strength between
// a theory usage and a phenomenon. Stateless apart from its configuration.
type Scorer struct {
	threshold    float64
	semanticMode string
	embedder     Embedder
	log          *zap.Logger
}

func NewScorer(cfg Config) (*Scorer, error) {
	if cfg.ConnectionThreshold == 0 {
		cfg.ConnectionThreshold = DefaultConnectionThreshold
	}
	if cfg.SemanticMode == "" {
		cfg.SemanticMode = SemanticModeLexical
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	switch cfg.SemanticMode {
	case SemanticModeLexical:
	case SemanticModeEmbedding:
		if cfg.Embedder == nil {
			return nil, fmt.Errorf("semantic mode %q requires an embedder", cfg.SemanticMode)
		}
	default:
		return nil, fmt.Errorf("unknown semantic mode %q", cfg.SemanticMode)
	}

	return &Scorer{
		threshold:    cfg.ConnectionThreshold,
		semanticMode: cfg.SemanticMode,
		embedder:     cfg.Embedder,
		log:          cfg.Logger,
	}, nil
}

// Score computes the bounded [0,1] connection strength for one theory and
// phenomenon pair. Missing mandatory fields score zero with empty factors;
// the scorer never guesses.
func (s *Scorer) Score(ctx context.Context, theory TheoryUsage, phen PhenomenonUsage) Result {
	if strings.TrimSpace(theory.Role) == "" ||
		strings.TrimSpace(theory.UsageContext) == "" ||
		strings.TrimSpace(phen.PhenomenonName) == "" {
		s.log.Debug("mention missing mandatory field, scoring zero",
			zap.String("theory", theory.TheoryName),
			zap.String("phenomenon", phen.PhenomenonName),
			zap.String("paper_id", theory.PaperID),
		)
		return Result{}
	}

	phenText := strings.TrimSpace(phen.Context + " " + phen.Description)

	factors := models.FactorScores{
		RoleWeight:    roleWeight(theory.Role),
		SectionScore:  sectionScore(theory.Section, phen.Section),
		KeywordScore:  keywordScore(theory.UsageContext, phenText),
		SemanticScore: s.semanticScore(ctx, theory.UsageContext, phenText),
		ExplicitBonus: explicitBonus(theory.UsageContext, phen.PhenomenonName),
	}

	return Result{TotalStrength: clip(factors.Sum()), Factors: factors}
}

// ShouldCreateConnection reports whether a strength clears the threshold.
// Exposed as a pure comparison so callers can tune the cutoff without
// re-scoring.
func ShouldCreateConnection(strength, threshold float64) bool {
	return strength >= threshold
}

func (s *Scorer) ShouldCreateConnection(strength float64) bool {
	return ShouldCreateConnection(strength, s.threshold)
}

func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// roleWeight maps the extracted role of a theory within a paper onto
// [0, 0.4]. Unrecognized roles score as weakly as "challenging".
func roleWeight(role string) float64 {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "primary":
		return 0.4
	case "supporting":
		return 0.2
	case "extending":
		return 0.15
	case "challenging":
		return 0.1
	default:
		return 0.1
	}
}

// keywordScore buckets the Jaccard overlap of content words into [0, 0.2].
func keywordScore(theoryContext, phenomenonText string) float64 {
	similarity := keywordSimilarity(theoryContext, phenomenonText)
	switch {
	case similarity >= 0.5:
		return 0.2
	case similarity >= 0.2:
		return 0.1
	case similarity > 0:
		return 0.05
	default:
		return 0.0
	}
}

// semanticScore runs whichever strategy the scorer was built with and
// buckets the similarity into [0, 0.2]. An embedding failure degrades to
// zero rather than failing the record.
func (s *Scorer) semanticScore(ctx context.Context, theoryContext, phenomenonText string) float64 {
	if strings.TrimSpace(theoryContext) == "" || strings.TrimSpace(phenomenonText) == "" {
		return 0.0
	}

	var similarity float64
	if s.semanticMode == SemanticModeEmbedding {
		sim, err := s.embeddingSimilarity(ctx, theoryContext, phenomenonText)
		if err != nil {
			s.log.Warn("semantic embedding unavailable, scoring factor zero", zap.Error(err))
			return 0.0
		}
		similarity = sim
	} else {
		similarity = lexicalSimilarity(theoryContext, phenomenonText)
	}

	switch {
	case similarity >= 0.7:
		return 0.2
	case similarity >= 0.5:
		return 0.15
	case similarity >= 0.3:
		return 0.1
	case similarity >= 0.1:
		return 0.05
	default:
		return 0.0
	}
}

func (s *Scorer) embeddingSimilarity(ctx context.Context, a, b string) (float64, error) {
	vecA, err := s.embedder.Embed(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("failed to embed theory context: %w", err)
	}
	vecB, err := s.embedder.Embed(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("failed to embed phenomenon text: %w", err)
	}
	return cosineSimilarity(vecA, vecB), nil
}

// explicitBonus rewards the phenomenon name literally appearing in the
// theory's usage context: verbatim 0.1, most meaningful words present 0.08,
// half of them 0.05.
func explicitBonus(theoryContext, phenomenonName string) float64 {
	ctxLower := strings.ToLower(collapseSpaces(theoryContext))
	nameLower := strings.ToLower(collapseSpaces(phenomenonName))
	if nameLower == "" || ctxLower == "" {
		return 0.0
	}

	if strings.Contains(ctxLower, nameLower) {
		return 0.1
	}

	meaningful := 0
	found := 0
	for _, word := range strings.Fields(nameLower) {
		if len(word) <= 4 {
			continue
		}
		meaningful++
		if strings.Contains(ctxLower, word) {
			found++
		}
	}
	if meaningful == 0 {
		return 0.0
	}

	fraction := float64(found) / float64(meaningful)
	switch {
	case fraction >= 0.8:
		return 0.08
	case fraction >= 0.5:
		return 0.05
	default:
		return 0.0
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(value float64) float64 {
	return math.Max(0.0, math.Min(1.0, value))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
