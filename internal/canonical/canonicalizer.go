package canonical

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/storage/models"
)

// Resolution methods, in pipeline order.
const (
	MethodExact       = "exact"
	MethodSuffix      = "suffix"
	MethodContainment = "containment"
	MethodFuzzy       = "fuzzy"
	MethodEmbedding   = "embedding"
	MethodNew         = "new"
)

// Embedder produces a vector for a short text span.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NameHit is one nearest-neighbor result from the canonical-name index.
type NameHit struct {
	CanonicalName string
	Score         float64
}

// NameIndex searches previously registered canonical names of one kind by
// vector similarity.
type NameIndex interface {
	SearchNearest(ctx context.Context, kind models.EntityKind, vector []float32, topK int) ([]NameHit, error)
}

// AmbiguousMatchError reports a similarity score inside the indeterminate
// band below the acceptance threshold. It is resolved by registering the
// input as a new canonical form, never by failing the record.
type AmbiguousMatchError struct {
	Input     string
	Candidate string
	Score     float64
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match for %q: best candidate %q scored %.3f", e.Input, e.Candidate, e.Score)
}

// Resolution is the outcome of canonicalizing one raw name.
type Resolution struct {
	CanonicalName string
	Method        string
	Score         float64
	IsNew         bool
	// Ambiguity is set when a fuzzy or embedding score fell into the
	// indeterminate band and the name was registered as new instead.
	Ambiguity *AmbiguousMatchError
}

type Config struct {
	FuzzyThreshold     float64
	EmbeddingThreshold float64
	AmbiguousMargin    float64
	ContainmentMaxLen  int
	Embedder           Embedder
	Index              NameIndex
	Logger             *zap.Logger
}

// Canonicalizer maps raw entity names onto canonical display names. It is
// pure given the current dictionary and name index: it never writes either,
// so callers persist new canonicals themselves.
type Canonicalizer struct {
	dict               *Dictionary
	fuzzyThreshold     float64
	embeddingThreshold float64
	ambiguousMargin    float64
	containmentMaxLen  int
	embedder           Embedder
	index              NameIndex
	log                *zap.Logger
}

func NewCanonicalizer(dict *Dictionary, cfg Config) *Canonicalizer {
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = 0.85
	}
	if cfg.EmbeddingThreshold == 0 {
		cfg.EmbeddingThreshold = 0.85
	}
	if cfg.AmbiguousMargin == 0 {
		cfg.AmbiguousMargin = 0.10
	}
	if cfg.ContainmentMaxLen == 0 {
		cfg.ContainmentMaxLen = 55
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Canonicalizer{
		dict:               dict,
		fuzzyThreshold:     cfg.FuzzyThreshold,
		embeddingThreshold: cfg.EmbeddingThreshold,
		ambiguousMargin:    cfg.AmbiguousMargin,
		containmentMaxLen:  cfg.ContainmentMaxLen,
		embedder:           cfg.Embedder,
		index:              cfg.Index,
		log:                cfg.Logger,
	}
}

// Canonicalize resolves a raw entity name to its canonical display name.
// First match wins: exact dictionary hit, suffix-insensitive hit,
// containment variant, fuzzy edit-distance match, embedding neighbor, and
// finally the cleaned name itself as a new canonical form. Phenomena take a
// deliberately conservative path that only trims trailing qualifiers and
// contextual clauses. The only error case is an empty name.
func (c *Canonicalizer) Canonicalize(ctx context.Context, rawName string, kind models.EntityKind) (Resolution, error) {
	cleaned := CleanName(rawName)
	if cleaned == "" {
		return Resolution{}, fmt.Errorf("cannot canonicalize empty name (raw %q)", rawName)
	}

	if kind == models.KindPhenomenon {
		return c.canonicalizePhenomenon(cleaned), nil
	}

	lower := strings.ToLower(cleaned)

	if canonical, ok := c.dict.Lookup(kind, lower); ok {
		return Resolution{CanonicalName: canonical, Method: MethodExact, Score: 1.0}, nil
	}

	if stripped, ok := stripGenericSuffix(lower, kind); ok {
		if canonical, found := c.dict.Lookup(kind, stripped); found {
			return Resolution{CanonicalName: canonical, Method: MethodSuffix, Score: 1.0}, nil
		}
	}

	if canonical, ok := c.containmentLookup(lower, kind); ok {
		return Resolution{CanonicalName: canonical, Method: MethodContainment, Score: 1.0}, nil
	}

	fuzzyRes, ambiguity := c.fuzzyLookup(lower, kind)
	if fuzzyRes != nil {
		return *fuzzyRes, nil
	}

	if c.embeddingEligible(kind) {
		embRes, embAmbiguity := c.embeddingLookup(ctx, cleaned, kind)
		if embRes != nil {
			return *embRes, nil
		}
		if embAmbiguity != nil {
			ambiguity = embAmbiguity
		}
	}

	if ambiguity != nil {
		c.log.Debug("ambiguous canonical match, registering as new",
			zap.String("input", ambiguity.Input),
			zap.String("candidate", ambiguity.Candidate),
			zap.Float64("score", ambiguity.Score),
		)
	}

	return Resolution{CanonicalName: cleaned, Method: MethodNew, IsNew: true, Ambiguity: ambiguity}, nil
}

func (c *Canonicalizer) canonicalizePhenomenon(cleaned string) Resolution {
	reduced := reducePhenomenon(cleaned)
	if canonical, ok := c.dict.Lookup(models.KindPhenomenon, strings.ToLower(reduced)); ok {
		return Resolution{CanonicalName: canonical, Method: MethodExact, Score: 1.0}
	}
	return Resolution{CanonicalName: reduced, Method: MethodNew, IsNew: true}
}

// containmentLookup treats "Key (Acr)" and "Key Extra" spellings as variants
// of a dictionary key, in either direction. The length guard keeps long,
// clearly-distinct phrases from collapsing into a shorter canonical; its
// cutoff is tunable, not principled.
func (c *Canonicalizer) containmentLookup(lower string, kind models.EntityKind) (string, bool) {
	var bestKey string
	for _, key := range c.dict.Keys(kind) {
		if len(key) <= 3 {
			// Acronym-length keys prefix too many unrelated phrases.
			continue
		}
		if !containsAsPrefix(lower, key) && !containsAsPrefix(key, lower) {
			continue
		}
		if len(lower) >= c.containmentMaxLen || len(key) >= c.containmentMaxLen {
			continue
		}
		if len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey == "" {
		return "", false
	}
	canonical, ok := c.dict.Lookup(kind, bestKey)
	return canonical, ok
}

func containsAsPrefix(longer, shorter string) bool {
	if len(longer) <= len(shorter) {
		return false
	}
	return strings.HasPrefix(longer, shorter+" ") || strings.HasPrefix(longer, shorter+"(")
}

func (c *Canonicalizer) fuzzyLookup(lower string, kind models.EntityKind) (*Resolution, *AmbiguousMatchError) {
	bestScore := 0.0
	bestKey := ""
	for _, key := range c.dict.Keys(kind) {
		if score := editSimilarity(lower, key); score > bestScore {
			bestScore = score
			bestKey = key
		}
	}
	if bestKey == "" {
		return nil, nil
	}

	if bestScore >= c.fuzzyThreshold {
		if canonical, ok := c.dict.Lookup(kind, bestKey); ok {
			return &Resolution{CanonicalName: canonical, Method: MethodFuzzy, Score: bestScore}, nil
		}
	}
	if bestScore >= c.fuzzyThreshold-c.ambiguousMargin {
		return nil, &AmbiguousMatchError{Input: lower, Candidate: bestKey, Score: bestScore}
	}
	return nil, nil
}

func (c *Canonicalizer) embeddingEligible(kind models.EntityKind) bool {
	if c.embedder == nil || c.index == nil {
		return false
	}
	switch kind {
	case models.KindTheory, models.KindMethod, models.KindSoftware:
		return true
	default:
		return false
	}
}

// embeddingLookup compares the cleaned name against cached embeddings of
// previously seen canonical names of the same kind. Transport failures
// degrade to no-match; retries live in the embedding client, not here.
func (c *Canonicalizer) embeddingLookup(ctx context.Context, cleaned string, kind models.EntityKind) (*Resolution, *AmbiguousMatchError) {
	vector, err := c.embedder.Embed(ctx, cleaned)
	if err != nil {
		c.log.Warn("embedding lookup unavailable", zap.String("name", cleaned), zap.Error(err))
		return nil, nil
	}

	hits, err := c.index.SearchNearest(ctx, kind, vector, 5)
	if err != nil {
		c.log.Warn("name index search failed", zap.String("name", cleaned), zap.Error(err))
		return nil, nil
	}
	if len(hits) == 0 {
		return nil, nil
	}

	best := hits[0]
	for _, hit := range hits[1:] {
		if hit.Score > best.Score {
			best = hit
		}
	}

	if best.Score >= c.embeddingThreshold {
		return &Resolution{CanonicalName: best.CanonicalName, Method: MethodEmbedding, Score: best.Score}, nil
	}
	if best.Score >= c.embeddingThreshold-c.ambiguousMargin {
		return nil, &AmbiguousMatchError{Input: cleaned, Candidate: best.CanonicalName, Score: best.Score}
	}
	return nil, nil
}

// CleanName trims and collapses whitespace, normalizes dash and quote
// variants, and title-cases words. All-caps tokens up to five characters are
// kept verbatim as acronyms.
func CleanName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case '–', '—', '−', '‐', '‑':
			b.WriteRune('-')
		case '“', '”', '„':
			b.WriteRune('"')
		case '‘', '’':
			b.WriteRune('\'')
		default:
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	for i, word := range words {
		words[i] = titleWord(word)
	}
	return strings.Join(words, " ")
}

func titleWord(word string) string {
	if isAcronym(word) {
		return word
	}
	segments := strings.Split(word, "-")
	for i, seg := range segments {
		segments[i] = capitalize(seg)
	}
	return strings.Join(segments, "-")
}

func isAcronym(word string) bool {
	runes := []rune(word)
	if len(runes) == 0 || len(runes) > 5 {
		return false
	}
	hasLetter := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			return string(runes[:i]) + string(unicode.ToUpper(r)) + strings.ToLower(string(runes[i+1:]))
		}
	}
	return s
}

// Generic suffixes whose presence or absence should not split an entity in
// two. Phenomena and variables get no suffix handling.
var genericSuffixes = map[models.EntityKind][]string{
	models.KindTheory:   {" theory", " framework", " perspective", " approach", " view", " model"},
	models.KindMethod:   {" method", " methodology", " analysis", " technique", " approach", " algorithm"},
	models.KindSoftware: {" software", " tool", " package", " library", " program"},
}

// stripGenericSuffix removes one trailing generic suffix from a lowercase
// name. It refuses to strip when nothing meaningful would remain.
func stripGenericSuffix(lower string, kind models.EntityKind) (string, bool) {
	for _, suffix := range genericSuffixes[kind] {
		if !strings.HasSuffix(lower, suffix) {
			continue
		}
		stripped := strings.TrimSpace(strings.TrimSuffix(lower, suffix))
		if len(stripped) < 3 {
			return "", false
		}
		return stripped, true
	}
	return "", false
}

// Trailing words that describe how a phenomenon presents rather than what it
// is. Stripping them lets "pricing patterns" and "pricing variations" meet.
var phenomenonQualifiers = map[string]bool{
	"pattern": true, "patterns": true,
	"variation": true, "variations": true,
	"trend": true, "trends": true,
	"dynamics": true,
	"effect":   true, "effects": true,
	"phenomenon": true, "phenomena": true,
}

// Markers that open a trailing contextual clause ("... in court rulings",
// "... during financial crises").
var clauseMarkers = map[string]bool{
	"in": true, "during": true, "under": true, "among": true,
	"across": true, "within": true, "amid": true, "following": true,
	"after": true, "before": true, "between": true, "throughout": true,
}

// reducePhenomenon strips trailing contextual clauses and qualifier words.
// Phenomena are domain-specific, so the reduction refuses to drop a phrase
// below three words when the original had at least three; over-merging here
// destroys research-question-level distinctions.
func reducePhenomenon(cleaned string) string {
	words := strings.Fields(cleaned)
	floor := 1
	if len(words) >= 3 {
		floor = 3
	}

	for {
		idx := -1
		for i := len(words) - 1; i >= 1; i-- {
			if clauseMarkers[strings.ToLower(words[i])] {
				idx = i
				break
			}
		}
		if idx < floor {
			break
		}
		words = words[:idx]
	}

	for len(words) > floor && phenomenonQualifiers[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}

	return strings.Join(words, " ")
}
