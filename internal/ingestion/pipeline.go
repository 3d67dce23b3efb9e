package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theorygraph/backend/internal/canonical"
	"github.com/theorygraph/backend/internal/metrics"
	"github.com/theorygraph/backend/internal/scoring"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
	"github.com/theorygraph/backend/pkg/utils"
)

// GraphStore is the slice of the graph client the pipeline writes through.
type GraphStore interface {
	UpsertEntity(ctx context.Context, entity models.CanonicalEntity) error
	UpsertPaperRelationship(ctx context.Context, paperID string, entity models.CanonicalEntity, attrs map[string]any) error
	UpsertScoredRelationship(ctx context.Context, rel models.ScoredRelationship) error
}

// MetaStore keeps the relational bookkeeping: papers, quarantined records
// and run tallies.
type MetaStore interface {
	UpsertPaper(paper *models.Paper) error
	QuarantineMention(mention *models.QuarantinedMention) error
	RecordIngestRun(run *models.IngestRun) error
}

// Rollups recomputes the cross-paper aggregate for one pair.
type Rollups interface {
	Recompute(ctx context.Context, sourceCanonical, targetCanonical string) (models.AggregatedRelationship, error)
}

// ResolutionCache short-circuits repeated canonicalization of the same raw
// name across papers. Optional.
type ResolutionCache interface {
	GetResolution(ctx context.Context, kind, nameHash string, resolution interface{}) (bool, error)
	SetResolution(ctx context.Context, kind, nameHash string, resolution interface{}, ttl time.Duration) error
}

type Config struct {
	Graph     GraphStore
	Meta      MetaStore
	Canon     *canonical.Canonicalizer
	Registrar *canonical.Registrar
	Scorer    *scoring.Scorer
	Rollups   Rollups
	Cache     ResolutionCache
	CacheTTL  time.Duration
	Workers   int
}

// Pipeline turns one paper's extracted mentions into canonical entities,
// paper edges and scored relationships. Bad records are quarantined one by
// one; only infrastructure failures abort a paper.
type Pipeline struct {
	graph     GraphStore
	meta      MetaStore
	canon     *canonical.Canonicalizer
	registrar *canonical.Registrar
	scorer    *scoring.Scorer
	rollups   Rollups
	cache     ResolutionCache
	cacheTTL  time.Duration
	workers   int
}

func NewPipeline(cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 3
	}
	return &Pipeline{
		graph:     cfg.Graph,
		meta:      cfg.Meta,
		canon:     cfg.Canon,
		registrar: cfg.Registrar,
		scorer:    cfg.Scorer,
		rollups:   cfg.Rollups,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		workers:   workers,
	}
}

// PaperSubmission is one paper's worth of extraction output. Mentions and
// relationships stay raw JSON until the boundary validator narrows them.
type PaperSubmission struct {
	PaperID       string            `json:"paper_id"`
	Title         string            `json:"title"`
	Mentions      []json.RawMessage `json:"mentions"`
	Relationships []json.RawMessage `json:"relationships"`
}

type MentionOutcome struct {
	RawName     string `json:"raw_name,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
	Method      string `json:"method,omitempty"`
	IsNew       bool   `json:"is_new,omitempty"`
	Quarantined bool   `json:"quarantined,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type RelationshipOutcome struct {
	Theory      string  `json:"theory,omitempty"`
	Phenomenon  string  `json:"phenomenon,omitempty"`
	Strength    float64 `json:"strength"`
	Created     bool    `json:"created"`
	Quarantined bool    `json:"quarantined,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// PaperResult reports what happened to every record of a submission.
type PaperResult struct {
	PaperID             string                `json:"paper_id"`
	RunID               string                `json:"run_id"`
	Mentions            []MentionOutcome      `json:"mentions"`
	Relationships       []RelationshipOutcome `json:"relationships"`
	Accepted            int                   `json:"accepted"`
	Quarantined         int                   `json:"quarantined"`
	EntitiesUpserted    int                   `json:"entities_upserted"`
	RelationshipsScored int                   `json:"relationships_scored"`
	ConnectionsCreated  int                   `json:"connections_created"`
}

// paperState carries the per-submission joins between the mention pass and
// the relationship pass.
type paperState struct {
	resolved  map[string]canonical.Resolution
	theories  map[string]models.TheoryMention
	phenomena map[string]models.PhenomenonMention
	upserted  map[string]bool
}

func newPaperState() *paperState {
	return &paperState{
		resolved:  make(map[string]canonical.Resolution),
		theories:  make(map[string]models.TheoryMention),
		phenomena: make(map[string]models.PhenomenonMention),
		upserted:  make(map[string]bool),
	}
}

// IngestPaper processes one submission end to end: validate and sanitize,
// canonicalize, upsert entities and paper edges, score claims, write scored
// edges, and refresh the rollups the paper touched. Re-running the same
// submission changes nothing in the graph.
func (p *Pipeline) IngestPaper(ctx context.Context, sub PaperSubmission) (*PaperResult, error) {
	paperID := strings.TrimSpace(sub.PaperID)
	if paperID == "" {
		return nil, &InputError{Field: "paper_id", Reason: "required"}
	}

	started := time.Now()
	result := &PaperResult{PaperID: paperID, RunID: uuid.NewString()}
	state := newPaperState()

	logger.Info("Ingesting paper",
		zap.String("paper_id", paperID),
		zap.Int("mentions", len(sub.Mentions)),
		zap.Int("relationships", len(sub.Relationships)),
	)

	for _, raw := range sub.Mentions {
		outcome, err := p.ingestMention(ctx, raw, paperID, state)
		if err != nil {
			return result, err
		}
		result.Mentions = append(result.Mentions, outcome)
		if outcome.Quarantined {
			result.Quarantined++
		} else {
			result.Accepted++
		}
	}

	for _, raw := range sub.Relationships {
		outcome, err := p.ingestRelationship(ctx, raw, paperID, state)
		if err != nil {
			return result, err
		}
		result.Relationships = append(result.Relationships, outcome)
		if outcome.Quarantined {
			result.Quarantined++
			continue
		}
		result.RelationshipsScored++
		if outcome.Created {
			result.ConnectionsCreated++
		}
	}
	result.EntitiesUpserted = len(state.upserted)

	p.refreshRollups(ctx, result)
	p.recordRun(paperID, sub.Title, started, result)

	metrics.PapersIngested.Inc()
	metrics.IngestDuration.Observe(time.Since(started).Seconds())

	logger.Info("Paper ingested",
		zap.String("paper_id", paperID),
		zap.String("run_id", result.RunID),
		zap.Int("accepted", result.Accepted),
		zap.Int("quarantined", result.Quarantined),
		zap.Int("entities", result.EntitiesUpserted),
		zap.Int("connections", result.ConnectionsCreated),
		zap.Duration("took", time.Since(started)),
	)

	return result, nil
}

func (p *Pipeline) ingestMention(ctx context.Context, raw json.RawMessage, paperID string, state *paperState) (MentionOutcome, error) {
	mention, inputErr := ParseMention(raw, paperID)
	if inputErr != nil {
		p.quarantine(paperID, raw, inputErr)
		metrics.MentionsIngested.WithLabelValues("unknown", "quarantined").Inc()
		return MentionOutcome{Quarantined: true, Reason: inputErr.Error()}, nil
	}

	base := mention.Base()
	kind := mention.Kind()

	res, err := p.lookupOrResolve(ctx, kind, base.RawName, state)
	if err != nil {
		p.quarantine(paperID, raw, &InputError{Field: "name", Reason: err.Error()})
		metrics.MentionsIngested.WithLabelValues(string(kind), "quarantined").Inc()
		return MentionOutcome{RawName: base.RawName, Kind: string(kind), Quarantined: true, Reason: err.Error()}, nil
	}

	aliases := models.AppendUnique(nil, base.Aliases...)
	if !strings.EqualFold(base.RawName, res.CanonicalName) {
		aliases = models.AppendUnique(aliases, base.RawName)
	}

	entity := models.CanonicalEntity{
		CanonicalName: res.CanonicalName,
		Kind:          kind,
		Aliases:       aliases,
		Description:   base.Description,
		PaperIDs:      []string{paperID},
	}

	if err := p.graph.UpsertEntity(ctx, entity); err != nil {
		metrics.GraphOperations.WithLabelValues("upsert_entity", "error").Inc()
		return MentionOutcome{}, fmt.Errorf("failed to upsert entity %q: %w", res.CanonicalName, err)
	}
	metrics.GraphOperations.WithLabelValues("upsert_entity", "ok").Inc()

	if err := p.graph.UpsertPaperRelationship(ctx, paperID, entity, mentionAttrs(mention)); err != nil {
		metrics.GraphOperations.WithLabelValues("upsert_mention", "error").Inc()
		return MentionOutcome{}, fmt.Errorf("failed to link paper %s to %q: %w", paperID, res.CanonicalName, err)
	}
	metrics.GraphOperations.WithLabelValues("upsert_mention", "ok").Inc()

	state.upserted[entity.Key()] = true
	switch m := mention.(type) {
	case models.TheoryMention:
		state.theories[res.CanonicalName] = m
	case models.PhenomenonMention:
		state.phenomena[res.CanonicalName] = m
	}

	metrics.MentionsIngested.WithLabelValues(string(kind), "accepted").Inc()

	return MentionOutcome{
		RawName:   base.RawName,
		Kind:      string(kind),
		Canonical: res.CanonicalName,
		Method:    res.Method,
		IsNew:     res.IsNew,
	}, nil
}

func (p *Pipeline) ingestRelationship(ctx context.Context, raw json.RawMessage, paperID string, state *paperState) (RelationshipOutcome, error) {
	rel, inputErr := ParseRelationship(raw, paperID)
	if inputErr != nil {
		p.quarantine(paperID, raw, inputErr)
		metrics.MentionsIngested.WithLabelValues("relationship", "quarantined").Inc()
		return RelationshipOutcome{Quarantined: true, Reason: inputErr.Error()}, nil
	}

	theoryRes, err := p.lookupOrResolve(ctx, models.KindTheory, rel.TheoryName, state)
	if err != nil {
		p.quarantine(paperID, raw, &InputError{Field: "theory_name", Reason: err.Error()})
		metrics.MentionsIngested.WithLabelValues("relationship", "quarantined").Inc()
		return RelationshipOutcome{Quarantined: true, Reason: err.Error()}, nil
	}
	phenRes, err := p.lookupOrResolve(ctx, models.KindPhenomenon, rel.PhenomenonName, state)
	if err != nil {
		p.quarantine(paperID, raw, &InputError{Field: "phenomenon_name", Reason: err.Error()})
		metrics.MentionsIngested.WithLabelValues("relationship", "quarantined").Inc()
		return RelationshipOutcome{Quarantined: true, Reason: err.Error()}, nil
	}

	// A claim can reference entities the mention list missed. Both nodes
	// must exist before the scored edge MATCHes them.
	if err := p.ensureEntity(ctx, models.KindTheory, theoryRes.CanonicalName, rel.TheoryName, rel.Section, paperID, state); err != nil {
		return RelationshipOutcome{}, err
	}
	if err := p.ensureEntity(ctx, models.KindPhenomenon, phenRes.CanonicalName, rel.PhenomenonName, rel.Section, paperID, state); err != nil {
		return RelationshipOutcome{}, err
	}

	theory := scoring.TheoryUsage{
		TheoryName:   theoryRes.CanonicalName,
		Role:         rel.Role,
		UsageContext: rel.UsageContext,
		Section:      rel.Section,
		PaperID:      paperID,
	}
	if tm, ok := state.theories[theoryRes.CanonicalName]; ok {
		if theory.Role == "" {
			theory.Role = tm.Role
		}
		if theory.UsageContext == "" {
			theory.UsageContext = tm.Base().UsageContext
		}
		if tm.Base().Section != "" {
			theory.Section = tm.Base().Section
		}
	}

	phen := scoring.PhenomenonUsage{
		PhenomenonName: phenRes.CanonicalName,
		Section:        rel.Section,
		PaperID:        paperID,
	}
	if pm, ok := state.phenomena[phenRes.CanonicalName]; ok {
		phen.Context = pm.Context
		phen.Description = pm.Base().Description
		if pm.Base().Section != "" {
			phen.Section = pm.Base().Section
		}
	}

	scoreResult := p.scorer.Score(ctx, theory, phen)
	metrics.ConnectionStrength.Observe(scoreResult.TotalStrength)

	outcome := RelationshipOutcome{
		Theory:     theoryRes.CanonicalName,
		Phenomenon: phenRes.CanonicalName,
		Strength:   scoreResult.TotalStrength,
	}

	if !p.scorer.ShouldCreateConnection(scoreResult.TotalStrength) {
		metrics.ConnectionsSkipped.Inc()
		outcome.Reason = "below connection threshold"
		return outcome, nil
	}

	scored := models.ScoredRelationship{
		SourceCanonical: theoryRes.CanonicalName,
		TargetCanonical: phenRes.CanonicalName,
		PaperID:         paperID,
		Section:         rel.Section,
		Factors:         scoreResult.Factors,
		TotalStrength:   scoreResult.TotalStrength,
	}
	if err := p.graph.UpsertScoredRelationship(ctx, scored); err != nil {
		metrics.GraphOperations.WithLabelValues("upsert_scored", "error").Inc()
		return RelationshipOutcome{}, fmt.Errorf("failed to upsert scored relationship %s->%s: %w",
			theoryRes.CanonicalName, phenRes.CanonicalName, err)
	}
	metrics.GraphOperations.WithLabelValues("upsert_scored", "ok").Inc()
	metrics.ConnectionsCreated.Inc()

	outcome.Created = true
	return outcome, nil
}

// lookupOrResolve canonicalizes a raw name, reusing this submission's prior
// resolutions and the shared cache. New canonical names are registered so
// the next lookup resolves them exactly.
func (p *Pipeline) lookupOrResolve(ctx context.Context, kind models.EntityKind, rawName string, state *paperState) (canonical.Resolution, error) {
	key := string(kind) + "|" + strings.ToLower(canonical.CleanName(rawName))
	if res, ok := state.resolved[key]; ok {
		return res, nil
	}

	res, err := p.resolveName(ctx, rawName, kind)
	if err != nil {
		return canonical.Resolution{}, err
	}

	if res.IsNew && p.registrar != nil {
		p.registrar.Register(ctx, kind, res.CanonicalName)
	}
	metrics.CanonicalizationTotal.WithLabelValues(string(kind), res.Method).Inc()
	if res.Ambiguity != nil {
		metrics.AmbiguousMatches.WithLabelValues(string(kind)).Inc()
	}

	state.resolved[key] = res
	return res, nil
}

func (p *Pipeline) resolveName(ctx context.Context, rawName string, kind models.EntityKind) (canonical.Resolution, error) {
	if p.cache == nil {
		return p.canon.Canonicalize(ctx, rawName, kind)
	}

	nameHash := utils.HashString(strings.ToLower(canonical.CleanName(rawName)))

	var cached canonical.Resolution
	hit, err := p.cache.GetResolution(ctx, string(kind), nameHash, &cached)
	if err != nil {
		logger.Warn("Resolution cache read failed", zap.Error(err))
	} else if hit {
		metrics.CacheHits.WithLabelValues("resolution").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("resolution").Inc()

	res, err := p.canon.Canonicalize(ctx, rawName, kind)
	if err != nil {
		return canonical.Resolution{}, err
	}

	if err := p.cache.SetResolution(ctx, string(kind), nameHash, res, p.cacheTTL); err != nil {
		logger.Warn("Resolution cache write failed", zap.Error(err))
	}
	return res, nil
}

func (p *Pipeline) ensureEntity(ctx context.Context, kind models.EntityKind, canonicalName, rawName, section, paperID string, state *paperState) error {
	key := models.EntityKey(kind, canonicalName)
	if state.upserted[key] {
		return nil
	}

	entity := models.CanonicalEntity{
		CanonicalName: canonicalName,
		Kind:          kind,
		PaperIDs:      []string{paperID},
	}
	if !strings.EqualFold(rawName, canonicalName) {
		entity.Aliases = []string{rawName}
	}

	if err := p.graph.UpsertEntity(ctx, entity); err != nil {
		metrics.GraphOperations.WithLabelValues("upsert_entity", "error").Inc()
		return fmt.Errorf("failed to upsert entity %q: %w", canonicalName, err)
	}
	metrics.GraphOperations.WithLabelValues("upsert_entity", "ok").Inc()

	attrs := map[string]any{"raw_name": rawName, "section": section}
	if err := p.graph.UpsertPaperRelationship(ctx, paperID, entity, attrs); err != nil {
		metrics.GraphOperations.WithLabelValues("upsert_mention", "error").Inc()
		return fmt.Errorf("failed to link paper %s to %q: %w", paperID, canonicalName, err)
	}
	metrics.GraphOperations.WithLabelValues("upsert_mention", "ok").Inc()

	state.upserted[key] = true
	return nil
}

// refreshRollups recomputes the aggregate for every pair this paper created
// or restated. Failures are logged and left for the next full recompute; the
// scored edges they derive from are already persisted.
func (p *Pipeline) refreshRollups(ctx context.Context, result *PaperResult) {
	if p.rollups == nil {
		return
	}

	seen := make(map[string]bool)
	for _, outcome := range result.Relationships {
		if !outcome.Created {
			continue
		}
		pairKey := outcome.Theory + "->" + outcome.Phenomenon
		if seen[pairKey] {
			continue
		}
		seen[pairKey] = true

		aggStart := time.Now()
		if _, err := p.rollups.Recompute(ctx, outcome.Theory, outcome.Phenomenon); err != nil {
			logger.Warn("Rollup recompute failed",
				zap.String("theory", outcome.Theory),
				zap.String("phenomenon", outcome.Phenomenon),
				zap.Error(err),
			)
			continue
		}
		metrics.AggregationDuration.Observe(time.Since(aggStart).Seconds())
	}
}

// recordRun writes the relational bookkeeping. Both writes are best-effort:
// the graph already holds the authoritative outcome of this run.
func (p *Pipeline) recordRun(paperID, title string, started time.Time, result *PaperResult) {
	now := time.Now()
	paper := &models.Paper{
		ID:                paperID,
		Title:             strings.TrimSpace(title),
		MentionCount:      result.Accepted,
		RelationshipCount: result.RelationshipsScored,
		FirstIngestedAt:   now,
		LastIngestedAt:    now,
	}
	if err := p.meta.UpsertPaper(paper); err != nil {
		logger.Warn("Failed to record paper", zap.String("paper_id", paperID), zap.Error(err))
	}

	run := &models.IngestRun{
		ID:                  result.RunID,
		PaperID:             paperID,
		Accepted:            result.Accepted,
		Quarantined:         result.Quarantined,
		EntitiesUpserted:    result.EntitiesUpserted,
		RelationshipsScored: result.RelationshipsScored,
		ConnectionsCreated:  result.ConnectionsCreated,
		StartedAt:           started,
		FinishedAt:          now,
	}
	if err := p.meta.RecordIngestRun(run); err != nil {
		logger.Warn("Failed to record ingest run", zap.String("run_id", result.RunID), zap.Error(err))
	}
}

func (p *Pipeline) quarantine(paperID string, raw json.RawMessage, inputErr *InputError) {
	q := &models.QuarantinedMention{
		PaperID:   paperID,
		Payload:   string(raw),
		Reason:    inputErr.Error(),
		CreatedAt: time.Now(),
	}
	if err := p.meta.QuarantineMention(q); err != nil {
		logger.Warn("Failed to quarantine mention", zap.String("paper_id", paperID), zap.Error(err))
	}
}

func mentionAttrs(mention models.Mention) map[string]any {
	base := mention.Base()
	attrs := map[string]any{
		"raw_name": base.RawName,
		"section":  base.Section,
	}
	if base.UsageContext != "" {
		attrs["usage_context"] = base.UsageContext
	}
	switch m := mention.(type) {
	case models.TheoryMention:
		if m.Role != "" {
			attrs["role"] = m.Role
		}
	case models.MethodMention:
		if m.MethodType != "" {
			attrs["method_type"] = m.MethodType
		}
	case models.SoftwareMention:
		if m.Version != "" {
			attrs["version"] = m.Version
		}
	case models.PhenomenonMention:
		if m.Context != "" {
			attrs["context"] = m.Context
		}
	case models.VariableMention:
		if m.VariableType != "" {
			attrs["variable_type"] = m.VariableType
		}
	}
	return attrs
}

// BatchItemResult pairs one submission with its outcome or error.
type BatchItemResult struct {
	PaperID string       `json:"paper_id"`
	Result  *PaperResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// IngestBatch runs submissions concurrently under a bounded worker count.
// One paper's failure never stops the others; results come back in
// submission order.
func (p *Pipeline) IngestBatch(ctx context.Context, subs []PaperSubmission) []BatchItemResult {
	results := make([]BatchItemResult, len(subs))

	var eg errgroup.Group
	eg.SetLimit(p.workers)

	for i, sub := range subs {
		i, sub := i, sub
		eg.Go(func() error {
			res, err := p.IngestPaper(ctx, sub)
			item := BatchItemResult{PaperID: strings.TrimSpace(sub.PaperID), Result: res}
			if err != nil {
				item.Error = err.Error()
				logger.Warn("Batch paper failed", zap.String("paper_id", sub.PaperID), zap.Error(err))
			}
			results[i] = item
			return nil
		})
	}
	_ = eg.Wait()

	return results
}
