package aggregation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/storage/models"
)

// Pair identifies one canonical theory/phenomenon combination.
type Pair struct {
	SourceCanonical string `json:"source_canonical"`
	TargetCanonical string `json:"target_canonical"`
}

// Store is the slice of the graph the aggregator reads and writes. It sees a
// monotonically growing set of scored relationships; eventual consistency
// with in-flight ingestion is acceptable.
type Store interface {
	FetchScoredRelationships(ctx context.Context, sourceCanonical, targetCanonical string) ([]models.ScoredRelationship, error)
	FetchScoredPairs(ctx context.Context) ([]Pair, error)
	UpsertAggregatedRelationship(ctx context.Context, agg models.AggregatedRelationship) error
}

// ProgressFunc receives recompute progress for streaming to observers.
type ProgressFunc func(stage string, done, total int)

// Aggregator folds per-paper scored relationships into cross-paper rollup
// statistics.
type Aggregator struct {
	store Store
	log   *zap.Logger
}

func NewAggregator(store Store, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{store: store, log: log}
}

// Recompute rebuilds the rollup for one pair from the full set of its scored
// relationships and upserts it. Re-running with the same underlying set
// produces the same statistics. A pair whose set became empty (after a
// merge) is returned with PaperCount zero and no write.
func (a *Aggregator) Recompute(ctx context.Context, sourceCanonical, targetCanonical string) (models.AggregatedRelationship, error) {
	rels, err := a.store.FetchScoredRelationships(ctx, sourceCanonical, targetCanonical)
	if err != nil {
		return models.AggregatedRelationship{}, fmt.Errorf("failed to fetch scored relationships: %w", err)
	}

	agg := Aggregate(sourceCanonical, targetCanonical, rels)
	if agg.PaperCount == 0 {
		return agg, nil
	}

	if err := a.store.UpsertAggregatedRelationship(ctx, agg); err != nil {
		return models.AggregatedRelationship{}, fmt.Errorf("failed to upsert aggregated relationship: %w", err)
	}

	a.log.Debug("recomputed rollup",
		zap.String("source", sourceCanonical),
		zap.String("target", targetCanonical),
		zap.Int("paper_count", agg.PaperCount),
		zap.Float64("avg_strength", agg.AvgStrength),
	)
	return agg, nil
}

// RecomputeAll rebuilds every pair's rollup. Individual pair failures are
// logged and counted but do not stop the pass.
func (a *Aggregator) RecomputeAll(ctx context.Context, progress ProgressFunc) (int, error) {
	pairs, err := a.store.FetchScoredPairs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list scored pairs: %w", err)
	}

	recomputed := 0
	failed := 0
	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return recomputed, err
		}
		if _, err := a.Recompute(ctx, pair.SourceCanonical, pair.TargetCanonical); err != nil {
			failed++
			a.log.Error("rollup recompute failed",
				zap.String("source", pair.SourceCanonical),
				zap.String("target", pair.TargetCanonical),
				zap.Error(err),
			)
		} else {
			recomputed++
		}
		if progress != nil {
			progress("aggregating", i+1, len(pairs))
		}
	}

	if failed > 0 {
		return recomputed, fmt.Errorf("failed to recompute %d of %d pairs", failed, len(pairs))
	}
	return recomputed, nil
}

// RecomputeTouching rebuilds every rollup in which the canonical name
// appears on either side. Used after merges move evidence onto a survivor.
func (a *Aggregator) RecomputeTouching(ctx context.Context, canonicalName string) (int, error) {
	pairs, err := a.store.FetchScoredPairs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list scored pairs: %w", err)
	}

	recomputed := 0
	for _, pair := range pairs {
		if pair.SourceCanonical != canonicalName && pair.TargetCanonical != canonicalName {
			continue
		}
		if _, err := a.Recompute(ctx, pair.SourceCanonical, pair.TargetCanonical); err != nil {
			return recomputed, err
		}
		recomputed++
	}
	return recomputed, nil
}

// Aggregate is the pure fold: arithmetic mean, min, max, and population
// standard deviation of total strength, per-factor means, and the distinct
// contributing papers and sections. A single record yields a zero standard
// deviation, never NaN.
func Aggregate(sourceCanonical, targetCanonical string, rels []models.ScoredRelationship) models.AggregatedRelationship {
	agg := models.AggregatedRelationship{
		SourceCanonical: sourceCanonical,
		TargetCanonical: targetCanonical,
	}
	if len(rels) == 0 {
		return agg
	}

	n := float64(len(rels))
	minStrength := rels[0].TotalStrength
	maxStrength := rels[0].TotalStrength
	var sum, sumSquares float64
	var factorSums models.FactorScores
	var papers, sections []string

	for _, rel := range rels {
		s := rel.TotalStrength
		sum += s
		sumSquares += s * s
		if s < minStrength {
			minStrength = s
		}
		if s > maxStrength {
			maxStrength = s
		}

		factorSums.RoleWeight += rel.Factors.RoleWeight
		factorSums.SectionScore += rel.Factors.SectionScore
		factorSums.KeywordScore += rel.Factors.KeywordScore
		factorSums.SemanticScore += rel.Factors.SemanticScore
		factorSums.ExplicitBonus += rel.Factors.ExplicitBonus

		papers = models.AppendUnique(papers, rel.PaperID)
		if rel.Section != "" {
			sections = models.AppendUnique(sections, rel.Section)
		}
	}

	mean := sum / n
	variance := sumSquares/n - mean*mean
	if variance < 0 {
		// Floating-point residue on near-constant sets.
		variance = 0
	}

	sort.Strings(papers)
	sort.Strings(sections)

	agg.AvgStrength = mean
	agg.MinStrength = minStrength
	agg.MaxStrength = maxStrength
	agg.StdStrength = math.Sqrt(variance)
	agg.PaperCount = len(papers)
	agg.ContributingPaperIDs = papers
	agg.Sections = sections
	agg.FactorAverages = models.FactorScores{
		RoleWeight:    factorSums.RoleWeight / n,
		SectionScore:  factorSums.SectionScore / n,
		KeywordScore:  factorSums.KeywordScore / n,
		SemanticScore: factorSums.SemanticScore / n,
		ExplicitBonus: factorSums.ExplicitBonus / n,
	}
	agg.ComputedAt = time.Now().UTC()
	return agg
}
