package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/aggregation"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/circuitbreaker"
	"github.com/theorygraph/backend/pkg/logger"
	"github.com/theorygraph/backend/pkg/retry"
)

// Client is the upsert coordinator for the persisted graph. Every write is a
// single-statement (or single-transaction) match-or-create, so concurrently
// ingested papers never race between "does entity X exist" and "create X".
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraints and indexes best-effort:
// a failure (older server, missing privileges) is logged and tolerated, the
// MERGE discipline still keeps writes consistent.
func (c *Client) EnsureSchema(ctx context.Context) {
	statements := []string{
		"CREATE CONSTRAINT entity_key_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.key IS UNIQUE",
		"CREATE CONSTRAINT paper_id_unique IF NOT EXISTS FOR (p:Paper) REQUIRE p.paper_id IS UNIQUE",
		"CREATE INDEX entity_kind_idx IF NOT EXISTS FOR (e:Entity) ON (e.kind)",
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			logger.Warn("schema statement failed, continuing", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

func (c *Client) executeWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			_, err := session.ExecuteWrite(ctx, work)
			return err
		})
	})
}

func (c *Client) executeRead(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var out any
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			result, err := session.ExecuteRead(ctx, work)
			if err != nil {
				return err
			}
			out = result
			return nil
		})
	})
	return out, err
}

// UpsertEntity creates or updates the single node for a canonical entity.
// Evidence count tracks distinct papers: re-ingesting a paper already in
// paper_ids changes nothing, so the operation is idempotent per paper.
func (c *Client) UpsertEntity(ctx context.Context, entity models.CanonicalEntity) error {
	query := `
		MERGE (e:Entity {key: $key})
		ON CREATE SET
		    e.canonical_name = $canonical_name,
		    e.kind = $kind,
		    e.aliases = $aliases,
		    e.paper_ids = $paper_ids,
		    e.evidence_count = size($paper_ids),
		    e.description = $description,
		    e.first_seen = datetime()
		ON MATCH SET
		    e.evidence_count = e.evidence_count + size([p IN $paper_ids WHERE NOT p IN e.paper_ids]),
		    e.paper_ids = e.paper_ids + [p IN $paper_ids WHERE NOT p IN e.paper_ids],
		    e.aliases = e.aliases + [a IN $aliases WHERE NOT a IN e.aliases],
		    e.description = CASE WHEN coalesce(e.description, '') = '' THEN $description ELSE e.description END
		SET e.last_updated = datetime()
	`

	err := c.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx, query, map[string]any{
			"key":            entity.Key(),
			"canonical_name": entity.CanonicalName,
			"kind":           string(entity.Kind),
			"aliases":        stringList(entity.Aliases),
			"paper_ids":      stringList(entity.PaperIDs),
			"description":    entity.Description,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert entity %q: %w", entity.CanonicalName, err)
	}

	logger.Debug("Entity upserted", zap.String("key", entity.Key()))
	return nil
}

// UpsertPaperRelationship connects a paper node to an entity, overwriting
// stale edge attributes on re-ingestion.
func (c *Client) UpsertPaperRelationship(ctx context.Context, paperID string, entity models.CanonicalEntity, attrs map[string]any) error {
	query := `
		MERGE (p:Paper {paper_id: $paper_id})
		ON CREATE SET p.first_seen = datetime()
		SET p.last_updated = datetime()
		WITH p
		MATCH (e:Entity {key: $key})
		MERGE (p)-[r:MENTIONS]->(e)
		SET r += $attrs
	`

	if attrs == nil {
		attrs = map[string]any{}
	}
	err := c.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx, query, map[string]any{
			"paper_id": paperID,
			"key":      entity.Key(),
			"attrs":    attrs,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert paper relationship %s->%s: %w", paperID, entity.CanonicalName, err)
	}
	return nil
}

// UpsertScoredRelationship writes the per-paper scored edge for a theory and
// phenomenon pair. The edge is keyed by paper, so re-extraction of the same
// pair in the same paper overwrites rather than appends.
func (c *Client) UpsertScoredRelationship(ctx context.Context, rel models.ScoredRelationship) error {
	query := `
		MATCH (t:Entity {key: $source_key})
		MATCH (ph:Entity {key: $target_key})
		MERGE (t)-[r:EXPLAINS {paper_id: $paper_id}]->(ph)
		SET r.section = $section,
		    r.total_strength = $total_strength,
		    r.role_weight = $role_weight,
		    r.section_score = $section_score,
		    r.keyword_score = $keyword_score,
		    r.semantic_score = $semantic_score,
		    r.explicit_bonus = $explicit_bonus,
		    r.scored_at = datetime()
	`

	err := c.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx, query, map[string]any{
			"source_key":     models.EntityKey(models.KindTheory, rel.SourceCanonical),
			"target_key":     models.EntityKey(models.KindPhenomenon, rel.TargetCanonical),
			"paper_id":       rel.PaperID,
			"section":        rel.Section,
			"total_strength": rel.TotalStrength,
			"role_weight":    rel.Factors.RoleWeight,
			"section_score":  rel.Factors.SectionScore,
			"keyword_score":  rel.Factors.KeywordScore,
			"semantic_score": rel.Factors.SemanticScore,
			"explicit_bonus": rel.Factors.ExplicitBonus,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert scored relationship %s->%s: %w", rel.SourceCanonical, rel.TargetCanonical, err)
	}
	return nil
}

// UpsertAggregatedRelationship writes the rollup edge for a pair.
func (c *Client) UpsertAggregatedRelationship(ctx context.Context, agg models.AggregatedRelationship) error {
	query := `
		MATCH (t:Entity {key: $source_key})
		MATCH (ph:Entity {key: $target_key})
		MERGE (t)-[r:EXPLAINS_ROLLUP]->(ph)
		SET r.avg_strength = $avg_strength,
		    r.min_strength = $min_strength,
		    r.max_strength = $max_strength,
		    r.std_strength = $std_strength,
		    r.paper_count = $paper_count,
		    r.contributing_paper_ids = $paper_ids,
		    r.sections = $sections,
		    r.avg_role_weight = $avg_role_weight,
		    r.avg_section_score = $avg_section_score,
		    r.avg_keyword_score = $avg_keyword_score,
		    r.avg_semantic_score = $avg_semantic_score,
		    r.avg_explicit_bonus = $avg_explicit_bonus,
		    r.computed_at = datetime()
	`

	err := c.executeWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx, query, map[string]any{
			"source_key":         models.EntityKey(models.KindTheory, agg.SourceCanonical),
			"target_key":         models.EntityKey(models.KindPhenomenon, agg.TargetCanonical),
			"avg_strength":       agg.AvgStrength,
			"min_strength":       agg.MinStrength,
			"max_strength":       agg.MaxStrength,
			"std_strength":       agg.StdStrength,
			"paper_count":        agg.PaperCount,
			"paper_ids":          stringList(agg.ContributingPaperIDs),
			"sections":           stringList(agg.Sections),
			"avg_role_weight":    agg.FactorAverages.RoleWeight,
			"avg_section_score":  agg.FactorAverages.SectionScore,
			"avg_keyword_score":  agg.FactorAverages.KeywordScore,
			"avg_semantic_score": agg.FactorAverages.SemanticScore,
			"avg_explicit_bonus": agg.FactorAverages.ExplicitBonus,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert aggregated relationship %s->%s: %w", agg.SourceCanonical, agg.TargetCanonical, err)
	}
	return nil
}

// FetchEntity returns one canonical entity, or nil when absent.
func (c *Client) FetchEntity(ctx context.Context, kind models.EntityKind, canonicalName string) (*models.CanonicalEntity, error) {
	query := `
		MATCH (e:Entity {key: $key})
		RETURN e.canonical_name AS canonical_name, e.kind AS kind, e.aliases AS aliases,
		       e.description AS description, e.evidence_count AS evidence_count, e.paper_ids AS paper_ids
	`

	out, err := c.executeRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"key": models.EntityKey(kind, canonicalName)})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		entity := recordToEntity(result.Record())
		return &entity, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entity %q: %w", canonicalName, err)
	}
	if out == nil {
		return nil, nil
	}
	return out.(*models.CanonicalEntity), nil
}

// FetchEntitiesByKind lists every canonical entity of a kind, most evidence
// first.
func (c *Client) FetchEntitiesByKind(ctx context.Context, kind models.EntityKind) ([]models.CanonicalEntity, error) {
	query := `
		MATCH (e:Entity {kind: $kind})
		RETURN e.canonical_name AS canonical_name, e.kind AS kind, e.aliases AS aliases,
		       e.description AS description, e.evidence_count AS evidence_count, e.paper_ids AS paper_ids
		ORDER BY e.evidence_count DESC, e.canonical_name
	`

	out, err := c.executeRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"kind": string(kind)})
		if err != nil {
			return nil, err
		}
		var entities []models.CanonicalEntity
		for result.Next(ctx) {
			entities = append(entities, recordToEntity(result.Record()))
		}
		return entities, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities of kind %s: %w", kind, err)
	}
	entities, _ := out.([]models.CanonicalEntity)
	return entities, nil
}

// FetchScoredRelationships returns every per-paper scored edge for a pair.
func (c *Client) FetchScoredRelationships(ctx context.Context, sourceCanonical, targetCanonical string) ([]models.ScoredRelationship, error) {
	query := `
		MATCH (t:Entity {key: $source_key})-[r:EXPLAINS]->(ph:Entity {key: $target_key})
		RETURN r.paper_id AS paper_id, r.section AS section, r.total_strength AS total_strength,
		       r.role_weight AS role_weight, r.section_score AS section_score,
		       r.keyword_score AS keyword_score, r.semantic_score AS semantic_score,
		       r.explicit_bonus AS explicit_bonus
		ORDER BY r.paper_id
	`

	out, err := c.executeRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{
			"source_key": models.EntityKey(models.KindTheory, sourceCanonical),
			"target_key": models.EntityKey(models.KindPhenomenon, targetCanonical),
		})
		if err != nil {
			return nil, err
		}
		var rels []models.ScoredRelationship
		for result.Next(ctx) {
			record := result.Record()
			rels = append(rels, models.ScoredRelationship{
				SourceCanonical: sourceCanonical,
				TargetCanonical: targetCanonical,
				PaperID:         asString(record, "paper_id"),
				Section:         asString(record, "section"),
				TotalStrength:   asFloat(record, "total_strength"),
				Factors: models.FactorScores{
					RoleWeight:    asFloat(record, "role_weight"),
					SectionScore:  asFloat(record, "section_score"),
					KeywordScore:  asFloat(record, "keyword_score"),
					SemanticScore: asFloat(record, "semantic_score"),
					ExplicitBonus: asFloat(record, "explicit_bonus"),
				},
			})
		}
		return rels, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scored relationships %s->%s: %w", sourceCanonical, targetCanonical, err)
	}
	rels, _ := out.([]models.ScoredRelationship)
	return rels, nil
}

// FetchScoredPairs lists every distinct theory/phenomenon pair that has at
// least one scored edge.
func (c *Client) FetchScoredPairs(ctx context.Context) ([]aggregation.Pair, error) {
	query := `
		MATCH (t:Entity)-[:EXPLAINS]->(ph:Entity)
		RETURN DISTINCT t.canonical_name AS source, ph.canonical_name AS target
		ORDER BY source, target
	`

	out, err := c.executeRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		var pairs []aggregation.Pair
		for result.Next(ctx) {
			record := result.Record()
			pairs = append(pairs, aggregation.Pair{
				SourceCanonical: asString(record, "source"),
				TargetCanonical: asString(record, "target"),
			})
		}
		return pairs, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scored pairs: %w", err)
	}
	pairs, _ := out.([]aggregation.Pair)
	return pairs, nil
}

// FetchAggregatedRelationship returns the rollup edge for a pair, or nil
// when none exists yet.
func (c *Client) FetchAggregatedRelationship(ctx context.Context, sourceCanonical, targetCanonical string) (*models.AggregatedRelationship, error) {
	query := `
		MATCH (t:Entity {key: $source_key})-[r:EXPLAINS_ROLLUP]->(ph:Entity {key: $target_key})
		RETURN r.avg_strength AS avg_strength, r.min_strength AS min_strength,
		       r.max_strength AS max_strength, r.std_strength AS std_strength,
		       r.paper_count AS paper_count, r.contributing_paper_ids AS paper_ids,
		       r.sections AS sections,
		       r.avg_role_weight AS avg_role_weight, r.avg_section_score AS avg_section_score,
		       r.avg_keyword_score AS avg_keyword_score, r.avg_semantic_score AS avg_semantic_score,
		       r.avg_explicit_bonus AS avg_explicit_bonus
	`

	out, err := c.executeRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{
			"source_key": models.EntityKey(models.KindTheory, sourceCanonical),
			"target_key": models.EntityKey(models.KindPhenomenon, targetCanonical),
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		record := result.Record()
		agg := models.AggregatedRelationship{
			SourceCanonical:      sourceCanonical,
			TargetCanonical:      targetCanonical,
			AvgStrength:          asFloat(record, "avg_strength"),
			MinStrength:          asFloat(record, "min_strength"),
			MaxStrength:          asFloat(record, "max_strength"),
			StdStrength:          asFloat(record, "std_strength"),
			PaperCount:           asInt(record, "paper_count"),
			ContributingPaperIDs: asStringSlice(record, "paper_ids"),
			Sections:             asStringSlice(record, "sections"),
			FactorAverages: models.FactorScores{
				RoleWeight:    asFloat(record, "avg_role_weight"),
				SectionScore:  asFloat(record, "avg_section_score"),
				KeywordScore:  asFloat(record, "avg_keyword_score"),
				SemanticScore: asFloat(record, "avg_semantic_score"),
				ExplicitBonus: asFloat(record, "avg_explicit_bonus"),
			},
		}
		return &agg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aggregated relationship %s->%s: %w", sourceCanonical, targetCanonical, err)
	}
	if out == nil {
		return nil, nil
	}
	return out.(*models.AggregatedRelationship), nil
}

// MergeEntities applies one planned merge inside a single transaction: it
// re-verifies the survivor, moves every paper and scored edge from each
// absorbed node onto the survivor, unions aliases and paper ids, and deletes
// the absorbed nodes. Any verification failure is a MergeConflictError and
// rolls the whole transaction back. No retry layer wraps this: a conflict
// must surface for re-planning, and the managed transaction already retries
// transient faults.
func (c *Client) MergeEntities(ctx context.Context, record models.MergeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	survivorKey := models.EntityKey(record.Kind, record.Survivor)

	return c.cb.Execute(ctx, func() error {
		session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, `MATCH (s:Entity {key: $key}) RETURN s.evidence_count AS evidence_count`,
				map[string]any{"key": survivorKey})
			if err != nil {
				return nil, fmt.Errorf("failed to load survivor: %w", err)
			}
			if !result.Next(ctx) {
				if err := result.Err(); err != nil {
					return nil, fmt.Errorf("failed to load survivor: %w", err)
				}
				return nil, &models.MergeConflictError{Survivor: record.Survivor, Reason: "survivor no longer exists"}
			}
			evidence := asInt(result.Record(), "evidence_count")
			if evidence != record.SurvivorEvidence {
				return nil, &models.MergeConflictError{
					Survivor: record.Survivor,
					Reason:   fmt.Sprintf("survivor evidence changed from %d to %d since planning", record.SurvivorEvidence, evidence),
				}
			}

			for _, absorbedName := range record.Absorbed {
				params := map[string]any{
					"absorbed_key": models.EntityKey(record.Kind, absorbedName),
					"survivor_key": survivorKey,
				}
				for _, query := range absorbQueries {
					if err := runConsume(ctx, tx, query, params); err != nil {
						return nil, fmt.Errorf("failed to absorb %q: %w", absorbedName, err)
					}
				}
			}
			return nil, nil
		})
		return err
	})
}

// The absorb steps, run per absorbed entity inside the merge transaction.
// Ordering matters: edges move before node properties fold in, and the
// absorbed node goes last so a failed step aborts with everything intact.
var absorbQueries = []string{
	`MATCH (p:Paper)-[r:MENTIONS]->(a:Entity {key: $absorbed_key})
	 MATCH (s:Entity {key: $survivor_key})
	 MERGE (p)-[nr:MENTIONS]->(s)
	 SET nr += properties(r)
	 DELETE r`,

	`MATCH (a:Entity {key: $absorbed_key})-[r:EXPLAINS]->(ph:Entity)
	 MATCH (s:Entity {key: $survivor_key})
	 MERGE (s)-[nr:EXPLAINS {paper_id: r.paper_id}]->(ph)
	 SET nr += properties(r)
	 DELETE r`,

	`MATCH (t:Entity)-[r:EXPLAINS]->(a:Entity {key: $absorbed_key})
	 MATCH (s:Entity {key: $survivor_key})
	 MERGE (t)-[nr:EXPLAINS {paper_id: r.paper_id}]->(s)
	 SET nr += properties(r)
	 DELETE r`,

	`MATCH (a:Entity {key: $absorbed_key})
	 MATCH (s:Entity {key: $survivor_key})
	 SET s.paper_ids = s.paper_ids + [p IN a.paper_ids WHERE NOT p IN s.paper_ids]
	 SET s.aliases = s.aliases + [al IN a.aliases + [a.canonical_name] WHERE NOT al IN s.aliases]
	 SET s.evidence_count = size(s.paper_ids)
	 SET s.description = CASE WHEN coalesce(s.description, '') = '' THEN coalesce(a.description, '') ELSE s.description END
	 SET s.last_updated = datetime()`,

	`MATCH (a:Entity {key: $absorbed_key})
	 DETACH DELETE a`,
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) error {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func recordToEntity(record *neo4j.Record) models.CanonicalEntity {
	kind, _ := models.ParseEntityKind(asString(record, "kind"))
	return models.CanonicalEntity{
		CanonicalName: asString(record, "canonical_name"),
		Kind:          kind,
		Aliases:       asStringSlice(record, "aliases"),
		Description:   asString(record, "description"),
		EvidenceCount: asInt(record, "evidence_count"),
		PaperIDs:      asStringSlice(record, "paper_ids"),
	}
}

func stringList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func asString(record *neo4j.Record, key string) string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return ""
	}
	s, _ := value.(string)
	return s
}

func asStringSlice(record *neo4j.Record, key string) []string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asInt(record *neo4j.Record, key string) int {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return 0
	}
	switch v := value.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func asFloat(record *neo4j.Record, key string) float64 {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return 0
	}
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}
