package models

import (
	"strings"
	"time"
)

// EntityKind classifies what an extracted mention refers to.
type EntityKind string

const (
	KindTheory     EntityKind = "Theory"
	KindMethod     EntityKind = "Method"
	KindSoftware   EntityKind = "Software"
	KindPhenomenon EntityKind = "Phenomenon"
	KindVariable   EntityKind = "Variable"
)

var allKinds = []EntityKind{KindTheory, KindMethod, KindSoftware, KindPhenomenon, KindVariable}

func AllKinds() []EntityKind {
	kinds := make([]EntityKind, len(allKinds))
	copy(kinds, allKinds)
	return kinds
}

// ParseEntityKind accepts the wire spelling of a kind, case-insensitively.
func ParseEntityKind(s string) (EntityKind, bool) {
	for _, k := range allKinds {
		if strings.EqualFold(s, string(k)) {
			return k, true
		}
	}
	return "", false
}

// EntityKey is the graph-unique key for a canonical entity. One node exists
// per (kind, canonical_name), so the key folds both into a single property.
func EntityKey(kind EntityKind, canonicalName string) string {
	return string(kind) + ":" + strings.ToLower(canonicalName)
}

// BaseMention carries the fields shared by every extracted entity mention.
type BaseMention struct {
	RawName      string   `json:"raw_name"`
	PaperID      string   `json:"paper_id"`
	Section      string   `json:"section"`
	Description  string   `json:"description,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	UsageContext string   `json:"usage_context,omitempty"`
}

// Mention is the tagged union over the per-kind mention structs. Records are
// decoded into the matching struct at the ingestion boundary; nothing past
// that boundary sees raw JSON.
type Mention interface {
	Kind() EntityKind
	Base() BaseMention
}

type TheoryMention struct {
	BaseMention
	Role string `json:"role,omitempty"`
}

func (m TheoryMention) Kind() EntityKind  { return KindTheory }
func (m TheoryMention) Base() BaseMention { return m.BaseMention }

type MethodMention struct {
	BaseMention
	MethodType string `json:"method_type,omitempty"`
}

func (m MethodMention) Kind() EntityKind  { return KindMethod }
func (m MethodMention) Base() BaseMention { return m.BaseMention }

type SoftwareMention struct {
	BaseMention
	Version string `json:"version,omitempty"`
}

func (m SoftwareMention) Kind() EntityKind  { return KindSoftware }
func (m SoftwareMention) Base() BaseMention { return m.BaseMention }

type PhenomenonMention struct {
	BaseMention
	Context string `json:"context,omitempty"`
}

func (m PhenomenonMention) Kind() EntityKind  { return KindPhenomenon }
func (m PhenomenonMention) Base() BaseMention { return m.BaseMention }

type VariableMention struct {
	BaseMention
	VariableType string `json:"variable_type,omitempty"`
}

func (m VariableMention) Kind() EntityKind  { return KindVariable }
func (m VariableMention) Base() BaseMention { return m.BaseMention }

// RelationshipMention is one extracted theory-explains-phenomenon claim.
type RelationshipMention struct {
	TheoryName     string `json:"theory_name"`
	PhenomenonName string `json:"phenomenon_name"`
	PaperID        string `json:"paper_id"`
	Section        string `json:"section"`
	UsageContext   string `json:"usage_context"`
	Role           string `json:"role"`
}

// CanonicalEntity is the deduplicated representation of one concept.
type CanonicalEntity struct {
	CanonicalName string     `json:"canonical_name"`
	Kind          EntityKind `json:"kind"`
	Aliases       []string   `json:"aliases"`
	Description   string     `json:"description,omitempty"`
	EvidenceCount int        `json:"evidence_count"`
	PaperIDs      []string   `json:"paper_ids"`
	FirstSeen     time.Time  `json:"first_seen,omitempty"`
	LastUpdated   time.Time  `json:"last_updated,omitempty"`
}

func (e CanonicalEntity) Key() string {
	return EntityKey(e.Kind, e.CanonicalName)
}

// FactorScores holds the five clamped components of a connection strength.
type FactorScores struct {
	RoleWeight    float64 `json:"role_weight"`
	SectionScore  float64 `json:"section_score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	ExplicitBonus float64 `json:"explicit_bonus"`
}

func (f FactorScores) Sum() float64 {
	return f.RoleWeight + f.SectionScore + f.KeywordScore + f.SemanticScore + f.ExplicitBonus
}

// ScoredRelationship is the per-paper strength of one theory/phenomenon pair.
// One record exists per (pair, paper); re-extraction overwrites it.
type ScoredRelationship struct {
	SourceCanonical string       `json:"source_canonical"`
	TargetCanonical string       `json:"target_canonical"`
	PaperID         string       `json:"paper_id"`
	Section         string       `json:"section"`
	Factors         FactorScores `json:"factor_scores"`
	TotalStrength   float64      `json:"total_strength"`
}

// AggregatedRelationship is the derived cross-paper rollup for one pair. It
// is recomputed from the ScoredRelationship set, never authored directly.
type AggregatedRelationship struct {
	SourceCanonical      string       `json:"source_canonical"`
	TargetCanonical      string       `json:"target_canonical"`
	AvgStrength          float64      `json:"avg_strength"`
	MinStrength          float64      `json:"min_strength"`
	MaxStrength          float64      `json:"max_strength"`
	StdStrength          float64      `json:"std_strength"`
	PaperCount           int          `json:"paper_count"`
	ContributingPaperIDs []string     `json:"contributing_paper_ids"`
	Sections             []string     `json:"sections"`
	FactorAverages       FactorScores `json:"factor_averages"`
	ComputedAt           time.Time    `json:"computed_at,omitempty"`
}

// MergeRecord describes one planned merge of duplicate canonical entities.
// It lives only for the span of plan-then-apply and is never persisted.
type MergeRecord struct {
	PlanID           string     `json:"plan_id"`
	Kind             EntityKind `json:"kind"`
	CanonicalGroup   string     `json:"canonical_group"`
	Survivor         string     `json:"survivor"`
	SurvivorEvidence int        `json:"survivor_evidence"`
	Absorbed         []string   `json:"absorbed"`
	PaperIDsMoved    []string   `json:"paper_ids_moved"`
	PlannedAt        time.Time  `json:"planned_at"`
}

// MergeConflictError reports drift between planning and applying a merge:
// the survivor vanished or gained evidence in between. The merge must be
// re-planned, never partially applied.
type MergeConflictError struct {
	Survivor string
	Reason   string
}

func (e *MergeConflictError) Error() string {
	return "merge conflict on " + e.Survivor + ": " + e.Reason
}

// Paper is the sqlite-side registry row for an ingested paper.
type Paper struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	MentionCount      int       `json:"mention_count"`
	RelationshipCount int       `json:"relationship_count"`
	FirstIngestedAt   time.Time `json:"first_ingested_at"`
	LastIngestedAt    time.Time `json:"last_ingested_at"`
}

// QuarantinedMention is a rejected raw record kept for inspection.
type QuarantinedMention struct {
	ID        int64     `json:"id"`
	PaperID   string    `json:"paper_id"`
	Payload   string    `json:"payload"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestRun tallies one pass of a paper through the pipeline.
type IngestRun struct {
	ID                  string    `json:"id"`
	PaperID             string    `json:"paper_id"`
	Accepted            int       `json:"accepted"`
	Quarantined         int       `json:"quarantined"`
	EntitiesUpserted    int       `json:"entities_upserted"`
	RelationshipsScored int       `json:"relationships_scored"`
	ConnectionsCreated  int       `json:"connections_created"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

// SynonymEntry is one runtime-added dictionary row.
type SynonymEntry struct {
	Kind      EntityKind `json:"kind"`
	Variant   string     `json:"variant"`
	Canonical string     `json:"canonical"`
	CreatedAt time.Time  `json:"created_at"`
}

// AppendUnique adds items to slice, skipping empties and values already present.
func AppendUnique(slice []string, items ...string) []string {
	seen := make(map[string]struct{}, len(slice))
	for _, s := range slice {
		seen[s] = struct{}{}
	}
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		slice = append(slice, item)
	}
	return slice
}
