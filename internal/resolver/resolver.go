package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/canonical"
	"github.com/theorygraph/backend/internal/metrics"
	"github.com/theorygraph/backend/internal/storage/models"
)

// GraphStore is the slice of the graph the resolver needs: the entity
// inventory per kind and the atomic merge transaction.
type GraphStore interface {
	FetchEntitiesByKind(ctx context.Context, kind models.EntityKind) ([]models.CanonicalEntity, error)
	MergeEntities(ctx context.Context, record models.MergeRecord) error
}

// Rollups recomputes aggregated relationships touching one canonical name,
// so rollups follow the evidence after a merge.
type Rollups interface {
	RecomputeTouching(ctx context.Context, canonicalName string) (int, error)
}

// ProgressFunc receives scan/merge progress for streaming to observers.
type ProgressFunc func(stage string, done, total int)

// Group is a set of existing entities whose names re-canonicalize to the
// same form after vocabulary growth.
type Group struct {
	Canonical string                   `json:"canonical"`
	Members   []models.CanonicalEntity `json:"members"`
}

// GroupReport is the per-group slice of a maintenance report.
type GroupReport struct {
	Canonical      string   `json:"canonical"`
	Survivor       string   `json:"survivor"`
	Absorbed       []string `json:"absorbed"`
	MemberCount    int      `json:"member_count"`
	PapersAffected int      `json:"papers_affected"`
	EvidenceTotal  int      `json:"evidence_total"`
	Applied        bool     `json:"applied"`
	Error          string   `json:"error,omitempty"`
}

// Report summarizes one duplicate scan. Zero groups is a normal, successful
// outcome.
type Report struct {
	Kind            models.EntityKind `json:"kind"`
	DryRun          bool              `json:"dry_run"`
	ScannedEntities int               `json:"scanned_entities"`
	Groups          []GroupReport     `json:"groups"`
	MergesApplied   int               `json:"merges_applied"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// Resolver finds canonical entities that collided after vocabulary updates
// and merges them. Merges are irreversible and rewrite relationship
// ownership, so they run as an offline maintenance pass with dry-run as the
// default posture.
type Resolver struct {
	graph   GraphStore
	canon   *canonical.Canonicalizer
	rollups Rollups
	log     *zap.Logger
}

func NewResolver(graph GraphStore, canon *canonical.Canonicalizer, rollups Rollups, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{graph: graph, canon: canon, rollups: rollups, log: log}
}

// FindDuplicateGroups re-canonicalizes every entity of a kind and groups
// those whose canonical forms now coincide.
func (r *Resolver) FindDuplicateGroups(ctx context.Context, kind models.EntityKind) ([]Group, error) {
	groups, _, err := r.scan(ctx, kind, nil)
	return groups, err
}

func (r *Resolver) scan(ctx context.Context, kind models.EntityKind, progress ProgressFunc) ([]Group, int, error) {
	entities, err := r.graph.FetchEntitiesByKind(ctx, kind)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch entities for duplicate scan: %w", err)
	}

	byCanonical := make(map[string][]models.CanonicalEntity)
	for i, entity := range entities {
		if err := ctx.Err(); err != nil {
			return nil, len(entities), err
		}
		resolution, err := r.canon.Canonicalize(ctx, entity.CanonicalName, kind)
		if err != nil {
			r.log.Warn("skipping entity during duplicate scan",
				zap.String("canonical_name", entity.CanonicalName),
				zap.Error(err),
			)
			continue
		}
		byCanonical[resolution.CanonicalName] = append(byCanonical[resolution.CanonicalName], entity)
		if progress != nil {
			progress("scanning", i+1, len(entities))
		}
	}

	var groups []Group
	for canonicalForm, members := range byCanonical {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].CanonicalName < members[j].CanonicalName
		})
		groups = append(groups, Group{Canonical: canonicalForm, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Canonical < groups[j].Canonical })

	return groups, len(entities), nil
}

// PlanMerge picks the survivor for a group and records the evidence being
// moved. Survivor: highest evidence count; ties prefer the member already
// named like the group's canonical form, then the longest name.
func (r *Resolver) PlanMerge(group Group) (models.MergeRecord, error) {
	if len(group.Members) < 2 {
		return models.MergeRecord{}, fmt.Errorf("group %q has %d members, nothing to merge", group.Canonical, len(group.Members))
	}

	survivor := group.Members[0]
	for _, member := range group.Members[1:] {
		if preferSurvivor(member, survivor, group.Canonical) {
			survivor = member
		}
	}

	record := models.MergeRecord{
		PlanID:           uuid.NewString(),
		Kind:             survivor.Kind,
		CanonicalGroup:   group.Canonical,
		Survivor:         survivor.CanonicalName,
		SurvivorEvidence: survivor.EvidenceCount,
		PlannedAt:        time.Now().UTC(),
	}
	for _, member := range group.Members {
		if member.CanonicalName == survivor.CanonicalName {
			continue
		}
		record.Absorbed = append(record.Absorbed, member.CanonicalName)
		record.PaperIDsMoved = models.AppendUnique(record.PaperIDsMoved, member.PaperIDs...)
	}
	sort.Strings(record.PaperIDsMoved)

	return record, nil
}

func preferSurvivor(a, b models.CanonicalEntity, groupCanonical string) bool {
	if a.EvidenceCount != b.EvidenceCount {
		return a.EvidenceCount > b.EvidenceCount
	}
	aMatches := a.CanonicalName == groupCanonical
	bMatches := b.CanonicalName == groupCanonical
	if aMatches != bMatches {
		return aMatches
	}
	if len(a.CanonicalName) != len(b.CanonicalName) {
		return len(a.CanonicalName) > len(b.CanonicalName)
	}
	return a.CanonicalName < b.CanonicalName
}

// ApplyMerge executes one planned merge atomically. A MergeConflictError
// means the plan went stale; callers re-plan from a fresh scan. Rollup
// recomputation runs after the merge commits; its failure leaves derived
// edges stale but the merge intact.
func (r *Resolver) ApplyMerge(ctx context.Context, record models.MergeRecord) error {
	if err := r.graph.MergeEntities(ctx, record); err != nil {
		return err
	}

	metrics.MergesApplied.WithLabelValues(string(record.Kind)).Inc()
	r.log.Info("merged duplicate entities",
		zap.String("kind", string(record.Kind)),
		zap.String("survivor", record.Survivor),
		zap.Strings("absorbed", record.Absorbed),
		zap.Int("papers_moved", len(record.PaperIDsMoved)),
	)

	if r.rollups != nil {
		if _, err := r.rollups.RecomputeTouching(ctx, record.Survivor); err != nil {
			r.log.Warn("rollup recompute after merge failed",
				zap.String("survivor", record.Survivor),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Report is the maintenance entrypoint: scan one kind, plan every merge,
// and either stop there (dry run) or apply each plan. A conflicted apply is
// re-planned once from fresh state before being reported as failed.
func (r *Resolver) Report(ctx context.Context, kind models.EntityKind, dryRun bool, progress ProgressFunc) (Report, error) {
	groups, scanned, err := r.scan(ctx, kind, progress)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Kind:            kind,
		DryRun:          dryRun,
		ScannedEntities: scanned,
		Groups:          make([]GroupReport, 0, len(groups)),
		GeneratedAt:     time.Now().UTC(),
	}

	for i, group := range groups {
		record, err := r.PlanMerge(group)
		if err != nil {
			report.Groups = append(report.Groups, GroupReport{Canonical: group.Canonical, Error: err.Error()})
			continue
		}

		groupReport := GroupReport{
			Canonical:      group.Canonical,
			Survivor:       record.Survivor,
			Absorbed:       record.Absorbed,
			MemberCount:    len(group.Members),
			PapersAffected: len(record.PaperIDsMoved),
			EvidenceTotal:  groupEvidence(group),
		}

		if !dryRun {
			if err := r.applyWithReplan(ctx, kind, group, record); err != nil {
				groupReport.Error = err.Error()
			} else {
				groupReport.Applied = true
				report.MergesApplied++
			}
		}

		report.Groups = append(report.Groups, groupReport)
		if progress != nil {
			progress("merging", i+1, len(groups))
		}
	}

	return report, nil
}

// applyWithReplan retries a conflicted merge once against fresh state.
func (r *Resolver) applyWithReplan(ctx context.Context, kind models.EntityKind, stale Group, record models.MergeRecord) error {
	err := r.ApplyMerge(ctx, record)
	var conflict *models.MergeConflictError
	if !errors.As(err, &conflict) {
		return err
	}

	metrics.MergeConflicts.WithLabelValues(string(record.Kind)).Inc()
	r.log.Warn("merge plan went stale, re-planning",
		zap.String("survivor", record.Survivor),
		zap.String("reason", conflict.Reason),
	)

	fresh, _, err := r.scan(ctx, kind, nil)
	if err != nil {
		return err
	}
	for _, group := range fresh {
		if group.Canonical != stale.Canonical {
			continue
		}
		replanned, err := r.PlanMerge(group)
		if err != nil {
			return err
		}
		return r.ApplyMerge(ctx, replanned)
	}

	// The group dissolved between scans; nothing left to merge.
	return nil
}

func groupEvidence(group Group) int {
	total := 0
	for _, member := range group.Members {
		total += member.EvidenceCount
	}
	return total
}
