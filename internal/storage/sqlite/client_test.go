package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theorygraph/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestUpsertPaper_InsertThenUpdate(t *testing.T) {
	c := newTestClient(t)

	t0 := time.Unix(1700000000, 0)
	t1 := time.Unix(1700003600, 0)

	require.NoError(t, c.UpsertPaper(&models.Paper{
		ID:                "p1",
		Title:             "Original Title",
		MentionCount:      3,
		RelationshipCount: 1,
		FirstIngestedAt:   t0,
		LastIngestedAt:    t0,
	}))

	got, err := c.GetPaper("p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Original Title", got.Title)
	assert.Equal(t, 3, got.MentionCount)
	assert.Equal(t, t0.Unix(), got.FirstIngestedAt.Unix())

	// Re-ingesting without a title must not erase the stored one, and the
	// first ingest timestamp stays put.
	require.NoError(t, c.UpsertPaper(&models.Paper{
		ID:                "p1",
		Title:             "",
		MentionCount:      5,
		RelationshipCount: 2,
		FirstIngestedAt:   t1,
		LastIngestedAt:    t1,
	}))

	got, err = c.GetPaper("p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Original Title", got.Title)
	assert.Equal(t, 5, got.MentionCount)
	assert.Equal(t, 2, got.RelationshipCount)
	assert.Equal(t, t0.Unix(), got.FirstIngestedAt.Unix())
	assert.Equal(t, t1.Unix(), got.LastIngestedAt.Unix())

	require.NoError(t, c.UpsertPaper(&models.Paper{
		ID:              "p1",
		Title:           "Revised Title",
		FirstIngestedAt: t1,
		LastIngestedAt:  t1,
	}))

	got, err = c.GetPaper("p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Revised Title", got.Title)
}

func TestGetPaper_UnknownIsNil(t *testing.T) {
	c := newTestClient(t)

	got, err := c.GetPaper("never-ingested")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListPapers_NewestFirstWithLimit(t *testing.T) {
	c := newTestClient(t)

	base := time.Unix(1700000000, 0)
	for i, id := range []string{"p1", "p2", "p3"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, c.UpsertPaper(&models.Paper{
			ID:              id,
			Title:           id,
			FirstIngestedAt: ts,
			LastIngestedAt:  ts,
		}))
	}

	papers, err := c.ListPapers(2)
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "p3", papers[0].ID)
	assert.Equal(t, "p2", papers[1].ID)
}

func TestQuarantineAndList(t *testing.T) {
	c := newTestClient(t)

	base := time.Unix(1700000000, 0)
	rows := []models.QuarantinedMention{
		{PaperID: "p1", Payload: `{"kind":"gadget"}`, Reason: "unknown kind", CreatedAt: base},
		{PaperID: "p1", Payload: `{"name":""}`, Reason: "empty name", CreatedAt: base.Add(time.Minute)},
		{PaperID: "p2", Payload: `{"kind":"theory"`, Reason: "malformed", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range rows {
		require.NoError(t, c.QuarantineMention(&rows[i]))
	}

	all, err := c.ListQuarantined("", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p2", all[0].PaperID)
	assert.Equal(t, "malformed", all[0].Reason)
	assert.NotZero(t, all[0].ID)

	onlyP1, err := c.ListQuarantined("p1", 10)
	require.NoError(t, err)
	require.Len(t, onlyP1, 2)
	assert.Equal(t, "empty name", onlyP1[0].Reason)
	assert.Equal(t, "unknown kind", onlyP1[1].Reason)

	limited, err := c.ListQuarantined("p1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "empty name", limited[0].Reason)
}

func TestQuarantine_DefaultsCreatedAt(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.QuarantineMention(&models.QuarantinedMention{
		PaperID: "p1",
		Payload: "{}",
		Reason:  "test",
	}))

	rows, err := c.ListQuarantined("p1", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.WithinDuration(t, time.Now(), rows[0].CreatedAt, time.Minute)
}

func TestRecordIngestRunAndList(t *testing.T) {
	c := newTestClient(t)

	base := time.Unix(1700000000, 0)
	runs := []models.IngestRun{
		{ID: "r1", PaperID: "p1", Accepted: 4, Quarantined: 1, EntitiesUpserted: 3,
			RelationshipsScored: 2, ConnectionsCreated: 1, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{ID: "r2", PaperID: "p1", Accepted: 6, StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second)},
		{ID: "r3", PaperID: "p2", Accepted: 2, StartedAt: base, FinishedAt: base.Add(2 * time.Second)},
	}
	for i := range runs {
		require.NoError(t, c.RecordIngestRun(&runs[i]))
	}

	forP1, err := c.ListIngestRuns("p1", 10)
	require.NoError(t, err)
	require.Len(t, forP1, 2)
	assert.Equal(t, "r2", forP1[0].ID)
	assert.Equal(t, "r1", forP1[1].ID)
	assert.Equal(t, 4, forP1[1].Accepted)
	assert.Equal(t, 1, forP1[1].Quarantined)
	assert.Equal(t, 3, forP1[1].EntitiesUpserted)
	assert.Equal(t, 2, forP1[1].RelationshipsScored)
	assert.Equal(t, 1, forP1[1].ConnectionsCreated)

	all, err := c.ListIngestRuns("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Run ids are unique; replaying one is a bug, not an upsert.
	assert.Error(t, c.RecordIngestRun(&runs[0]))
}

func TestAddSynonym_RepointsVariant(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.AddSynonym(&models.SynonymEntry{
		Kind:      models.KindTheory,
		Variant:   "sct",
		Canonical: "Social Cognitive Theory",
	}))

	entries, err := c.ListSynonyms()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.KindTheory, entries[0].Kind)
	assert.Equal(t, "sct", entries[0].Variant)
	assert.Equal(t, "Social Cognitive Theory", entries[0].Canonical)

	require.NoError(t, c.AddSynonym(&models.SynonymEntry{
		Kind:      models.KindTheory,
		Variant:   "sct",
		Canonical: "Social Cognition Theory",
	}))

	entries, err = c.ListSynonyms()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Social Cognition Theory", entries[0].Canonical)

	// The same variant under another kind is a separate row.
	require.NoError(t, c.AddSynonym(&models.SynonymEntry{
		Kind:      models.KindMethod,
		Variant:   "sct",
		Canonical: "Structured Coding Technique",
	}))

	entries, err = c.ListSynonyms()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestListSynonyms_SkipsUnknownKinds(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.AddSynonym(&models.SynonymEntry{
		Kind:      models.KindSoftware,
		Variant:   "spss statistics",
		Canonical: "SPSS",
	}))

	// A row written by an older build with a kind this build no longer knows.
	_, err := c.db.Exec(
		`INSERT INTO synonyms (kind, variant, canonical, created_at) VALUES (?, ?, ?, ?)`,
		"Gadget", "flux", "Flux Capacitor", time.Now().Unix(),
	)
	require.NoError(t, err)

	entries, err := c.ListSynonyms()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "spss statistics", entries[0].Variant)
}
