package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		title TEXT,
		mention_count INTEGER DEFAULT 0,
		relationship_count INTEGER DEFAULT 0,
		first_ingested_at INTEGER NOT NULL,
		last_ingested_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_papers_last_ingested ON papers(last_ingested_at);

	CREATE TABLE IF NOT EXISTS quarantined_mentions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		paper_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quarantine_paper ON quarantined_mentions(paper_id);
	CREATE INDEX IF NOT EXISTS idx_quarantine_created ON quarantined_mentions(created_at);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		paper_id TEXT NOT NULL,
		accepted INTEGER DEFAULT 0,
		quarantined INTEGER DEFAULT 0,
		entities_upserted INTEGER DEFAULT 0,
		relationships_scored INTEGER DEFAULT 0,
		connections_created INTEGER DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_paper ON ingest_runs(paper_id);
	CREATE INDEX IF NOT EXISTS idx_runs_finished ON ingest_runs(finished_at);

	CREATE TABLE IF NOT EXISTS synonyms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		variant TEXT NOT NULL,
		canonical TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(kind, variant)
	);
	CREATE INDEX IF NOT EXISTS idx_synonyms_kind ON synonyms(kind);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertPaper(paper *models.Paper) error {
	query := `
		INSERT INTO papers (id, title, mention_count, relationship_count, first_ingested_at, last_ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE title END,
			mention_count = excluded.mention_count,
			relationship_count = excluded.relationship_count,
			last_ingested_at = excluded.last_ingested_at
	`

	_, err := c.db.Exec(
		query,
		paper.ID,
		paper.Title,
		paper.MentionCount,
		paper.RelationshipCount,
		paper.FirstIngestedAt.Unix(),
		paper.LastIngestedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert paper: %w", err)
	}

	logger.Debug("Paper upserted", zap.String("paper_id", paper.ID))
	return nil
}

// GetPaper returns nil without error when the paper is unknown.
func (c *Client) GetPaper(id string) (*models.Paper, error) {
	query := `SELECT id, title, mention_count, relationship_count, first_ingested_at, last_ingested_at FROM papers WHERE id = ?`

	var paper models.Paper
	var firstIngested, lastIngested int64

	err := c.db.QueryRow(query, id).Scan(
		&paper.ID,
		&paper.Title,
		&paper.MentionCount,
		&paper.RelationshipCount,
		&firstIngested,
		&lastIngested,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	paper.FirstIngestedAt = time.Unix(firstIngested, 0)
	paper.LastIngestedAt = time.Unix(lastIngested, 0)

	return &paper, nil
}

func (c *Client) ListPapers(limit int) ([]models.Paper, error) {
	query := `
		SELECT id, title, mention_count, relationship_count, first_ingested_at, last_ingested_at
		FROM papers
		ORDER BY last_ingested_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	var papers []models.Paper
	for rows.Next() {
		var p models.Paper
		var firstIngested, lastIngested int64

		err := rows.Scan(&p.ID, &p.Title, &p.MentionCount, &p.RelationshipCount, &firstIngested, &lastIngested)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		p.FirstIngestedAt = time.Unix(firstIngested, 0)
		p.LastIngestedAt = time.Unix(lastIngested, 0)
		papers = append(papers, p)
	}

	return papers, rows.Err()
}

func (c *Client) QuarantineMention(mention *models.QuarantinedMention) error {
	query := `INSERT INTO quarantined_mentions (paper_id, payload, reason, created_at) VALUES (?, ?, ?, ?)`

	createdAt := mention.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.Exec(query, mention.PaperID, mention.Payload, mention.Reason, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to quarantine mention: %w", err)
	}

	logger.Debug("Mention quarantined",
		zap.String("paper_id", mention.PaperID),
		zap.String("reason", mention.Reason),
	)

	return nil
}

// ListQuarantined returns quarantined payloads, newest first. An empty
// paperID means all papers.
func (c *Client) ListQuarantined(paperID string, limit int) ([]models.QuarantinedMention, error) {
	query := `
		SELECT id, paper_id, payload, reason, created_at
		FROM quarantined_mentions
		WHERE (? = '' OR paper_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, paperID, paperID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantined mentions: %w", err)
	}
	defer rows.Close()

	var mentions []models.QuarantinedMention
	for rows.Next() {
		var m models.QuarantinedMention
		var createdAt int64

		err := rows.Scan(&m.ID, &m.PaperID, &m.Payload, &m.Reason, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.CreatedAt = time.Unix(createdAt, 0)
		mentions = append(mentions, m)
	}

	return mentions, rows.Err()
}

func (c *Client) RecordIngestRun(run *models.IngestRun) error {
	query := `
		INSERT INTO ingest_runs (id, paper_id, accepted, quarantined, entities_upserted,
			relationships_scored, connections_created, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		run.ID,
		run.PaperID,
		run.Accepted,
		run.Quarantined,
		run.EntitiesUpserted,
		run.RelationshipsScored,
		run.ConnectionsCreated,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to record ingest run: %w", err)
	}

	logger.Info("Ingest run recorded",
		zap.String("run_id", run.ID),
		zap.String("paper_id", run.PaperID),
		zap.Int("accepted", run.Accepted),
		zap.Int("quarantined", run.Quarantined),
		zap.Int("connections_created", run.ConnectionsCreated),
	)

	return nil
}

func (c *Client) ListIngestRuns(paperID string, limit int) ([]models.IngestRun, error) {
	query := `
		SELECT id, paper_id, accepted, quarantined, entities_upserted, relationships_scored,
			connections_created, started_at, finished_at
		FROM ingest_runs
		WHERE (? = '' OR paper_id = ?)
		ORDER BY finished_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, paperID, paperID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []models.IngestRun
	for rows.Next() {
		var r models.IngestRun
		var startedAt, finishedAt int64

		err := rows.Scan(&r.ID, &r.PaperID, &r.Accepted, &r.Quarantined, &r.EntitiesUpserted,
			&r.RelationshipsScored, &r.ConnectionsCreated, &startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.StartedAt = time.Unix(startedAt, 0)
		r.FinishedAt = time.Unix(finishedAt, 0)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// AddSynonym stores a dictionary entry so it survives restarts. Re-adding a
// variant repoints it at the new canonical name.
func (c *Client) AddSynonym(entry *models.SynonymEntry) error {
	query := `
		INSERT INTO synonyms (kind, variant, canonical, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, variant) DO UPDATE SET
			canonical = excluded.canonical
	`

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.Exec(query, string(entry.Kind), entry.Variant, entry.Canonical, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to add synonym: %w", err)
	}

	logger.Info("Synonym stored",
		zap.String("kind", string(entry.Kind)),
		zap.String("variant", entry.Variant),
		zap.String("canonical", entry.Canonical),
	)

	return nil
}

func (c *Client) ListSynonyms() ([]models.SynonymEntry, error) {
	query := `SELECT kind, variant, canonical, created_at FROM synonyms ORDER BY kind, variant`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list synonyms: %w", err)
	}
	defer rows.Close()

	var entries []models.SynonymEntry
	for rows.Next() {
		var e models.SynonymEntry
		var kind string
		var createdAt int64

		err := rows.Scan(&kind, &e.Variant, &e.Canonical, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		parsed, ok := models.ParseEntityKind(kind)
		if !ok {
			logger.Warn("Skipping synonym with unknown kind", zap.String("kind", kind), zap.String("variant", e.Variant))
			continue
		}
		e.Kind = parsed
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
