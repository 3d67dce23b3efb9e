package milvus

import (
	"context"
	"fmt"
	"math"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/canonical"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
)

// Client indexes canonical entity names by embedding so near-synonym raw
// names can find their canonical form. Vectors are normalized on write and
// on query, which makes the inner-product scores cosine similarities.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(address, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewClient(
		context.Background(),
		client.Config{
			Address: address,
			APIKey:  apiKey,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("address", address),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Canonical entity name embeddings",
		Fields: []*entity.Field{
			{
				Name:       "name_key",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "kind",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "canonical_name",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.IP, 1024)
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// InsertName registers one canonical name. Upsert keyed by (kind, name)
// keeps re-registration from piling up duplicate rows.
func (m *Client) InsertName(ctx context.Context, kind models.EntityKind, canonicalName string, vector []float32) error {
	return m.InsertNames(ctx, kind, []string{canonicalName}, [][]float32{vector})
}

func (m *Client) InsertNames(ctx context.Context, kind models.EntityKind, names []string, vectors [][]float32) error {
	if len(names) == 0 {
		return nil
	}
	if len(names) != len(vectors) {
		return fmt.Errorf("name and vector counts differ: %d vs %d", len(names), len(vectors))
	}

	keys := make([]string, len(names))
	kinds := make([]string, len(names))
	embeddings := make([][]float32, len(names))
	for i, name := range names {
		keys[i] = models.EntityKey(kind, name)
		kinds[i] = string(kind)
		embeddings[i] = normalize(vectors[i])
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("name_key", keys),
		entity.NewColumnVarChar("kind", kinds),
		entity.NewColumnVarChar("canonical_name", names),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert names: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Debug("Names indexed", zap.String("kind", string(kind)), zap.Int("count", len(names)))

	return nil
}

// SearchNearest returns the closest canonical names of a kind with cosine
// scores, best first.
func (m *Client) SearchNearest(ctx context.Context, kind models.EntityKind, vector []float32, topK int) ([]canonical.NameHit, error) {
	expr := fmt.Sprintf(`kind == "%s"`, string(kind))

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"canonical_name"},
		[]entity.Vector{entity.FloatVector(normalize(vector))},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search names: %w", err)
	}

	hits := make([]canonical.NameHit, 0)
	for _, sr := range searchResult {
		nameCol := sr.Fields.GetColumn("canonical_name")
		for i := 0; i < sr.ResultCount; i++ {
			name, err := nameCol.Get(i)
			if err != nil {
				continue
			}
			hits = append(hits, canonical.NameHit{
				CanonicalName: name.(string),
				Score:         float64(sr.Scores[i]),
			})
		}
	}

	logger.Debug("Name search completed",
		zap.String("kind", string(kind)),
		zap.Int("topK", topK),
		zap.Int("hits", len(hits)),
	)

	return hits, nil
}

func normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = v / norm
	}
	return out
}
