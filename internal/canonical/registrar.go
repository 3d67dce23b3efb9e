package canonical

import (
	"context"

	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/storage/models"
)

// NameWriter persists a canonical name vector for later nearest searches.
type NameWriter interface {
	InsertName(ctx context.Context, kind models.EntityKind, canonicalName string, vector []float32) error
}

// Registrar records newly minted canonical names so later lookups resolve
// them directly: the dictionary learns the exact form, and for embedding
// eligible kinds the vector index learns its embedding.
type Registrar struct {
	dict     *Dictionary
	embedder Embedder
	writer   NameWriter
	log      *zap.Logger
}

func NewRegistrar(dict *Dictionary, embedder Embedder, writer NameWriter, log *zap.Logger) *Registrar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registrar{dict: dict, embedder: embedder, writer: writer, log: log}
}

// Register is best-effort beyond the dictionary write: an embedding or index
// failure is logged and the name still resolves by exact match.
func (r *Registrar) Register(ctx context.Context, kind models.EntityKind, canonicalName string) {
	r.dict.Add(kind, canonicalName, canonicalName)

	if r.embedder == nil || r.writer == nil {
		return
	}
	switch kind {
	case models.KindTheory, models.KindMethod, models.KindSoftware:
	default:
		return
	}

	vector, err := r.embedder.Embed(ctx, canonicalName)
	if err != nil {
		r.log.Warn("failed to embed new canonical name", zap.String("name", canonicalName), zap.Error(err))
		return
	}
	if err := r.writer.InsertName(ctx, kind, canonicalName, vector); err != nil {
		r.log.Warn("failed to index new canonical name", zap.String("name", canonicalName), zap.Error(err))
	}
}
