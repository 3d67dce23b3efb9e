package canonical

import (
	"context"
	"errors"
	"testing"

	"github.com/theorygraph/backend/internal/storage/models"
)

type recordingWriter struct {
	names []string
	kinds []models.EntityKind
	err   error
}

func (w *recordingWriter) InsertName(ctx context.Context, kind models.EntityKind, canonicalName string, vector []float32) error {
	w.names = append(w.names, canonicalName)
	w.kinds = append(w.kinds, kind)
	return w.err
}

func TestRegistrar_RegisterUpdatesDictionaryAndIndex(t *testing.T) {
	dict := NewDictionary()
	writer := &recordingWriter{}
	reg := NewRegistrar(dict, fakeEmbedder{vec: []float32{0.5}}, writer, nil)

	reg.Register(context.Background(), models.KindTheory, "Effectuation Theory")

	if _, ok := dict.Lookup(models.KindTheory, "effectuation theory"); !ok {
		t.Error("dictionary did not learn the new canonical")
	}
	if len(writer.names) != 1 || writer.names[0] != "Effectuation Theory" {
		t.Errorf("index writes = %v, want the one new name", writer.names)
	}
}

func TestRegistrar_PhenomenaSkipTheIndex(t *testing.T) {
	dict := NewDictionary()
	writer := &recordingWriter{}
	reg := NewRegistrar(dict, fakeEmbedder{vec: []float32{0.5}}, writer, nil)

	reg.Register(context.Background(), models.KindPhenomenon, "Price Dispersion")
	reg.Register(context.Background(), models.KindVariable, "Firm Performance")

	if _, ok := dict.Lookup(models.KindPhenomenon, "price dispersion"); !ok {
		t.Error("dictionary did not learn the phenomenon")
	}
	if len(writer.names) != 0 {
		t.Errorf("index writes = %v, want none", writer.names)
	}
}

func TestRegistrar_IndexFailureStillRegisters(t *testing.T) {
	dict := NewDictionary()
	writer := &recordingWriter{err: errors.New("collection offline")}
	reg := NewRegistrar(dict, fakeEmbedder{vec: []float32{0.5}}, writer, nil)

	reg.Register(context.Background(), models.KindMethod, "Bayesian Network Analysis")

	if _, ok := dict.Lookup(models.KindMethod, "bayesian network analysis"); !ok {
		t.Error("dictionary write must not depend on the index")
	}
}

func TestRegistrar_WithoutEmbedderOnlyDictionary(t *testing.T) {
	dict := NewDictionary()
	reg := NewRegistrar(dict, nil, nil, nil)

	reg.Register(context.Background(), models.KindTheory, "Upper Echelons Theory")

	if _, ok := dict.Lookup(models.KindTheory, "upper echelons theory"); !ok {
		t.Error("dictionary did not learn the name")
	}
}
