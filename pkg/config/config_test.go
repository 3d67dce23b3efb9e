package config

import "testing"

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Scoring.ConnectionThreshold != 0.3 {
		t.Errorf("Scoring.ConnectionThreshold = %v, want 0.3", cfg.Scoring.ConnectionThreshold)
	}
	if cfg.Scoring.SemanticMode != "lexical" {
		t.Errorf("Scoring.SemanticMode = %q, want lexical", cfg.Scoring.SemanticMode)
	}
	if cfg.Canonicalizer.ContainmentMaxLen != 55 {
		t.Errorf("Canonicalizer.ContainmentMaxLen = %d, want 55", cfg.Canonicalizer.ContainmentMaxLen)
	}
	if !cfg.Resolver.RequireConfirm {
		t.Error("Resolver.RequireConfirm = false, want true by default")
	}
	if cfg.Ingest.Workers != 3 {
		t.Errorf("Ingest.Workers = %d, want 3", cfg.Ingest.Workers)
	}
	if cfg.Milvus.Enabled {
		t.Error("Milvus.Enabled = true, want false by default")
	}
}
