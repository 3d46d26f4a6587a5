package config

import "testing"

func TestLoadIncludesHybridDefaults(t *testing.T) {
	t.Setenv("HYBRID_W_VEC", "")
	t.Setenv("HYBRID_W_BM25", "")
	t.Setenv("HYBRID_POOL_MULT", "")
	t.Setenv("MAX_PER_DOC_CHUNKS", "")
	t.Setenv("FALLBACK_MAX_DOCS", "")

	cfg := Load()
	if cfg.HybridWeightVector != 0.70 {
		t.Fatalf("expected default vector weight 0.70, got %v", cfg.HybridWeightVector)
	}
	if cfg.HybridWeightLexical != 0.30 {
		t.Fatalf("expected default lexical weight 0.30, got %v", cfg.HybridWeightLexical)
	}
	if cfg.HybridPoolMult != 8 {
		t.Fatalf("expected default pool multiplier 8, got %d", cfg.HybridPoolMult)
	}
	if cfg.MaxPerDocChunks != 3 {
		t.Fatalf("expected default per-doc chunk cap 3, got %d", cfg.MaxPerDocChunks)
	}
	if cfg.FallbackMaxDocs != 50 {
		t.Fatalf("expected default fallback doc bound 50, got %d", cfg.FallbackMaxDocs)
	}
}

func TestLoadParsesChunkingOverrides(t *testing.T) {
	t.Setenv("CHUNK_TARGET_CHARS", "600")
	t.Setenv("CHUNK_MAX_CHARS", "1000")
	t.Setenv("CHUNK_OVERLAP_CHARS", "80")
	t.Setenv("EMBED_CONCURRENCY", "4")

	cfg := Load()
	if cfg.ChunkTargetChars != 600 {
		t.Fatalf("expected target chars 600, got %d", cfg.ChunkTargetChars)
	}
	if cfg.ChunkMaxChars != 1000 {
		t.Fatalf("expected max chars 1000, got %d", cfg.ChunkMaxChars)
	}
	if cfg.ChunkOverlapChars != 80 {
		t.Fatalf("expected overlap chars 80, got %d", cfg.ChunkOverlapChars)
	}
	if cfg.EmbedConcurrency != 4 {
		t.Fatalf("expected embed concurrency 4, got %d", cfg.EmbedConcurrency)
	}
}

func TestLoadFallsBackOnUnparsableNumbers(t *testing.T) {
	t.Setenv("CHUNK_MAX_CHARS", "not-a-number")
	t.Setenv("HYBRID_W_VEC", "abc")

	cfg := Load()
	if cfg.ChunkMaxChars != 1400 {
		t.Fatalf("expected fallback max chars 1400, got %d", cfg.ChunkMaxChars)
	}
	if cfg.HybridWeightVector != 0.70 {
		t.Fatalf("expected fallback vector weight 0.70, got %v", cfg.HybridWeightVector)
	}
}
