package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults_DeploymentContract(t *testing.T) {
	cfg := validConfig()

	if cfg.API.Port != 8000 {
		t.Errorf("expected API port 8000, got %d", cfg.API.Port)
	}
	if cfg.App.Port != 8501 {
		t.Errorf("expected app port 8501, got %d", cfg.App.Port)
	}
	if cfg.OpenSearch.Endpoint != "http://opensearch:9200" {
		t.Errorf("unexpected opensearch endpoint: %q", cfg.OpenSearch.Endpoint)
	}
	if cfg.OpenSearch.Index != "webinar_pdf_index" {
		t.Errorf("unexpected index name: %q", cfg.OpenSearch.Index)
	}
	if cfg.App.APIURL != "http://api:8000" {
		t.Errorf("unexpected api_url: %q", cfg.App.APIURL)
	}
	if cfg.App.OllamaURL != "http://ollama:11434" {
		t.Errorf("unexpected ollama_url: %q", cfg.App.OllamaURL)
	}
	if cfg.App.Model != "qwen2:0.5b" {
		t.Errorf("unexpected model: %q", cfg.App.Model)
	}
}

func TestApplyDefaults_EnvOverrides(t *testing.T) {
	t.Setenv("OPENSEARCH_ENDPOINT", "http://search.internal:9200")
	t.Setenv("OPENSEARCH_INDEX", "pdpa_docs")
	t.Setenv("MODEL_NAME", "qwen2:7b")

	cfg := validConfig()

	if cfg.OpenSearch.Endpoint != "http://search.internal:9200" {
		t.Errorf("env endpoint not applied: %q", cfg.OpenSearch.Endpoint)
	}
	if cfg.OpenSearch.Index != "pdpa_docs" {
		t.Errorf("env index not applied: %q", cfg.OpenSearch.Index)
	}
	if cfg.App.Model != "qwen2:7b" {
		t.Errorf("env model not applied: %q", cfg.App.Model)
	}
}

func TestApplyDefaults_ChunkingAndSearch(t *testing.T) {
	cfg := validConfig()

	if cfg.Ingest.ChunkSize != 512 || cfg.Ingest.ChunkOverlap != 128 {
		t.Errorf("expected chunking 512/128, got %d/%d",
			cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Search.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Search.TopK)
	}
	if cfg.OpenSearch.VectorDim != 1024 {
		t.Errorf("expected vector dim 1024, got %d", cfg.OpenSearch.VectorDim)
	}
}

func TestValidate_OverlapMustBeSmallerThanChunkSize(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.ChunkSize = 100
	cfg.Ingest.ChunkOverlap = 100

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
	if !strings.Contains(err.Error(), "chunk_overlap") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidate_EndpointMustBeHTTP(t *testing.T) {
	cfg := validConfig()
	cfg.OpenSearch.Endpoint = "opensearch:9200"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for endpoint without scheme")
	}
}

func TestValidate_TopKBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Search.TopK = 50
	cfg.Search.MaxTopK = 20

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for top_k > max_top_k")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LEXRAG_TEST_VAR", "hello")

	got := string(expandEnvVars([]byte("a: ${LEXRAG_TEST_VAR}\nb: ${LEXRAG_UNSET:-fallback}\n")))
	want := "a: hello\nb: fallback\n"
	if got != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", got, want)
	}
}
