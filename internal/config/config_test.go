package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_TOMLOverridesPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileTOML)
	require.NoError(t, os.WriteFile(path, []byte(`
index_directory = "idx"
file_patterns = ["*.py"]
max_file_size = 2048
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "idx", cfg.IndexDirectory)
	assert.Equal(t, []string{"*.py"}, cfg.FilePatterns)
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
	assert.Equal(t, Default().IgnorePatterns, cfg.IgnorePatterns)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileJSON)
	require.NoError(t, os.WriteFile(path, []byte(`{"embedding_model": "mxbai-embed-large", "ignore_patterns": []}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", cfg.EmbeddingModel)
	assert.Empty(t, cfg.IgnorePatterns)
	assert.Equal(t, ".coderag", cfg.IndexDirectory)
}

func TestLoad_MalformedFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileTOML)
	require.NoError(t, os.WriteFile(path, []byte("index_directory = [unterminated"), 0o644))

	cfg, err := Load(path)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Equal(t, Default(), cfg)
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{FileTOML, FileJSON} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := Default()
			want.ChatModel = "llama3.2"
			want.FilePatterns = []string{"*.go"}
			require.NoError(t, Save(want, path))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", Find(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileJSON), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join(dir, FileJSON), Find(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileTOML), []byte(""), 0o644))
	assert.Equal(t, filepath.Join(dir, FileTOML), Find(dir))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CODERAG_EMBEDDING_MODEL", "text-embedding-004")
	t.Setenv("CODERAG_EMBEDDING_PROVIDER", "gemini")
	t.Setenv("CODERAG_MAX_FILE_SIZE", "10")
	t.Setenv("CODERAG_EMBED_BATCH_SIZE", "not-a-number")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "text-embedding-004", cfg.EmbeddingModel)
	assert.Equal(t, "gemini", cfg.EmbeddingProvider)
	assert.Equal(t, int64(10), cfg.MaxFileSize)
	assert.Equal(t, 32, cfg.EmbedBatchSize)
	assert.Equal(t, "secret", cfg.GeminiAPIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxFileSize = 0
	cfg.EmbeddingProvider = "word2vec"
	cfg.EmbedConcurrency = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "max_file_size")
	assert.Contains(t, err.Error(), "word2vec")
	assert.Contains(t, err.Error(), "embed_concurrency")
}

func TestPaths(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/proj", ".coderag", DBFile), cfg.DBPath("/proj"))
	assert.Equal(t, filepath.Join("/proj", ".coderag", LedgerFile), cfg.LedgerPath("/proj"))

	cfg.IndexDirectory = "/var/idx"
	assert.Equal(t, "/var/idx", cfg.IndexDir("/proj"))
}
