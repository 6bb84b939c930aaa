package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/cachestore"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus/corpustest"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/config"
)

const testConfig = `
cache:
  backend: file
  dataDir: %s
vocabulary:
  prefix: cli
experts:
  numBest: 3
  models:
    - kind: tfidf
      name: tfidf
search:
  defaultLimit: 3
`

// builtConfig writes a config file and builds the fixture corpus into its
// cache directory.
func builtConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testConfig, filepath.Join(dir, "cache"))), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	store, err := cachestore.NewFileStore(cfg.Cache.DataDir)
	require.NoError(t, err)
	_, err = pipeline.Build(context.Background(), cfg, pipeline.Options{Source: corpustest.Source(), Store: store})
	require.NoError(t, err)
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSchemaPrintsDDL(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Equal(t, corpus.Schema, out)
}

func TestVocabFromCache(t *testing.T) {
	path := builtConfig(t)
	out, err := execute(t, "vocab", "--config", path, "--show", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `prefix:      "cli"`)
	assert.Contains(t, out, "categories:  2 (unknown id 3)")
	assert.Contains(t, out, "built from:  4 questions, 4 answers")
	assert.Contains(t, out, "how")
}

func TestEncode(t *testing.T) {
	path := builtConfig(t)
	out, err := execute(t, "encode", "--config", path, "--length", "4", "Best", "pizza", "xyzzy")
	require.NoError(t, err)
	assert.Contains(t, out, `"text": "Best pizza xyzzy"`)
	assert.Contains(t, out, `"UNKNOWN_TOKEN"`)
	assert.Contains(t, out, `"sequence"`)
}

func TestRankPrintsLowestTotalsFirst(t *testing.T) {
	path := builtConfig(t)
	out, err := execute(t, "rank", "--config", path, "-n", "2", "pizza")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "experts: tfidf  k=3")
	assert.Contains(t, lines[1], "doc 12")
	assert.Contains(t, lines[2], "doc 10")
}

func TestRankWithoutCacheFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testConfig, filepath.Join(dir, "cache"))), 0o644))
	_, err := execute(t, "rank", "--config", path, "pizza")
	assert.Error(t, err)
}
