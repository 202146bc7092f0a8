package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxloop/internal/history"
	"voxloop/internal/turn"
)

func TestShowHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := history.Open(path)
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Record(context.Background(), turn.Record{
		ID: "a", StartedAt: at, Transcript: "search for cats",
		Reply: "search_web: value: cats", Intent: "search_web",
	}))
	require.NoError(t, db.Record(context.Background(), turn.Record{
		ID: "b", StartedAt: at.Add(time.Second), Failure: "no speech",
	}))
	require.NoError(t, db.Close())

	var out bytes.Buffer
	require.NoError(t, showHistory(&out, "", path, 10))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "failed: no speech")
	assert.Contains(t, lines[1], `"search for cats" -> search_web: value: cats`)
	assert.Contains(t, lines[1], "search_web")

	out.Reset()
	require.NoError(t, showHistory(&out, "", path, 1))
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestShowHistoryFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	db, err := history.Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := filepath.Join(dir, "voxloop.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("history: "+path+"\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, showHistory(&out, cfg, "", 5))
	assert.Equal(t, "no turns recorded\n", out.String())
}

func TestShowHistoryErrors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, showHistory(&out, "", "", 5), "no history journal configured")
	assert.ErrorIs(t, showHistory(&out, "", filepath.Join(t.TempDir(), "missing.db"), 5), os.ErrNotExist)
}
