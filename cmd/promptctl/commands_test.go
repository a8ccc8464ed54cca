package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

func TestWritePromptTable(t *testing.T) {
	var buf bytes.Buffer
	prompts := []domain.Prompt{
		{ID: "p-1", Title: "Reply", Status: domain.StatusActive, Version: "v1.0.2", IsFavorite: true},
		{ID: "local_x", Title: strings.Repeat("a", 60), Status: domain.StatusDraft, Version: "v1.0.0"},
	}
	err := writePromptTable(&buf, prompts, func(id string) bool { return id == "local_x" })
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Reply")
	assert.Contains(t, lines[1], "*")
	assert.True(t, strings.HasSuffix(lines[2], "pending"))
	assert.Contains(t, lines[2], "…")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "two lines", truncate("two\nlines", 10))
	assert.Equal(t, "abc…", truncate("abcdefgh", 4))
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "export", "import", "sync"} {
		assert.True(t, names[want], want)
	}

	userID = ""
	assert.EqualError(t, syncCmd.RunE(syncCmd, nil), "sync needs --uid")
}
