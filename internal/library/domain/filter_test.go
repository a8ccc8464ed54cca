package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Normalize(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		f, err := Filter{}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, StatusFilterAll, f.Status)
		assert.Equal(t, FolderAll, f.Folder)
		assert.Equal(t, SortUpdatedAt, f.Sort)
		assert.Equal(t, SortDesc, f.Order)
	})

	t.Run("archived folder overrides status", func(t *testing.T) {
		f, err := Filter{Status: StatusFilterActive, Folder: FolderArchived}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, StatusFilterArchived, f.Status)
	})

	t.Run("keeps the query as typed", func(t *testing.T) {
		f, err := Filter{Search: "   "}.Normalize()
		require.NoError(t, err)
		assert.Empty(t, f.Search)

		f, err = Filter{Search: " hello"}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, " hello", f.Search)
		assert.False(t, f.MatchSearch(Prompt{Title: "xhello"}))
		assert.True(t, f.MatchSearch(Prompt{Title: "say hello"}))
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := Filter{Status: "deleted"}.Normalize()
		assert.ErrorIs(t, err, ErrInvalidFilter)

		_, err = Filter{Sort: "author"}.Normalize()
		assert.ErrorIs(t, err, ErrInvalidFilter)

		_, err = Filter{Order: "sideways"}.Normalize()
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestFilter_MatchSearch(t *testing.T) {
	p := Prompt{
		Title:       "Summarize Email",
		Description: "short digest",
		Content:     "Summarize the following",
		Category:    "Writing",
		Tags:        []string{"Productivity", "mail"},
	}

	for _, q := range []string{"email", "DIGEST", "following", "writ", "productiv", "MAIL"} {
		assert.True(t, Filter{Search: q}.MatchSearch(p), q)
	}
	assert.False(t, Filter{Search: "translate"}.MatchSearch(p))
	assert.True(t, Filter{}.MatchSearch(p))
}

func TestFilter_MatchStatus(t *testing.T) {
	archived := Prompt{Status: StatusArchived}
	draft := Prompt{Status: StatusDraft}

	assert.False(t, Filter{Status: StatusFilterAll}.MatchStatus(archived))
	assert.True(t, Filter{Status: StatusFilterAll}.MatchStatus(draft))
	assert.True(t, Filter{Status: StatusFilterArchived}.MatchStatus(archived))
	assert.False(t, Filter{Status: StatusFilterActive}.MatchStatus(draft))
}

func TestSortPrompts(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	prompts := []Prompt{
		{ID: "a", Title: "beta", UpdatedAt: base, RunCount: 3},
		{ID: "b", Title: "Alpha", UpdatedAt: base.Add(time.Hour), RunCount: 1},
		{ID: "c", Title: "gamma", UpdatedAt: base.Add(-time.Hour), RunCount: 2},
	}

	t.Run("title ascending is case-insensitive", func(t *testing.T) {
		SortPrompts(prompts, SortTitle, SortAsc)
		assert.Equal(t, []string{"b", "a", "c"}, ids(prompts))
	})

	t.Run("updated_at descending", func(t *testing.T) {
		SortPrompts(prompts, SortUpdatedAt, SortDesc)
		assert.Equal(t, []string{"b", "a", "c"}, ids(prompts))
	})

	t.Run("numeric field", func(t *testing.T) {
		SortPrompts(prompts, SortRunCount, SortAsc)
		assert.Equal(t, []string{"b", "c", "a"}, ids(prompts))
	})

	t.Run("instants compare across zones", func(t *testing.T) {
		east := time.FixedZone("east", 3*3600)
		ps := []Prompt{
			{ID: "x", UpdatedAt: base.In(east)},
			{ID: "y", UpdatedAt: base.Add(time.Minute)},
		}
		SortPrompts(ps, SortUpdatedAt, SortAsc)
		assert.Equal(t, []string{"x", "y"}, ids(ps))
	})
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeTags([]string{" a", "", "b", "a "}))
}

func ids(ps []Prompt) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
