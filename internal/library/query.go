package library

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// ListPrompts returns a fresh, ordered slice of prompts matching f. It never
// mutates cache state.
func (c *Cache) ListPrompts(f domain.Filter) ([]domain.Prompt, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	folder := f.Folder
	if folder != domain.FolderAll && folder != domain.FolderFavorites && folder != domain.FolderArchived {
		folder = c.resolveLocked(folder)
	}
	out := make([]domain.Prompt, 0, len(c.prompts))
	for id, p := range c.prompts {
		if !f.MatchStatus(p) {
			continue
		}
		switch folder {
		case domain.FolderAll, domain.FolderArchived:
		case domain.FolderFavorites:
			if _, ok := c.favorites[id]; !ok {
				continue
			}
		default:
			if !p.InFolder(folder) {
				continue
			}
		}
		if !f.MatchSearch(p) {
			continue
		}
		out = append(out, p.Clone())
	}
	c.mu.RUnlock()

	domain.SortPrompts(out, f.Sort, f.Order)
	return out, nil
}

func (c *Cache) GetPrompt(id string) (domain.Prompt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prompts[c.resolveLocked(id)]
	if !ok {
		return domain.Prompt{}, false
	}
	return p.Clone(), true
}

// Favorites returns the ids in the favorites set, sorted.
func (c *Cache) Favorites() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.favoriteIDsLocked()
}

func (c *Cache) Preferences() Preferences {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prefs
}

// SetView persists the preferred listing layout.
func (c *Cache) SetView(ctx context.Context, view string) error {
	view = strings.TrimSpace(view)
	if view == "" {
		return fmt.Errorf("%w: view is required", domain.ErrValidation)
	}
	c.mu.Lock()
	c.prefs.View = view
	c.persistLocked(ctx, KeyView, KeySort)
	c.mu.Unlock()
	return nil
}

// SetSort persists the preferred sort field and order.
func (c *Cache) SetSort(ctx context.Context, field domain.SortField, order domain.SortOrder) error {
	if !field.Valid() {
		return fmt.Errorf("%w: sort field %q", domain.ErrInvalidFilter, field)
	}
	if order != domain.SortAsc && order != domain.SortDesc {
		return fmt.Errorf("%w: sort order %q", domain.ErrInvalidFilter, order)
	}
	c.mu.Lock()
	c.prefs.Sort = field
	c.prefs.Order = order
	c.persistLocked(ctx, KeySort)
	c.mu.Unlock()
	return nil
}

func (c *Cache) sortedPromptsLocked() []domain.Prompt {
	out := make([]domain.Prompt, 0, len(c.prompts))
	for _, p := range c.prompts {
		out = append(out, p.Clone())
	}
	domain.SortPrompts(out, domain.SortUpdatedAt, domain.SortDesc)
	return out
}

func (c *Cache) sortedFoldersLocked() []domain.Folder {
	out := make([]domain.Folder, 0, len(c.folders))
	for _, f := range c.folders {
		out = append(out, f.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Folder) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (c *Cache) favoriteIDsLocked() []string {
	out := make([]string, 0, len(c.favorites))
	for id := range c.favorites {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func sortVersionsDesc(vs []domain.PromptVersion) {
	slices.SortStableFunc(vs, func(a, b domain.PromptVersion) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return domain.CompareVersions(b.Version, a.Version)
	})
}
