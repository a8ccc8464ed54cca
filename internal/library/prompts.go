package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

const maxRating = 5

// CreatePrompt validates input, makes the prompt visible immediately and
// queues the remote insert.
func (c *Cache) CreatePrompt(ctx context.Context, in domain.PromptInput) (domain.Prompt, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Prompt{}, c.validationError(opCreate, entityPrompt, "title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return domain.Prompt{}, c.validationError(opCreate, entityPrompt, "content is required")
	}
	status := in.Status
	if status == "" {
		status = domain.StatusDraft
	}
	if !status.Valid() {
		return domain.Prompt{}, c.validationError(opCreate, entityPrompt, "unknown status %q", status)
	}
	version := domain.InitialVersion
	if in.Version != "" {
		version = domain.NormalizeVersion(in.Version)
	}

	c.mu.Lock()
	folderID, err := c.checkFolderRefLocked(in.FolderID)
	if err != nil {
		c.mu.Unlock()
		return domain.Prompt{}, c.validationError(opCreate, entityPrompt, "%w", err)
	}

	now := c.clock().UTC()
	p := domain.Prompt{
		ID:          newLocalID(),
		UserID:      c.userIDLocked(),
		Title:       title,
		Content:     in.Content,
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Tags:        domain.NormalizeTags(in.Tags),
		Model:       strings.TrimSpace(in.Model),
		Status:      status,
		FolderID:    folderID,
		Version:     version,
		IsFavorite:  in.IsFavorite,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.prompts[p.ID] = p
	if p.IsFavorite {
		c.favorites[p.ID] = struct{}{}
	}
	rev := c.markPendingLocked(entityPrompt, p.ID, opCreate)
	c.persistLocked(ctx, KeyPrompts, KeyFavorites, KeyPending)
	c.enqueueLocked(job{kind: jobPrompt, op: opCreate, id: p.ID, rev: rev, prompt: p.Clone()})
	c.mu.Unlock()

	c.notify(LevelSuccess, opCreate, entityPrompt, p.ID, fmt.Sprintf("Prompt %q created", p.Title))
	return p.Clone(), nil
}

// UpdatePrompt applies a partial update. A changed content bumps the version
// and records the previous content as a PromptVersion.
func (c *Cache) UpdatePrompt(ctx context.Context, id string, patch domain.PromptPatch) (domain.Prompt, error) {
	c.mu.Lock()
	id = c.resolveLocked(id)
	current, ok := c.prompts[id]
	if !ok {
		c.mu.Unlock()
		return domain.Prompt{}, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, id)
	}

	next, err := c.applyPatchLocked(current, patch)
	if err != nil {
		c.mu.Unlock()
		return domain.Prompt{}, c.validationError(opUpdate, entityPrompt, "%w", err)
	}

	now := c.clock().UTC()
	next.UpdatedAt = now

	var snapshot *domain.PromptVersion
	if next.Content != current.Content {
		next.Version = domain.NextVersion(current.Version)
		snapshot = &domain.PromptVersion{
			ID:         newLocalID(),
			PromptID:   id,
			Version:    current.Version,
			Content:    current.Content,
			ChangeNote: strings.TrimSpace(patch.ChangeNote),
			CreatedAt:  now,
		}
	}

	c.prompts[id] = next
	c.syncFavoriteLocked(next)
	rev := c.markPendingLocked(entityPrompt, id, opUpdate)
	keys := []string{KeyPrompts, KeyFavorites, KeyPending}
	if snapshot != nil {
		c.versions[id] = append(c.versions[id], *snapshot)
		c.markPendingLocked(entityVersion, snapshot.ID, opCreate)
		keys = append(keys, KeyVersions)
	}
	c.persistLocked(ctx, keys...)
	c.enqueueLocked(job{kind: jobPrompt, op: opUpdate, id: id, rev: rev, prompt: next.Clone()})
	if snapshot != nil {
		c.enqueueLocked(job{kind: jobVersion, op: opCreate, id: snapshot.ID, version: *snapshot})
	}
	c.mu.Unlock()

	c.notify(LevelSuccess, opUpdate, entityPrompt, id, fmt.Sprintf("Prompt %q saved", next.Title))
	return next.Clone(), nil
}

func (c *Cache) applyPatchLocked(p domain.Prompt, patch domain.PromptPatch) (domain.Prompt, error) {
	next := p.Clone()
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		next.Content = *patch.Content
	}
	if next.Title == "" {
		return p, fmt.Errorf("title is required")
	}
	if strings.TrimSpace(next.Content) == "" {
		return p, fmt.Errorf("content is required")
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Category != nil {
		next.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Tags != nil {
		next.Tags = domain.NormalizeTags(*patch.Tags)
	}
	if patch.Model != nil {
		next.Model = strings.TrimSpace(*patch.Model)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return p, fmt.Errorf("unknown status %q", *patch.Status)
		}
		next.Status = *patch.Status
	}
	if patch.ClearFolder {
		next.FolderID = nil
	} else if patch.FolderID != nil {
		ref, err := c.checkFolderRefLocked(patch.FolderID)
		if err != nil {
			return p, err
		}
		next.FolderID = ref
	}
	if patch.Rating != nil {
		r := *patch.Rating
		if r < 0 {
			r = 0
		}
		if r > maxRating {
			r = maxRating
		}
		next.Rating = r
	}
	return next, nil
}

// checkFolderRefLocked resolves an optional folder reference. An empty id
// means no folder.
func (c *Cache) checkFolderRefLocked(ref *string) (*string, error) {
	if ref == nil || strings.TrimSpace(*ref) == "" {
		return nil, nil
	}
	id := c.resolveLocked(strings.TrimSpace(*ref))
	if _, ok := c.folders[id]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFolderNotFound, id)
	}
	return &id, nil
}

// DeletePrompt removes the prompt locally, drops it from favorites and queues
// the remote delete.
func (c *Cache) DeletePrompt(ctx context.Context, id string) error {
	c.mu.Lock()
	id = c.resolveLocked(id)
	p, ok := c.prompts[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrPromptNotFound, id)
	}

	delete(c.prompts, id)
	delete(c.favorites, id)
	for _, v := range c.versions[id] {
		delete(c.pending, entityKey(entityVersion, v.ID))
	}
	delete(c.versions, id)
	rev := c.markPendingLocked(entityPrompt, id, opDelete)
	c.persistLocked(ctx, KeyPrompts, KeyFavorites, KeyVersions, KeyPending)
	c.enqueueLocked(job{kind: jobPrompt, op: opDelete, id: id, rev: rev})
	c.mu.Unlock()

	c.notify(LevelSuccess, opDelete, entityPrompt, id, fmt.Sprintf("Prompt %q deleted", p.Title))
	return nil
}

// ToggleFavorite flips the favorite flag and favorites-set membership together.
func (c *Cache) ToggleFavorite(ctx context.Context, id string) (domain.Prompt, error) {
	return c.touch(ctx, id, "favorite", func(p *domain.Prompt) {
		p.IsFavorite = !p.IsFavorite
	})
}

// RecordRun counts one execution of the prompt.
func (c *Cache) RecordRun(ctx context.Context, id string) (domain.Prompt, error) {
	return c.touch(ctx, id, "run", func(p *domain.Prompt) { p.RunCount++ })
}

// RecordView counts one view of the prompt.
func (c *Cache) RecordView(ctx context.Context, id string) (domain.Prompt, error) {
	return c.touch(ctx, id, "view", func(p *domain.Prompt) { p.ViewCount++ })
}

// touch applies a metadata-only change. It goes through the normal update
// sync path but leaves updated_at and the version alone.
func (c *Cache) touch(ctx context.Context, id, op string, fn func(*domain.Prompt)) (domain.Prompt, error) {
	c.mu.Lock()
	id = c.resolveLocked(id)
	p, ok := c.prompts[id]
	if !ok {
		c.mu.Unlock()
		return domain.Prompt{}, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, id)
	}
	p = p.Clone()
	fn(&p)
	if p.RunCount < 0 {
		p.RunCount = 0
	}
	if p.ViewCount < 0 {
		p.ViewCount = 0
	}
	c.prompts[id] = p
	c.syncFavoriteLocked(p)
	rev := c.markPendingLocked(entityPrompt, id, opUpdate)
	c.persistLocked(ctx, KeyPrompts, KeyFavorites, KeyPending)
	c.enqueueLocked(job{kind: jobPrompt, op: opUpdate, id: id, rev: rev, prompt: p.Clone()})
	c.mu.Unlock()

	msg := fmt.Sprintf("Prompt %q updated", p.Title)
	if op == "favorite" {
		if p.IsFavorite {
			msg = fmt.Sprintf("Added %q to favorites", p.Title)
		} else {
			msg = fmt.Sprintf("Removed %q from favorites", p.Title)
		}
	}
	c.notify(LevelSuccess, op, entityPrompt, id, msg)
	return p.Clone(), nil
}

func (c *Cache) syncFavoriteLocked(p domain.Prompt) {
	if p.IsFavorite {
		c.favorites[p.ID] = struct{}{}
	} else {
		delete(c.favorites, p.ID)
	}
}

// DuplicatePrompt creates a draft copy of an existing prompt.
func (c *Cache) DuplicatePrompt(ctx context.Context, id string) (domain.Prompt, error) {
	src, ok := c.GetPrompt(id)
	if !ok {
		return domain.Prompt{}, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, id)
	}
	return c.CreatePrompt(ctx, domain.PromptInput{
		Title:       src.Title + " (Copy)",
		Content:     src.Content,
		Description: src.Description,
		Category:    src.Category,
		Tags:        src.Tags,
		Model:       src.Model,
		Status:      domain.StatusDraft,
		FolderID:    src.FolderID,
	})
}

// Versions returns the prompt's history, newest first. It asks the remote
// store when signed in and falls back to the local history otherwise.
func (c *Cache) Versions(ctx context.Context, id string) ([]domain.PromptVersion, error) {
	c.mu.RLock()
	id = c.resolveLocked(id)
	if _, ok := c.prompts[id]; !ok {
		c.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, id)
	}
	local := append([]domain.PromptVersion(nil), c.versions[id]...)
	uid := c.userIDLocked()
	c.mu.RUnlock()

	if uid != "" && c.remote != nil && !IsLocalID(id) {
		remote, err := c.remote.ListPromptVersions(ctx, uid, id)
		if err == nil {
			local = mergeVersions(remote, local)
		} else {
			c.notify(LevelWarning, "versions", entityPrompt, id, "Showing locally saved history while offline")
		}
	}

	sortVersionsDesc(local)
	return local, nil
}

// mergeVersions adds local snapshots that the remote store has not seen yet.
func mergeVersions(remote, local []domain.PromptVersion) []domain.PromptVersion {
	out := append([]domain.PromptVersion(nil), remote...)
	seen := make(map[string]struct{}, len(remote))
	for _, v := range remote {
		seen[v.Version+"\x00"+v.Content] = struct{}{}
	}
	for _, v := range local {
		if _, ok := seen[v.Version+"\x00"+v.Content]; !ok {
			out = append(out, v)
		}
	}
	return out
}
