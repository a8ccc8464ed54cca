package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

func (c *Cache) CreateFolder(ctx context.Context, in domain.FolderInput) (domain.Folder, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Folder{}, c.validationError(opCreate, entityFolder, "name is required")
	}

	c.mu.Lock()
	parentID, err := c.checkFolderRefLocked(in.ParentID)
	if err == nil && parentID != nil && c.folders[*parentID].ParentID != nil {
		err = domain.ErrFolderDepth
	}
	if err != nil {
		c.mu.Unlock()
		return domain.Folder{}, c.validationError(opCreate, entityFolder, "%w", err)
	}

	now := c.clock().UTC()
	f := domain.Folder{
		ID:        newLocalID(),
		UserID:    c.userIDLocked(),
		Name:      name,
		ParentID:  parentID,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.folders[f.ID] = f
	rev := c.markPendingLocked(entityFolder, f.ID, opCreate)
	c.persistLocked(ctx, KeyFolders, KeyPending)
	c.enqueueLocked(job{kind: jobFolder, op: opCreate, id: f.ID, rev: rev, folder: f.Clone()})
	c.mu.Unlock()

	c.notify(LevelSuccess, opCreate, entityFolder, f.ID, fmt.Sprintf("Folder %q created", f.Name))
	return f.Clone(), nil
}

// UpdateFolder renames, re-parents or restyles a folder. A folder may never
// become its own ancestor, and only top-level folders take children.
func (c *Cache) UpdateFolder(ctx context.Context, id string, patch domain.FolderPatch) (domain.Folder, error) {
	c.mu.Lock()
	id = c.resolveLocked(id)
	f, ok := c.folders[id]
	if !ok {
		c.mu.Unlock()
		return domain.Folder{}, fmt.Errorf("%w: %s", domain.ErrFolderNotFound, id)
	}

	next := f.Clone()
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
		if next.Name == "" {
			c.mu.Unlock()
			return domain.Folder{}, c.validationError(opUpdate, entityFolder, "name is required")
		}
	}
	if patch.ClearParent {
		next.ParentID = nil
	} else if patch.ParentID != nil {
		parentID, err := c.checkFolderRefLocked(patch.ParentID)
		if err != nil {
			c.mu.Unlock()
			return domain.Folder{}, c.validationError(opUpdate, entityFolder, "%w", err)
		}
		if parentID != nil && c.isAncestorOrSelfLocked(id, *parentID) {
			c.mu.Unlock()
			return domain.Folder{}, c.validationError(opUpdate, entityFolder, "%w", domain.ErrFolderCycle)
		}
		if parentID != nil && (c.folders[*parentID].ParentID != nil || c.hasChildrenLocked(id)) {
			c.mu.Unlock()
			return domain.Folder{}, c.validationError(opUpdate, entityFolder, "%w", domain.ErrFolderDepth)
		}
		next.ParentID = parentID
	}
	if patch.Color != nil {
		next.Color = *patch.Color
	}
	if patch.Icon != nil {
		next.Icon = *patch.Icon
	}
	next.UpdatedAt = c.clock().UTC()

	c.folders[id] = next
	rev := c.markPendingLocked(entityFolder, id, opUpdate)
	c.persistLocked(ctx, KeyFolders, KeyPending)
	c.enqueueLocked(job{kind: jobFolder, op: opUpdate, id: id, rev: rev, folder: next.Clone()})
	c.mu.Unlock()

	c.notify(LevelSuccess, opUpdate, entityFolder, id, fmt.Sprintf("Folder %q saved", next.Name))
	return next.Clone(), nil
}

// isAncestorOrSelfLocked reports whether folderID appears on the parent chain
// starting at candidate (inclusive).
func (c *Cache) isAncestorOrSelfLocked(folderID, candidate string) bool {
	seen := make(map[string]struct{})
	cur := candidate
	for {
		if cur == folderID {
			return true
		}
		if _, loop := seen[cur]; loop {
			return true
		}
		seen[cur] = struct{}{}
		f, ok := c.folders[cur]
		if !ok || f.ParentID == nil {
			return false
		}
		cur = *f.ParentID
	}
}

func (c *Cache) hasChildrenLocked(id string) bool {
	for _, f := range c.folders {
		if f.ParentID != nil && *f.ParentID == id {
			return true
		}
	}
	return false
}

// DeleteFolder removes a folder. Member prompts move to no folder and child
// folders move to the root; nothing else is deleted.
func (c *Cache) DeleteFolder(ctx context.Context, id string) error {
	c.mu.Lock()
	id = c.resolveLocked(id)
	f, ok := c.folders[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrFolderNotFound, id)
	}

	delete(c.folders, id)
	moved := 0
	for pid, p := range c.prompts {
		if p.InFolder(id) {
			p.FolderID = nil
			c.prompts[pid] = p
			moved++
		}
	}
	for cid, child := range c.folders {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = nil
			c.folders[cid] = child
		}
	}
	rev := c.markPendingLocked(entityFolder, id, opDelete)
	c.persistLocked(ctx, KeyPrompts, KeyFolders, KeyPending)
	c.enqueueLocked(job{kind: jobFolder, op: opDelete, id: id, rev: rev})
	c.mu.Unlock()

	msg := fmt.Sprintf("Folder %q deleted", f.Name)
	if moved > 0 {
		msg = fmt.Sprintf("Folder %q deleted, %d prompts moved out", f.Name, moved)
	}
	c.notify(LevelSuccess, opDelete, entityFolder, id, msg)
	return nil
}

// Folders returns every folder ordered by name.
func (c *Cache) Folders() []domain.Folder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedFoldersLocked()
}

func (c *Cache) GetFolder(id string) (domain.Folder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.folders[c.resolveLocked(id)]
	if !ok {
		return domain.Folder{}, false
	}
	return f.Clone(), true
}

// GetChildren returns the direct children of parentID, or the top-level
// folders when parentID is empty.
func (c *Cache) GetChildren(parentID string) []domain.Folder {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if parentID != "" {
		parentID = c.resolveLocked(parentID)
	}
	out := make([]domain.Folder, 0)
	for _, f := range c.sortedFoldersLocked() {
		switch {
		case parentID == "" && f.ParentID == nil:
			out = append(out, f)
		case parentID != "" && f.ParentID != nil && *f.ParentID == parentID:
			out = append(out, f)
		}
	}
	return out
}

// PromptCount counts the non-archived prompts filed under folderID.
func (c *Cache) PromptCount(folderID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	folderID = c.resolveLocked(folderID)
	n := 0
	for _, p := range c.prompts {
		if p.InFolder(folderID) && p.Status != domain.StatusArchived {
			n++
		}
	}
	return n
}
