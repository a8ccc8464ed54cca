package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a prompt. Any status may move to any other.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusActive || s == StatusArchived
}

// ParseStatus normalizes a user-supplied status, falling back to draft.
func ParseStatus(raw string) Status {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s.Valid() {
		return s
	}
	return StatusDraft
}

// Prompt is a user-authored text template.
type Prompt struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Model       string    `json:"model"`
	Status      Status    `json:"status"`
	FolderID    *string   `json:"folder_id"`
	Version     string    `json:"version"`
	IsFavorite  bool      `json:"is_favorite"`
	RunCount    int       `json:"run_count"`
	ViewCount   int       `json:"view_count"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share slices or pointers with the cache.
func (p Prompt) Clone() Prompt {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.FolderID != nil {
		id := *p.FolderID
		out.FolderID = &id
	}
	return out
}

// InFolder reports whether the prompt is filed under folderID.
func (p Prompt) InFolder(folderID string) bool {
	return p.FolderID != nil && *p.FolderID == folderID
}

// Folder is a named grouping of prompts. ParentID is a weak reference.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f Folder) Clone() Folder {
	out := f
	if f.ParentID != nil {
		id := *f.ParentID
		out.ParentID = &id
	}
	return out
}

// PromptVersion is an immutable snapshot of a prompt's content.
type PromptVersion struct {
	ID         string    `json:"id"`
	PromptID   string    `json:"prompt_id"`
	Version    string    `json:"version"`
	Content    string    `json:"content"`
	ChangeNote string    `json:"change_note"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserIdentity is the signed-in user as resolved by the auth provider.
type UserIdentity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// PromptInput carries the fields accepted when creating a prompt.
type PromptInput struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Model       string   `json:"model"`
	Status      Status   `json:"status"`
	FolderID    *string  `json:"folder_id"`
	Version     string   `json:"version"`
	IsFavorite  bool     `json:"is_favorite"`
}

// PromptPatch is a partial update. Nil fields are left untouched.
// ClearFolder moves the prompt out of any folder.
type PromptPatch struct {
	Title       *string   `json:"title,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Model       *string   `json:"model,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	FolderID    *string   `json:"folder_id,omitempty"`
	ClearFolder bool      `json:"clear_folder,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	ChangeNote  string    `json:"change_note,omitempty"`
}

// FolderInput carries the fields accepted when creating a folder.
type FolderInput struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Color    string  `json:"color"`
	Icon     string  `json:"icon"`
}

// FolderPatch is a partial folder update. ClearParent moves the folder to the root.
type FolderPatch struct {
	Name        *string `json:"name,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	ClearParent bool    `json:"clear_parent,omitempty"`
	Color       *string `json:"color,omitempty"`
	Icon        *string `json:"icon,omitempty"`
}

// NormalizeTags trims, drops empties and de-duplicates tags. Order is irrelevant
// to the model, so first occurrence wins.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
