package domain

import (
	"fmt"
	"strings"
)

// StatusFilter narrows a listing by prompt status.
type StatusFilter string

const (
	// StatusFilterAll means every prompt that is not archived.
	StatusFilterAll      StatusFilter = "all"
	StatusFilterActive   StatusFilter = "active"
	StatusFilterDraft    StatusFilter = "draft"
	StatusFilterArchived StatusFilter = "archived"
)

// Pseudo-folders accepted by Filter.Folder in addition to folder ids.
const (
	FolderAll       = "all"
	FolderFavorites = "favorites"
	FolderArchived  = "archived"
)

// SortField is the closed set of fields a listing can be ordered by.
type SortField string

const (
	SortUpdatedAt SortField = "updated_at"
	SortCreatedAt SortField = "created_at"
	SortTitle     SortField = "title"
	SortCategory  SortField = "category"
	SortModel     SortField = "model"
	SortStatus    SortField = "status"
	SortVersion   SortField = "version"
	SortRunCount  SortField = "run_count"
	SortViewCount SortField = "view_count"
	SortRating    SortField = "rating"
)

var sortFields = map[SortField]struct{}{
	SortUpdatedAt: {}, SortCreatedAt: {}, SortTitle: {}, SortCategory: {}, SortModel: {},
	SortStatus: {}, SortVersion: {}, SortRunCount: {}, SortViewCount: {}, SortRating: {},
}

func (f SortField) Valid() bool {
	_, ok := sortFields[f]
	return ok
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter selects and orders prompts. Zero values mean: non-archived, any
// folder, no search, newest update first.
type Filter struct {
	Status StatusFilter `json:"status"`
	Folder string       `json:"folder"`
	Search string       `json:"search"`
	Sort   SortField    `json:"sort"`
	Order  SortOrder    `json:"order"`
}

// Normalize fills defaults and applies the archived pseudo-folder override.
func (f Filter) Normalize() (Filter, error) {
	if f.Status == "" {
		f.Status = StatusFilterAll
	}
	switch f.Status {
	case StatusFilterAll, StatusFilterActive, StatusFilterDraft, StatusFilterArchived:
	default:
		return f, fmt.Errorf("%w: status %q", ErrInvalidFilter, f.Status)
	}

	f.Folder = strings.TrimSpace(f.Folder)
	if f.Folder == "" {
		f.Folder = FolderAll
	}
	if f.Folder == FolderArchived {
		f.Status = StatusFilterArchived
	}

	if f.Sort == "" {
		f.Sort = SortUpdatedAt
	}
	if !f.Sort.Valid() {
		return f, fmt.Errorf("%w: sort field %q", ErrInvalidFilter, f.Sort)
	}

	if f.Order == "" {
		f.Order = SortDesc
	}
	if f.Order != SortAsc && f.Order != SortDesc {
		return f, fmt.Errorf("%w: sort order %q", ErrInvalidFilter, f.Order)
	}

	// A blank query disables search; anything else is matched as typed.
	if strings.TrimSpace(f.Search) == "" {
		f.Search = ""
	}
	return f, nil
}

// MatchStatus reports whether p passes the status narrowing.
func (f Filter) MatchStatus(p Prompt) bool {
	switch f.Status {
	case StatusFilterArchived:
		return p.Status == StatusArchived
	case StatusFilterActive:
		return p.Status == StatusActive
	case StatusFilterDraft:
		return p.Status == StatusDraft
	default:
		return p.Status != StatusArchived
	}
}

// MatchSearch is a case-insensitive substring match over title, description,
// content, category and tags.
func (f Filter) MatchSearch(p Prompt) bool {
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	for _, field := range []string{p.Title, p.Description, p.Content, p.Category} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
