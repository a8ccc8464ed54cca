package domain

import (
	"cmp"
	"slices"
	"strings"
)

// SortPrompts orders prompts in place by field and order. Ties fall back to id
// so results are stable across calls.
func SortPrompts(prompts []Prompt, field SortField, order SortOrder) {
	slices.SortStableFunc(prompts, func(a, b Prompt) int {
		c := comparePrompts(a, b, field)
		if order == SortDesc {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	})
}

func comparePrompts(a, b Prompt, field SortField) int {
	switch field {
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortTitle:
		return foldCompare(a.Title, b.Title)
	case SortCategory:
		return foldCompare(a.Category, b.Category)
	case SortModel:
		return foldCompare(a.Model, b.Model)
	case SortStatus:
		return foldCompare(string(a.Status), string(b.Status))
	case SortVersion:
		return CompareVersions(a.Version, b.Version)
	case SortRunCount:
		return cmp.Compare(a.RunCount, b.RunCount)
	case SortViewCount:
		return cmp.Compare(a.ViewCount, b.ViewCount)
	case SortRating:
		return cmp.Compare(a.Rating, b.Rating)
	default:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
}

func foldCompare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
