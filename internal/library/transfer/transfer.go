// Package transfer encodes and decodes prompt library import/export payloads.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// DocumentVersion is written into every structured export.
const DocumentVersion = "2.0"

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported format %q", raw)
}

// DetectFormat guesses the payload format from its first significant byte.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatCSV
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is the structured export envelope.
type Document struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Prompts    []Record       `json:"prompts"`
	Folders    []FolderRecord `json:"folders"`
}

// Record is one exported prompt. Tags decode from either a JSON array or a
// semicolon-joined string.
type Record struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Tags        TagList    `json:"tags"`
	Model       string     `json:"model"`
	Version     string     `json:"version"`
	Status      string     `json:"status"`
	FolderID    *string    `json:"folder_id,omitempty"`
	IsFavorite  bool       `json:"is_favorite,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type FolderRecord struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	Color    string  `json:"color,omitempty"`
	Icon     string  `json:"icon,omitempty"`
}

// Payload is what an import carries after decoding, regardless of format.
type Payload struct {
	Prompts []Record
	Folders []FolderRecord
}

// TagList is a set of tags that tolerates the CSV string form inside JSON.
type TagList []string

func (t *TagList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return fmt.Errorf("tags: expected array or string")
	}
	*t = SplitTags(joined)
	return nil
}

// SplitTags parses the semicolon-joined tag column.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return domain.NormalizeTags(strings.Split(s, ";"))
}

func JoinTags(tags []string) string {
	return strings.Join(tags, ";")
}

// FromPrompt builds the export record for p.
func FromPrompt(p domain.Prompt) Record {
	created, updated := p.CreatedAt, p.UpdatedAt
	r := Record{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Description: p.Description,
		Category:    p.Category,
		Tags:        append(TagList(nil), p.Tags...),
		Model:       p.Model,
		Version:     p.Version,
		Status:      string(p.Status),
		IsFavorite:  p.IsFavorite,
		CreatedAt:   &created,
		UpdatedAt:   &updated,
	}
	if p.FolderID != nil {
		id := *p.FolderID
		r.FolderID = &id
	}
	return r
}

func FromFolder(f domain.Folder) FolderRecord {
	r := FolderRecord{ID: f.ID, Name: f.Name, Color: f.Color, Icon: f.Icon}
	if f.ParentID != nil {
		id := *f.ParentID
		r.ParentID = &id
	}
	return r
}

// Input converts a record into creation input. Folder references are left to
// the importer, which remaps exported folder ids.
func (r Record) Input() domain.PromptInput {
	in := domain.PromptInput{
		Title:       strings.TrimSpace(r.Title),
		Content:     r.Content,
		Description: r.Description,
		Category:    r.Category,
		Tags:        []string(r.Tags),
		Model:       r.Model,
		Status:      domain.ParseStatus(r.Status),
	}
	if strings.TrimSpace(r.Version) != "" {
		in.Version = domain.NormalizeVersion(r.Version)
	}
	return in
}

// Valid reports whether the record carries the fields creation requires.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.Content) != ""
}
