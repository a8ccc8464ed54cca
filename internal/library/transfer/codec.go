package transfer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// CSVHeader is the fixed column order of tabular exports.
var CSVHeader = []string{
	"title", "content", "description", "category", "tags",
	"model", "version", "status", "created_at", "updated_at",
}

// EncodeJSON writes the structured export document.
func EncodeJSON(doc Document) ([]byte, error) {
	if doc.Version == "" {
		doc.Version = DocumentVersion
	}
	if doc.Prompts == nil {
		doc.Prompts = []Record{}
	}
	if doc.Folders == nil {
		doc.Folders = []FolderRecord{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// EncodeCSV writes records under CSVHeader. Fields holding a comma, quote or
// newline are quoted with inner quotes doubled.
func EncodeCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.Title,
			r.Content,
			r.Description,
			r.Category,
			JoinTags(r.Tags),
			r.Model,
			r.Version,
			r.Status,
			formatTime(r.CreatedAt),
			formatTime(r.UpdatedAt),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses an import payload. Any structural problem yields
// domain.ErrMalformedImport; per-row validity is left to the importer.
func Decode(format Format, data []byte) (Payload, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return Payload{}, fmt.Errorf("%w: empty payload", domain.ErrMalformedImport)
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatCSV:
		return decodeCSV(data)
	}
	return Payload{}, fmt.Errorf("%w: unsupported format %q", domain.ErrMalformedImport, format)
}

func decodeJSON(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)

	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", domain.ErrMalformedImport, err)
		}
		return Payload{Prompts: records}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", domain.ErrMalformedImport, err)
	}
	if _, ok := probe["prompts"]; !ok {
		return Payload{}, fmt.Errorf("%w: missing prompts", domain.ErrMalformedImport)
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", domain.ErrMalformedImport, err)
	}
	return Payload{Prompts: doc.Prompts, Folders: doc.Folders}, nil
}

func decodeCSV(data []byte) (Payload, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return Payload{}, fmt.Errorf("%w: header: %v", domain.ErrMalformedImport, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"title", "content"} {
		if _, ok := cols[required]; !ok {
			return Payload{}, fmt.Errorf("%w: missing %s column", domain.ErrMalformedImport, required)
		}
	}

	var out Payload
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", domain.ErrMalformedImport, err)
		}
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		out.Prompts = append(out.Prompts, Record{
			Title:       get("title"),
			Content:     get("content"),
			Description: get("description"),
			Category:    get("category"),
			Tags:        SplitTags(get("tags")),
			Model:       get("model"),
			Version:     get("version"),
			Status:      get("status"),
			CreatedAt:   parseTime(get("created_at")),
			UpdatedAt:   parseTime(get("updated_at")),
		})
	}
	return out, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
