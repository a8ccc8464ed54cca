package library

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
	"github.com/promptdeck/promptdeck-backend/internal/library/transfer"
)

// ImportResult summarizes an import. Imported counts prompts only.
type ImportResult struct {
	Imported       int `json:"imported"`
	Skipped        int `json:"skipped"`
	FoldersCreated int `json:"folders_created"`
	FoldersSkipped int `json:"folders_skipped"`
}

// Import decodes data and creates every valid prompt through CreatePrompt. A
// payload that cannot be decoded fails as a whole before anything is created;
// individual invalid rows are skipped.
func (c *Cache) Import(ctx context.Context, format transfer.Format, data []byte) (ImportResult, error) {
	payload, err := transfer.Decode(format, data)
	if err != nil {
		c.notify(LevelError, "import", "", "", "Import failed: "+err.Error())
		return ImportResult{}, err
	}

	var res ImportResult
	folderMap := c.importFolders(ctx, payload.Folders, &res)

	for _, rec := range payload.Prompts {
		if !rec.Valid() {
			res.Skipped++
			continue
		}
		in := rec.Input()
		in.IsFavorite = rec.IsFavorite
		if rec.FolderID != nil {
			if mapped, ok := folderMap[*rec.FolderID]; ok {
				id := mapped
				in.FolderID = &id
			}
		}
		if _, err := c.CreatePrompt(ctx, in); err != nil {
			c.log.Debug("Skipping import row", zap.String("title", rec.Title), zap.Error(err))
			res.Skipped++
			continue
		}
		res.Imported++
	}

	c.log.Info("Import finished",
		zap.String("format", string(format)),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("foldersCreated", res.FoldersCreated))
	c.notify(LevelSuccess, "import", "", "", fmt.Sprintf("Imported %d prompts", res.Imported))
	return res, nil
}

// importFolders creates folders by name, skipping names that already exist,
// and returns a map from exported folder id to local folder id.
func (c *Cache) importFolders(ctx context.Context, records []transfer.FolderRecord, res *ImportResult) map[string]string {
	existing := make(map[string]string)
	for _, f := range c.Folders() {
		existing[f.Name] = f.ID
	}

	mapping := make(map[string]string, len(records))
	created := make(map[string]transfer.FolderRecord)
	for _, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			res.FoldersSkipped++
			continue
		}
		if id, ok := existing[name]; ok {
			if rec.ID != "" {
				mapping[rec.ID] = id
			}
			res.FoldersSkipped++
			continue
		}
		f, err := c.CreateFolder(ctx, domain.FolderInput{Name: name, Color: rec.Color, Icon: rec.Icon})
		if err != nil {
			res.FoldersSkipped++
			continue
		}
		existing[name] = f.ID
		if rec.ID != "" {
			mapping[rec.ID] = f.ID
			created[f.ID] = rec
		}
		res.FoldersCreated++
	}

	// Parents are linked once every folder exists, so order in the payload
	// does not matter.
	for id, rec := range created {
		if rec.ParentID == nil {
			continue
		}
		parent, ok := mapping[*rec.ParentID]
		if !ok {
			continue
		}
		if _, err := c.UpdateFolder(ctx, id, domain.FolderPatch{ParentID: &parent}); err != nil {
			c.log.Debug("Skipping folder parent link", zap.String("folder", rec.Name), zap.Error(err))
		}
	}
	return mapping
}

// ExportOptions selects what to export. Without IDs every non-archived prompt
// is exported; with IDs exactly those prompts are, whatever their status.
type ExportOptions struct {
	Format transfer.Format
	IDs    []string
}

func (c *Cache) Export(opt ExportOptions) ([]byte, error) {
	var prompts []domain.Prompt
	if len(opt.IDs) == 0 {
		var err error
		prompts, err = c.ListPrompts(domain.Filter{Status: domain.StatusFilterAll})
		if err != nil {
			return nil, err
		}
	} else {
		for _, id := range opt.IDs {
			if p, ok := c.GetPrompt(strings.TrimSpace(id)); ok {
				prompts = append(prompts, p)
			}
		}
	}

	records := make([]transfer.Record, 0, len(prompts))
	for _, p := range prompts {
		records = append(records, transfer.FromPrompt(p))
	}

	switch opt.Format {
	case transfer.FormatCSV:
		return transfer.EncodeCSV(records)
	case transfer.FormatJSON, "":
		folders := c.Folders()
		folderRecords := make([]transfer.FolderRecord, 0, len(folders))
		for _, f := range folders {
			folderRecords = append(folderRecords, transfer.FromFolder(f))
		}
		return transfer.EncodeJSON(transfer.Document{
			Version:    transfer.DocumentVersion,
			ExportedAt: c.clock().UTC(),
			Prompts:    records,
			Folders:    folderRecords,
		})
	}
	return nil, fmt.Errorf("unsupported export format %q", opt.Format)
}
