package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// LibraryStore is the relational source of truth for prompts, folders and
// prompt versions. Every statement is scoped by user_id.
type LibraryStore struct {
	db *sql.DB
}

func NewLibraryStore(db *sql.DB) *LibraryStore {
	return &LibraryStore{db: db}
}

const promptColumns = `id::text, user_id, title, content, description, category, tags, model, status,
       folder_id::text, version, is_favorite, run_count, view_count, rating, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (domain.Prompt, error) {
	var (
		p        domain.Prompt
		status   string
		folderID sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Content, &p.Description, &p.Category,
		pq.Array(&p.Tags), &p.Model, &status, &folderID, &p.Version, &p.IsFavorite,
		&p.RunCount, &p.ViewCount, &p.Rating, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Prompt{}, err
	}
	p.Status = domain.ParseStatus(status)
	if folderID.Valid {
		p.FolderID = &folderID.String
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}

// ListPrompts returns the user's prompts, most recently updated first.
func (s *LibraryStore) ListPrompts(ctx context.Context, userID string) ([]domain.Prompt, error) {
	q := `
SELECT ` + promptColumns + `
FROM prompts
WHERE user_id = $1
ORDER BY updated_at DESC;
`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, classify("list prompts", err)
	}
	defer rows.Close()

	out := make([]domain.Prompt, 0, 32)
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, classify("scan prompt", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list prompts", err)
	}
	return out, nil
}

// InsertPrompt stores p and returns it with the database-assigned id.
func (s *LibraryStore) InsertPrompt(ctx context.Context, userID string, p domain.Prompt) (domain.Prompt, error) {
	q := `
INSERT INTO prompts (user_id, title, content, description, category, tags, model, status,
                     folder_id, version, is_favorite, run_count, view_count, rating, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid, $10, $11, $12, $13, $14, coalesce($15, now()), coalesce($16, now()))
RETURNING ` + promptColumns + `;
`
	row := s.db.QueryRowContext(ctx, q,
		userID, p.Title, p.Content, p.Description, p.Category, pq.Array(tagsOrEmpty(p.Tags)), p.Model,
		string(p.Status), nullString(p.FolderID), p.Version, p.IsFavorite, p.RunCount, p.ViewCount,
		p.Rating, nullTime(p.CreatedAt), nullTime(p.UpdatedAt),
	)
	created, err := scanPrompt(row)
	if err != nil {
		return domain.Prompt{}, classify("insert prompt", err)
	}
	return created, nil
}

// UpdatePrompt overwrites every mutable field of the prompt. A missing row is
// a rejection: the prompt was deleted elsewhere.
func (s *LibraryStore) UpdatePrompt(ctx context.Context, userID, id string, p domain.Prompt) error {
	const q = `
UPDATE prompts
SET title = $3, content = $4, description = $5, category = $6, tags = $7, model = $8, status = $9,
    folder_id = $10::uuid, version = $11, is_favorite = $12, run_count = $13, view_count = $14,
    rating = $15, updated_at = coalesce($16, now())
WHERE user_id = $1 AND id = $2::uuid;
`
	res, err := s.db.ExecContext(ctx, q,
		userID, id, p.Title, p.Content, p.Description, p.Category, pq.Array(tagsOrEmpty(p.Tags)), p.Model,
		string(p.Status), nullString(p.FolderID), p.Version, p.IsFavorite, p.RunCount, p.ViewCount,
		p.Rating, nullTime(p.UpdatedAt),
	)
	if err != nil {
		return classify("update prompt", err)
	}
	return expectRow(res, "update prompt", id)
}

// DeletePrompt removes the prompt and, by cascade, its versions. Deleting a
// row that is already gone succeeds.
func (s *LibraryStore) DeletePrompt(ctx context.Context, userID, id string) error {
	const q = `DELETE FROM prompts WHERE user_id = $1 AND id = $2::uuid;`
	if _, err := s.db.ExecContext(ctx, q, userID, id); err != nil {
		return classify("delete prompt", err)
	}
	return nil
}

const folderColumns = `id::text, user_id, name, parent_id::text, color, icon, created_at, updated_at`

func scanFolder(row rowScanner) (domain.Folder, error) {
	var (
		f        domain.Folder
		parentID sql.NullString
	)
	if err := row.Scan(&f.ID, &f.UserID, &f.Name, &parentID, &f.Color, &f.Icon, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return domain.Folder{}, err
	}
	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	return f, nil
}

// ListFolders returns the user's folders ordered by name.
func (s *LibraryStore) ListFolders(ctx context.Context, userID string) ([]domain.Folder, error) {
	q := `
SELECT ` + folderColumns + `
FROM folders
WHERE user_id = $1
ORDER BY name ASC;
`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, classify("list folders", err)
	}
	defer rows.Close()

	out := make([]domain.Folder, 0, 16)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, classify("scan folder", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list folders", err)
	}
	return out, nil
}

func (s *LibraryStore) InsertFolder(ctx context.Context, userID string, f domain.Folder) (domain.Folder, error) {
	q := `
INSERT INTO folders (user_id, name, parent_id, color, icon, created_at, updated_at)
VALUES ($1, $2, $3::uuid, $4, $5, coalesce($6, now()), coalesce($7, now()))
RETURNING ` + folderColumns + `;
`
	row := s.db.QueryRowContext(ctx, q,
		userID, f.Name, nullString(f.ParentID), f.Color, f.Icon, nullTime(f.CreatedAt), nullTime(f.UpdatedAt),
	)
	created, err := scanFolder(row)
	if err != nil {
		return domain.Folder{}, classify("insert folder", err)
	}
	return created, nil
}

func (s *LibraryStore) UpdateFolder(ctx context.Context, userID, id string, f domain.Folder) error {
	const q = `
UPDATE folders
SET name = $3, parent_id = $4::uuid, color = $5, icon = $6, updated_at = coalesce($7, now())
WHERE user_id = $1 AND id = $2::uuid;
`
	res, err := s.db.ExecContext(ctx, q,
		userID, id, f.Name, nullString(f.ParentID), f.Color, f.Icon, nullTime(f.UpdatedAt),
	)
	if err != nil {
		return classify("update folder", err)
	}
	return expectRow(res, "update folder", id)
}

// DeleteFolder moves member prompts out of the folder, lifts child folders to
// the root and removes the folder, all in one transaction.
func (s *LibraryStore) DeleteFolder(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("delete folder", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`UPDATE prompts SET folder_id = NULL WHERE user_id = $1 AND folder_id = $2::uuid;`,
		`UPDATE folders SET parent_id = NULL WHERE user_id = $1 AND parent_id = $2::uuid;`,
		`DELETE FROM folders WHERE user_id = $1 AND id = $2::uuid;`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, userID, id); err != nil {
			return classify("delete folder", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("delete folder", err)
	}
	return nil
}

// InsertPromptVersion records a content snapshot. The insert only succeeds
// when the prompt belongs to userID.
func (s *LibraryStore) InsertPromptVersion(ctx context.Context, userID string, v domain.PromptVersion) error {
	const q = `
INSERT INTO prompt_versions (prompt_id, user_id, version, content, change_note, created_at)
SELECT p.id, $2, $3, $4, $5, coalesce($6, now())
FROM prompts p
WHERE p.id = $1::uuid AND p.user_id = $2;
`
	res, err := s.db.ExecContext(ctx, q,
		v.PromptID, userID, v.Version, v.Content, v.ChangeNote, nullTime(v.CreatedAt),
	)
	if err != nil {
		return classify("insert prompt version", err)
	}
	return expectRow(res, "insert prompt version", v.PromptID)
}

// ListPromptVersions returns the prompt's history, newest first.
func (s *LibraryStore) ListPromptVersions(ctx context.Context, userID, promptID string) ([]domain.PromptVersion, error) {
	const q = `
SELECT id::text, prompt_id::text, version, content, change_note, created_at
FROM prompt_versions
WHERE user_id = $1 AND prompt_id = $2::uuid
ORDER BY created_at DESC;
`
	rows, err := s.db.QueryContext(ctx, q, userID, promptID)
	if err != nil {
		return nil, classify("list prompt versions", err)
	}
	defer rows.Close()

	out := make([]domain.PromptVersion, 0, 8)
	for rows.Next() {
		var v domain.PromptVersion
		if err := rows.Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.ChangeNote, &v.CreatedAt); err != nil {
			return nil, classify("scan prompt version", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list prompt versions", err)
	}
	return out, nil
}

func expectRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s: %s not found", domain.ErrRemoteRejected, op, id)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
