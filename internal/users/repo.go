package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// querier is the slice of pgxpool.Pool the repo needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Profile is a row of the users table.
type Profile struct {
	ID          string    `json:"id"`
	FirebaseUID string    `json:"firebase_uid"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repo struct {
	db querier
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// EnsureUser upserts the signed-in identity and returns the users row id.
// Empty email or display name never overwrite stored values.
func (r *Repo) EnsureUser(ctx context.Context, u domain.UserIdentity) (string, error) {
	uid := strings.TrimSpace(u.UID)
	if uid == "" {
		return "", fmt.Errorf("%w: firebase_uid required", domain.ErrValidation)
	}

	const q = `
insert into users (firebase_uid, email, display_name, updated_at)
values ($1, nullif($2,''), nullif($3,''), now())
on conflict (firebase_uid) do update
set
  email = coalesce(excluded.email, users.email),
  display_name = coalesce(excluded.display_name, users.display_name),
  updated_at = now()
returning id::text;
`
	var id string
	if err := r.db.QueryRow(ctx, q, uid, strings.TrimSpace(u.Email), strings.TrimSpace(u.DisplayName)).Scan(&id); err != nil {
		return "", fmt.Errorf("ensure user %s: %w", uid, err)
	}
	return id, nil
}

// GetByFirebaseUID returns the stored profile, or ok=false when the user
// never signed in against this database.
func (r *Repo) GetByFirebaseUID(ctx context.Context, uid string) (Profile, bool, error) {
	const q = `
select id::text, firebase_uid, coalesce(email,''), coalesce(display_name,''), created_at, updated_at
from users
where firebase_uid = $1;
`
	var p Profile
	err := r.db.QueryRow(ctx, q, uid).Scan(&p.ID, &p.FirebaseUID, &p.Email, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("get user %s: %w", uid, err)
	}
	return p, true, nil
}
