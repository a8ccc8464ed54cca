package auth

import (
	"strings"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// Static is a fixed identity for command-line use. An empty uid means
// signed out, which keeps the cache local-only.
type Static struct {
	user *domain.UserIdentity
}

func NewStatic(uid, email string) *Static {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return &Static{}
	}
	return &Static{user: &domain.UserIdentity{UID: uid, Email: strings.TrimSpace(email)}}
}

func (s *Static) CurrentUser() *domain.UserIdentity {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// OnIdentityChange never fires: the identity is fixed for the process.
func (s *Static) OnIdentityChange(func(*domain.UserIdentity)) func() {
	return func() {}
}
