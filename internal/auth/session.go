package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

var (
	ErrMissingToken = errors.New("missing id token")
	ErrInvalidToken = errors.New("invalid id token")
)

// TokenVerifier checks Firebase ID tokens. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserRecorder keeps the users table in step with sign-ins.
type UserRecorder interface {
	EnsureUser(ctx context.Context, u domain.UserIdentity) (string, error)
}

// Session holds the one signed-in identity of this service and tells the
// library cache whenever it changes. A repeated sign-in with a fresh token
// counts as a change so the cache reloads.
type Session struct {
	verifier TokenVerifier
	users    UserRecorder
	log      *zap.Logger

	mu     sync.RWMutex
	user   *domain.UserIdentity
	nextID int
	subs   map[int]func(*domain.UserIdentity)
}

// NewSession creates a signed-out session. users may be nil.
func NewSession(verifier TokenVerifier, users UserRecorder, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		verifier: verifier,
		users:    users,
		log:      log.Named("Session"),
		subs:     make(map[int]func(*domain.UserIdentity)),
	}
}

// Verify checks idToken and returns its identity without touching the
// current session.
func (s *Session) Verify(ctx context.Context, idToken string) (domain.UserIdentity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return domain.UserIdentity{}, ErrMissingToken
	}

	token, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.log.Warn("Rejected id token", zap.Error(err))
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identityFromToken(token), nil
}

// SignIn verifies idToken, records the user and makes it the current identity.
func (s *Session) SignIn(ctx context.Context, idToken string) (domain.UserIdentity, error) {
	user, err := s.Verify(ctx, idToken)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	if s.users != nil {
		if _, err := s.users.EnsureUser(ctx, user); err != nil {
			return domain.UserIdentity{}, fmt.Errorf("ensure user: %w", err)
		}
	}

	s.mu.Lock()
	prev := s.user
	s.user = &user
	s.mu.Unlock()

	if prev == nil || prev.UID != user.UID {
		s.log.Info("Signed in", zap.String("uid", user.UID))
	}
	s.fire(&user)
	return user, nil
}

// SignOut clears the identity. Signing out twice is a no-op.
func (s *Session) SignOut() {
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.mu.Unlock()

	if prev == nil {
		return
	}
	s.log.Info("Signed out", zap.String("uid", prev.UID))
	s.fire(nil)
}

func (s *Session) CurrentUser() *domain.UserIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) OnIdentityChange(fn func(*domain.UserIdentity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) fire(user *domain.UserIdentity) {
	s.mu.RLock()
	fns := make([]func(*domain.UserIdentity), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		if user == nil {
			fn(nil)
			continue
		}
		u := *user
		fn(&u)
	}
}

func identityFromToken(token *auth.Token) domain.UserIdentity {
	u := domain.UserIdentity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		u.DisplayName = name
	}
	return u
}
