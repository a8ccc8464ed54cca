package library

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

type memLocal struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemLocal() *memLocal { return &memLocal{data: make(map[string]string)} }

func (m *memLocal) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memLocal) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type fakeRemote struct {
	mu       sync.Mutex
	prompts  map[string]domain.Prompt
	folders  map[string]domain.Folder
	versions []domain.PromptVersion
	calls    []string
	nextID   int

	// fail, when set, is returned by every call.
	fail error
	// gate, when set, holds every mutating call until it is closed.
	gate chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		prompts: make(map[string]domain.Prompt),
		folders: make(map[string]domain.Folder),
	}
}

func (r *fakeRemote) setFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *fakeRemote) enter(call string) error {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.fail
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRemote) ListPrompts(_ context.Context, userID string) ([]domain.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	out := make([]domain.Prompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		if p.UserID == userID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *fakeRemote) InsertPrompt(_ context.Context, userID string, p domain.Prompt) (domain.Prompt, error) {
	if err := r.enter("insert_prompt"); err != nil {
		return domain.Prompt{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = fmt.Sprintf("p-%d", r.nextID)
	p.UserID = userID
	r.prompts[p.ID] = p.Clone()
	return p, nil
}

func (r *fakeRemote) UpdatePrompt(_ context.Context, userID, id string, p domain.Prompt) error {
	if err := r.enter("update_prompt"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prompts[id]; !ok {
		return domain.ErrPromptNotFound
	}
	p.ID = id
	p.UserID = userID
	r.prompts[id] = p.Clone()
	return nil
}

func (r *fakeRemote) DeletePrompt(_ context.Context, _ string, id string) error {
	if err := r.enter("delete_prompt"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prompts, id)
	return nil
}

func (r *fakeRemote) ListFolders(_ context.Context, userID string) ([]domain.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	out := make([]domain.Folder, 0, len(r.folders))
	for _, f := range r.folders {
		if f.UserID == userID {
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

func (r *fakeRemote) InsertFolder(_ context.Context, userID string, f domain.Folder) (domain.Folder, error) {
	if err := r.enter("insert_folder"); err != nil {
		return domain.Folder{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	f.ID = fmt.Sprintf("f-%d", r.nextID)
	f.UserID = userID
	r.folders[f.ID] = f.Clone()
	return f, nil
}

func (r *fakeRemote) UpdateFolder(_ context.Context, userID, id string, f domain.Folder) error {
	if err := r.enter("update_folder"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = id
	f.UserID = userID
	r.folders[id] = f.Clone()
	return nil
}

func (r *fakeRemote) DeleteFolder(_ context.Context, _ string, id string) error {
	if err := r.enter("delete_folder"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.folders, id)
	for pid, p := range r.prompts {
		if p.InFolder(id) {
			p.FolderID = nil
			r.prompts[pid] = p
		}
	}
	return nil
}

func (r *fakeRemote) InsertPromptVersion(_ context.Context, _ string, v domain.PromptVersion) error {
	if err := r.enter("insert_version"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, v)
	return nil
}

func (r *fakeRemote) ListPromptVersions(_ context.Context, _ string, promptID string) ([]domain.PromptVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	var out []domain.PromptVersion
	for _, v := range r.versions {
		if v.PromptID == promptID {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeAuth struct {
	mu   sync.Mutex
	user *domain.UserIdentity
	subs []func(*domain.UserIdentity)
}

func (a *fakeAuth) CurrentUser() *domain.UserIdentity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

func (a *fakeAuth) OnIdentityChange(fn func(*domain.UserIdentity)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
	return func() {}
}

func (a *fakeAuth) set(u *domain.UserIdentity) {
	a.mu.Lock()
	a.user = u
	subs := append([]func(*domain.UserIdentity){}, a.subs...)
	a.mu.Unlock()
	for _, fn := range subs {
		fn(u)
	}
}

// stepClock advances one second per reading so timestamps are distinct.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (s *stepClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(time.Second)
	return s.now
}

type noteLog struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *noteLog) add(note Notification) {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	n.mu.Unlock()
}

func (n *noteLog) levels(level Level) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, note := range n.notes {
		if note.Level == level {
			out = append(out, note)
		}
	}
	return out
}

type harness struct {
	cache  *Cache
	local  *memLocal
	remote *fakeRemote
	auth   *fakeAuth
	notes  *noteLog
}

func newHarness(t *testing.T, user *domain.UserIdentity) *harness {
	t.Helper()
	h := &harness{
		local:  newMemLocal(),
		remote: newFakeRemote(),
		auth:   &fakeAuth{user: user},
		notes:  &noteLog{},
	}
	h.start(t)
	return h
}

// start builds a cache over the harness collaborators, as a fresh session would.
func (h *harness) start(t *testing.T) SyncState {
	t.Helper()
	clock := newStepClock()
	h.cache = New(Options{
		Local:         h.local,
		Remote:        h.remote,
		Auth:          h.auth,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
		Clock:         clock.Now,
	})
	t.Cleanup(h.cache.Close)
	h.cache.Subscribe(h.notes.add)

	state, err := h.cache.Init(context.Background())
	require.NoError(t, err)
	h.flush(t)
	return state
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.cache.Flush(ctx))
}

func (h *harness) create(t *testing.T, title, content string) domain.Prompt {
	t.Helper()
	p, err := h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: title, Content: content})
	require.NoError(t, err)
	return p
}

func titles(ps []domain.Prompt) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func ptr[T any](v T) *T { return &v }
