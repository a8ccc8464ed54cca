// Package library keeps a user's prompts and folders available locally and
// reconciles them with the remote store in the background.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

// Snapshot keys in the LocalStore.
const (
	KeyPrompts   = "promptlib:prompts"
	KeyFolders   = "promptlib:folders"
	KeyFavorites = "promptlib:favorites"
	KeyVersions  = "promptlib:versions"
	KeyPending   = "promptlib:pending"
	KeyView      = "promptlib:view"
	KeySort      = "promptlib:sort"
	KeyOwner     = "promptlib:owner"
)

const localIDPrefix = "local_"

// SyncState describes how the cache relates to the remote store.
type SyncState string

const (
	StateLocalOnly SyncState = "local_only"
	StateOffline   SyncState = "offline"
	StateSynced    SyncState = "synced"
)

type Options struct {
	Local  LocalStore
	Remote RemoteService
	Auth   AuthProvider
	Logger *zap.Logger

	// RetryAttempts bounds each remote call. Zero means 3.
	RetryAttempts uint
	RetryDelay    time.Duration
	// Limiter paces remote calls when set.
	Limiter  *rate.Limiter
	Recorder Recorder
	Clock    func() time.Time
}

// Preferences are persisted presentation choices.
type Preferences struct {
	View  string           `json:"view"`
	Sort  domain.SortField `json:"sort"`
	Order domain.SortOrder `json:"order"`
}

// Cache is the single point of mutation and query for the active user's
// prompt library. It is safe for concurrent use.
type Cache struct {
	local   LocalStore
	remote  RemoteService
	auth    AuthProvider
	log     *zap.Logger
	rec     Recorder
	clock   func() time.Time
	limiter *rate.Limiter

	retryAttempts uint
	retryDelay    time.Duration

	notes *notifier
	queue *jobQueue

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	unsubscribeAuth func()

	mu        sync.RWMutex
	user      *domain.UserIdentity
	owner     string
	state     SyncState
	prompts   map[string]domain.Prompt
	folders   map[string]domain.Folder
	favorites map[string]struct{}
	versions  map[string][]domain.PromptVersion
	pending   map[string]pendingOp
	revisions map[string]uint64
	aliases   map[string]string
	prefs     Preferences
}

// New builds a cache and starts its sync worker. Call Init before use and
// Close when done.
func New(opt Options) *Cache {
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Recorder == nil {
		opt.Recorder = nopRecorder{}
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	if opt.RetryAttempts == 0 {
		opt.RetryAttempts = 3
	}
	if opt.RetryDelay == 0 {
		opt.RetryDelay = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		local:         opt.Local,
		remote:        opt.Remote,
		auth:          opt.Auth,
		log:           opt.Logger.Named("PromptLibrary"),
		rec:           opt.Recorder,
		clock:         opt.Clock,
		limiter:       opt.Limiter,
		retryAttempts: opt.RetryAttempts,
		retryDelay:    opt.RetryDelay,
		notes:         newNotifier(),
		queue:         newJobQueue(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		state:         StateLocalOnly,
		prefs:         Preferences{View: "grid", Sort: domain.SortUpdatedAt, Order: domain.SortDesc},
	}
	c.resetLocked()

	go c.runWorker()
	return c
}

// Close stops the sync worker. Queued jobs that have not started are dropped;
// their entities stay sync-pending in the local snapshot.
func (c *Cache) Close() {
	if c.unsubscribeAuth != nil {
		c.unsubscribeAuth()
	}
	c.cancel()
	<-c.done
}

// Subscribe registers a notification listener.
func (c *Cache) Subscribe(fn func(Notification)) (unsubscribe func()) {
	return c.notes.subscribe(fn)
}

// Init loads the local snapshot, resolves the user and, when signed in,
// replaces the snapshot with the remote set. A failed fetch is not an error:
// the local snapshot stays and StateOffline is returned.
func (c *Cache) Init(ctx context.Context) (SyncState, error) {
	c.loadSnapshot(ctx)

	if c.auth != nil && c.unsubscribeAuth == nil {
		c.unsubscribeAuth = c.auth.OnIdentityChange(c.identityChanged)
	}

	var user *domain.UserIdentity
	if c.auth != nil {
		user = c.auth.CurrentUser()
	}
	state := c.reload(ctx, user)
	if state != StateLocalOnly {
		c.RetryPending(ctx)
	}
	return state, nil
}

// State reports the current sync state.
func (c *Cache) State() SyncState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User returns the identity the cache is syncing for, or nil.
func (c *Cache) User() *domain.UserIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Cache) identityChanged(user *domain.UserIdentity) {
	if user != nil {
		u := *user
		user = &u
	}
	c.queue.push(job{kind: jobReload, user: user})
}

// reload runs steps 2-4 of initialization for user.
func (c *Cache) reload(ctx context.Context, user *domain.UserIdentity) SyncState {
	if user == nil || c.remote == nil {
		c.mu.Lock()
		c.user = user
		c.state = StateLocalOnly
		c.mu.Unlock()
		c.log.Info("No active user, running local-only")
		return StateLocalOnly
	}

	prompts, err := c.remote.ListPrompts(ctx, user.UID)
	var folders []domain.Folder
	if err == nil {
		folders, err = c.remote.ListFolders(ctx, user.UID)
	}

	c.mu.Lock()
	c.user = user
	if c.owner != "" && c.owner != user.UID {
		c.log.Warn("Local snapshot belongs to another user, discarding it",
			zap.String("previousOwner", c.owner), zap.String("userID", user.UID))
		prefs := c.prefs
		c.resetLocked()
		c.prefs = prefs
	}
	c.owner = user.UID

	if err != nil {
		c.state = StateOffline
		c.persistLocked(ctx, KeyPrompts, KeyFolders, KeyFavorites, KeyVersions, KeyPending, KeyOwner)
		c.mu.Unlock()
		c.log.Warn("Remote fetch failed, working offline", zap.String("userID", user.UID), zap.Error(err))
		c.notify(LevelWarning, "init", "", "", "Working offline: showing your last saved library")
		return StateOffline
	}

	c.mergeRemoteLocked(prompts, folders)
	c.state = StateSynced
	c.persistLocked(ctx, KeyPrompts, KeyFolders, KeyFavorites, KeyVersions, KeyPending, KeyOwner)
	pending := len(c.pending)
	c.mu.Unlock()

	c.rec.PendingCount(pending)
	c.log.Info("Prompt library loaded",
		zap.String("userID", user.UID),
		zap.Int("prompts", len(prompts)),
		zap.Int("folders", len(folders)),
		zap.Int("pending", pending))
	c.notify(LevelInfo, "init", "", "", fmt.Sprintf("Library synced: %d prompts, %d folders", len(prompts), len(folders)))
	return StateSynced
}

// mergeRemoteLocked replaces the snapshot with the remote set, then lays
// still-pending local changes back on top so unsynced edits survive.
func (c *Cache) mergeRemoteLocked(prompts []domain.Prompt, folders []domain.Folder) {
	nextPrompts := make(map[string]domain.Prompt, len(prompts))
	for _, p := range prompts {
		p.Tags = domain.NormalizeTags(p.Tags)
		nextPrompts[p.ID] = p
	}
	nextFolders := make(map[string]domain.Folder, len(folders))
	for _, f := range folders {
		nextFolders[f.ID] = f
	}

	for _, op := range c.pending {
		switch op.Entity {
		case entityPrompt:
			if op.Op == opDelete {
				delete(nextPrompts, op.ID)
			} else if p, ok := c.prompts[op.ID]; ok {
				nextPrompts[op.ID] = p
			}
		case entityFolder:
			if op.Op == opDelete {
				delete(nextFolders, op.ID)
			} else if f, ok := c.folders[op.ID]; ok {
				nextFolders[op.ID] = f
			}
		}
	}

	c.prompts = nextPrompts
	c.folders = nextFolders

	// Weak references to folders that no longer exist fall back to the root.
	for id, p := range c.prompts {
		if p.FolderID != nil {
			if _, ok := c.folders[*p.FolderID]; !ok {
				p.FolderID = nil
				c.prompts[id] = p
			}
		}
	}
	for id, f := range c.folders {
		if f.ParentID != nil {
			if _, ok := c.folders[*f.ParentID]; !ok {
				f.ParentID = nil
				c.folders[id] = f
			}
		}
	}

	c.favorites = make(map[string]struct{})
	for id, p := range c.prompts {
		if p.IsFavorite {
			c.favorites[id] = struct{}{}
		}
	}
	for promptID := range c.versions {
		if _, ok := c.prompts[promptID]; !ok {
			delete(c.versions, promptID)
		}
	}
}

func (c *Cache) resetLocked() {
	c.prompts = make(map[string]domain.Prompt)
	c.folders = make(map[string]domain.Folder)
	c.favorites = make(map[string]struct{})
	c.versions = make(map[string][]domain.PromptVersion)
	c.pending = make(map[string]pendingOp)
	c.revisions = make(map[string]uint64)
	c.aliases = make(map[string]string)
	c.owner = ""
}

// loadSnapshot restores whatever the LocalStore holds. Corrupt keys are
// logged and skipped.
func (c *Cache) loadSnapshot(ctx context.Context) {
	if c.local == nil {
		return
	}

	var (
		prompts   []domain.Prompt
		folders   []domain.Folder
		favorites []string
		versions  map[string][]domain.PromptVersion
		pending   []pendingOp
		prefs     Preferences
		owner     string
	)
	c.readKey(ctx, KeyPrompts, &prompts)
	c.readKey(ctx, KeyFolders, &folders)
	c.readKey(ctx, KeyFavorites, &favorites)
	c.readKey(ctx, KeyVersions, &versions)
	c.readKey(ctx, KeyPending, &pending)
	c.readKey(ctx, KeySort, &prefs)
	if v, ok, err := c.local.Get(ctx, KeyOwner); err == nil && ok {
		owner = v
	}
	view, hasView, _ := c.local.Get(ctx, KeyView)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	c.owner = owner
	for _, p := range prompts {
		c.prompts[p.ID] = p
	}
	for _, f := range folders {
		c.folders[f.ID] = f
	}
	for _, id := range favorites {
		if p, ok := c.prompts[id]; ok && p.IsFavorite {
			c.favorites[id] = struct{}{}
		}
	}
	for id, p := range c.prompts {
		if p.IsFavorite {
			c.favorites[id] = struct{}{}
		}
	}
	for promptID, vs := range versions {
		c.versions[promptID] = vs
	}
	for _, op := range pending {
		c.pending[op.key()] = op
	}
	if prefs.Sort.Valid() {
		c.prefs.Sort = prefs.Sort
	}
	if prefs.Order == domain.SortAsc || prefs.Order == domain.SortDesc {
		c.prefs.Order = prefs.Order
	}
	if hasView && view != "" {
		c.prefs.View = view
	}
}

func (c *Cache) readKey(ctx context.Context, key string, dst any) {
	raw, ok, err := c.local.Get(ctx, key)
	if err != nil {
		c.log.Warn("Failed to read local snapshot key", zap.String("key", key), zap.Error(err))
		return
	}
	if !ok || raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.log.Warn("Ignoring corrupt local snapshot key", zap.String("key", key), zap.Error(err))
	}
}

// persistLocked writes the named snapshot keys. A failing LocalStore never
// blocks the in-memory mutation.
func (c *Cache) persistLocked(ctx context.Context, keys ...string) {
	if c.local == nil {
		return
	}
	for _, key := range keys {
		var value any
		switch key {
		case KeyPrompts:
			value = c.sortedPromptsLocked()
		case KeyFolders:
			value = c.sortedFoldersLocked()
		case KeyFavorites:
			value = c.favoriteIDsLocked()
		case KeyVersions:
			value = c.versions
		case KeyPending:
			ops := make([]pendingOp, 0, len(c.pending))
			for _, op := range c.pending {
				ops = append(ops, op)
			}
			value = ops
		case KeySort:
			value = c.prefs
		case KeyView:
			if err := c.local.Set(ctx, key, c.prefs.View); err != nil {
				c.log.Error("Failed to persist local snapshot", zap.String("key", key), zap.Error(err))
			}
			continue
		case KeyOwner:
			if err := c.local.Set(ctx, key, c.owner); err != nil {
				c.log.Error("Failed to persist local snapshot", zap.String("key", key), zap.Error(err))
			}
			continue
		default:
			continue
		}

		data, err := json.Marshal(value)
		if err != nil {
			c.log.Error("Failed to encode local snapshot", zap.String("key", key), zap.Error(err))
			continue
		}
		if err := c.local.Set(ctx, key, string(data)); err != nil {
			c.log.Error("Failed to persist local snapshot", zap.String("key", key), zap.Error(err))
		}
	}
}

func (c *Cache) notify(level Level, op, entity, id, msg string) {
	c.notes.emit(Notification{
		Level:    level,
		Op:       op,
		Entity:   entity,
		EntityID: id,
		Message:  msg,
		At:       c.clock().UTC(),
	})
}

// validationError reports and returns a rejected mutation.
func (c *Cache) validationError(op, entity, format string, args ...any) error {
	err := fmt.Errorf("%w: "+format, append([]any{domain.ErrValidation}, args...)...)
	c.notify(LevelError, op, entity, "", err.Error())
	return err
}

func (c *Cache) userIDLocked() string {
	if c.user == nil {
		return ""
	}
	return c.user.UID
}

// resolveLocked follows local->remote id replacements.
func (c *Cache) resolveLocked(id string) string {
	for i := 0; i < 8; i++ {
		next, ok := c.aliases[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

func newLocalID() string {
	return localIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was generated locally and not yet confirmed.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

func isRejected(err error) bool {
	return errors.Is(err, domain.ErrRemoteRejected)
}
