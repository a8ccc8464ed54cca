package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

const (
	entityPrompt  = "prompt"
	entityFolder  = "folder"
	entityVersion = "version"

	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// pendingOp marks an entity whose latest local change has not been
// confirmed by the remote store. Rejected ops stay pending but are not
// retried until the entity changes locally again.
type pendingOp struct {
	Entity   string    `json:"entity"`
	ID       string    `json:"id"`
	Op       string    `json:"op"`
	Since    time.Time `json:"since"`
	Rejected bool      `json:"rejected,omitempty"`
}

func (p pendingOp) key() string { return entityKey(p.Entity, p.ID) }

func entityKey(entity, id string) string { return entity + ":" + id }

// markPendingLocked folds a new local change into the entity's pending marker
// and bumps its revision. An unconfirmed create absorbs later updates.
func (c *Cache) markPendingLocked(entity, id, op string) uint64 {
	key := entityKey(entity, id)
	if prev, ok := c.pending[key]; ok {
		switch {
		case op == opDelete:
			prev.Op = opDelete
		case prev.Op == opCreate:
		default:
			prev.Op = op
		}
		prev.Rejected = false
		c.pending[key] = prev
	} else {
		c.pending[key] = pendingOp{Entity: entity, ID: id, Op: op, Since: c.clock().UTC()}
	}
	c.revisions[key]++
	return c.revisions[key]
}

// IsPending reports whether the entity with id has unconfirmed changes.
func (c *Cache) IsPending(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id = c.resolveLocked(id)
	for _, entity := range []string{entityPrompt, entityFolder} {
		if _, ok := c.pending[entityKey(entity, id)]; ok {
			return true
		}
	}
	return false
}

// PendingCount is the number of entities awaiting remote confirmation.
func (c *Cache) PendingCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

type jobKind int

const (
	jobPrompt jobKind = iota
	jobFolder
	jobVersion
	jobReload
	jobBarrier
)

type job struct {
	kind    jobKind
	op      string
	id      string
	rev     uint64
	userID  string
	prompt  domain.Prompt
	folder  domain.Folder
	version domain.PromptVersion
	user    *domain.UserIdentity
	done    chan struct{}
}

// jobQueue is an unbounded FIFO so enqueueing never blocks a caller.
type jobQueue struct {
	mu     sync.Mutex
	items  []job
	signal chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{signal: make(chan struct{}, 1)}
}

func (q *jobQueue) push(j job) {
	q.mu.Lock()
	q.items = append(q.items, j)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *jobQueue) pop(ctx context.Context) (job, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			j := q.items[0]
			q.items[0] = job{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return j, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return job{}, false
		case <-q.signal:
		}
	}
}

// runWorker issues remote calls one at a time in enqueue order, so changes
// to the same entity reach the remote store in the order they were made.
func (c *Cache) runWorker() {
	defer close(c.done)
	for {
		j, ok := c.queue.pop(c.ctx)
		if !ok {
			return
		}
		c.execute(c.ctx, j)
	}
}

// Flush blocks until every job queued before the call has been processed.
func (c *Cache) Flush(ctx context.Context) error {
	done := make(chan struct{})
	c.queue.push(job{kind: jobBarrier, done: done})
	select {
	case <-done:
		return nil
	case <-c.done:
		return errors.New("prompt library closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPending re-queues every sync-pending entity with its current local
// state. Returns the number of jobs queued.
func (c *Cache) RetryPending(ctx context.Context) int {
	c.mu.RLock()
	uid := c.userIDLocked()
	if uid == "" || c.remote == nil {
		c.mu.RUnlock()
		return 0
	}

	ops := make([]pendingOp, 0, len(c.pending))
	for _, op := range c.pending {
		if op.Rejected {
			continue
		}
		ops = append(ops, op)
	}
	// Folders before prompts before versions, oldest first, so references
	// resolve to remote ids.
	rank := map[string]int{entityFolder: 0, entityPrompt: 1, entityVersion: 2}
	sort.Slice(ops, func(i, j int) bool {
		if rank[ops[i].Entity] != rank[ops[j].Entity] {
			return rank[ops[i].Entity] < rank[ops[j].Entity]
		}
		return ops[i].Since.Before(ops[j].Since)
	})

	jobs := make([]job, 0, len(ops))
	for _, op := range ops {
		rev := c.revisions[op.key()]
		switch op.Entity {
		case entityPrompt:
			j := job{kind: jobPrompt, op: op.Op, id: op.ID, rev: rev, userID: uid}
			if op.Op != opDelete {
				p, ok := c.prompts[op.ID]
				if !ok {
					continue
				}
				j.prompt = p.Clone()
			}
			jobs = append(jobs, j)
		case entityFolder:
			j := job{kind: jobFolder, op: op.Op, id: op.ID, rev: rev, userID: uid}
			if op.Op != opDelete {
				f, ok := c.folders[op.ID]
				if !ok {
					continue
				}
				j.folder = f.Clone()
			}
			jobs = append(jobs, j)
		case entityVersion:
			if v, ok := c.findVersionLocked(op.ID); ok {
				jobs = append(jobs, job{kind: jobVersion, op: opCreate, id: op.ID, rev: rev, userID: uid, version: v})
			}
		}
	}
	c.mu.RUnlock()

	for _, j := range jobs {
		c.queue.push(j)
	}
	if len(jobs) > 0 {
		c.log.Info("Re-queued sync-pending changes", zap.Int("jobs", len(jobs)))
	}
	return len(jobs)
}

func (c *Cache) findVersionLocked(id string) (domain.PromptVersion, bool) {
	for _, vs := range c.versions {
		for _, v := range vs {
			if v.ID == id {
				return v, true
			}
		}
	}
	return domain.PromptVersion{}, false
}

// enqueueLocked queues a remote job when a user is signed in. Without one the
// change simply stays pending until the next sign-in.
func (c *Cache) enqueueLocked(j job) {
	uid := c.userIDLocked()
	if uid == "" || c.remote == nil {
		return
	}
	j.userID = uid
	c.queue.push(j)
}

func (c *Cache) execute(ctx context.Context, j job) {
	switch j.kind {
	case jobBarrier:
		close(j.done)
	case jobReload:
		if c.reload(ctx, j.user) != StateLocalOnly {
			c.RetryPending(ctx)
		}
	case jobPrompt:
		c.syncPrompt(ctx, j)
	case jobFolder:
		c.syncFolder(ctx, j)
	case jobVersion:
		c.syncVersion(ctx, j)
	}
}

// call runs fn under the retry policy and the optional rate limiter.
// Rejections are not retried.
func (c *Cache) call(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(
		func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !isRejected(err) }),
	)
}

func (c *Cache) syncPrompt(ctx context.Context, j job) {
	c.mu.RLock()
	id := c.resolveLocked(j.id)
	p := j.prompt
	p.ID = id
	folderReady := c.resolveFolderRefLocked(&p.FolderID)
	c.mu.RUnlock()

	var err error
	switch j.op {
	case opCreate:
		if !IsLocalID(id) {
			// Already inserted by an earlier attempt; send the latest state instead.
			err = c.call(ctx, func(ctx context.Context) error { return c.remote.UpdatePrompt(ctx, j.userID, id, p) })
			break
		}
		var created domain.Prompt
		err = c.call(ctx, func(ctx context.Context) error {
			var cerr error
			created, cerr = c.remote.InsertPrompt(ctx, j.userID, p)
			return cerr
		})
		if err == nil {
			c.confirmPromptCreate(ctx, j, id, created, folderReady)
			c.syncSucceeded(entityPrompt, j.op)
			return
		}
	case opUpdate:
		if IsLocalID(id) {
			// Insert has not landed; the pending create carries this change.
			return
		}
		err = c.call(ctx, func(ctx context.Context) error { return c.remote.UpdatePrompt(ctx, j.userID, id, p) })
	case opDelete:
		if IsLocalID(id) {
			c.clearPending(ctx, entityPrompt, j.id, 0)
			return
		}
		err = c.call(ctx, func(ctx context.Context) error { return c.remote.DeletePrompt(ctx, j.userID, id) })
	}

	if err != nil {
		c.syncFailed(ctx, entityPrompt, j.op, id, j.rev, err)
		return
	}
	if folderReady {
		c.clearPending(ctx, entityPrompt, id, j.rev)
	}
	c.syncSucceeded(entityPrompt, j.op)
}

// confirmPromptCreate swaps the local id for the remote one. Only when no
// newer local change exists does the remote row's timestamps replace ours;
// a stale echo never overwrites fields edited after the job was queued.
func (c *Cache) confirmPromptCreate(ctx context.Context, j job, localID string, created domain.Prompt, folderReady bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remoteID := created.ID
	if remoteID == "" {
		remoteID = localID
	}
	if remoteID != localID {
		c.aliases[localID] = remoteID
	}

	p, ok := c.prompts[localID]
	if !ok {
		// Deleted locally while the insert was in flight; the queued delete
		// will follow the alias.
		c.renameKeyLocked(entityPrompt, localID, remoteID)
		c.persistLocked(ctx, KeyPending)
		return
	}

	key := entityKey(entityPrompt, localID)
	current := c.revisions[key]
	if remoteID != localID {
		c.renamePromptLocked(localID, remoteID)
		key = entityKey(entityPrompt, remoteID)
		p = c.prompts[remoteID]
	}

	if current == j.rev {
		if !created.CreatedAt.IsZero() {
			p.CreatedAt = created.CreatedAt
		}
		if !created.UpdatedAt.IsZero() {
			p.UpdatedAt = created.UpdatedAt
		}
		c.prompts[remoteID] = p
		if folderReady {
			delete(c.pending, key)
		} else {
			c.setPendingOpLocked(key, opUpdate)
		}
	} else {
		c.setPendingOpLocked(key, opUpdate)
	}
	c.persistLocked(ctx, KeyPrompts, KeyFavorites, KeyVersions, KeyPending)
	c.rec.PendingCount(len(c.pending))
}

func (c *Cache) setPendingOpLocked(key, op string) {
	if prev, ok := c.pending[key]; ok && prev.Op != opDelete {
		prev.Op = op
		c.pending[key] = prev
	}
}

func (c *Cache) renamePromptLocked(from, to string) {
	p := c.prompts[from]
	delete(c.prompts, from)
	p.ID = to
	c.prompts[to] = p

	if _, ok := c.favorites[from]; ok {
		delete(c.favorites, from)
		c.favorites[to] = struct{}{}
	}
	if vs, ok := c.versions[from]; ok {
		delete(c.versions, from)
		for i := range vs {
			vs[i].PromptID = to
		}
		c.versions[to] = vs
	}
	c.renameKeyLocked(entityPrompt, from, to)
}

func (c *Cache) renameFolderLocked(from, to string) {
	f := c.folders[from]
	delete(c.folders, from)
	f.ID = to
	c.folders[to] = f

	for id, p := range c.prompts {
		if p.InFolder(from) {
			ref := to
			p.FolderID = &ref
			c.prompts[id] = p
		}
	}
	for id, child := range c.folders {
		if child.ParentID != nil && *child.ParentID == from {
			ref := to
			child.ParentID = &ref
			c.folders[id] = child
		}
	}
	c.renameKeyLocked(entityFolder, from, to)
}

func (c *Cache) renameKeyLocked(entity, from, to string) {
	oldKey, newKey := entityKey(entity, from), entityKey(entity, to)
	if op, ok := c.pending[oldKey]; ok {
		delete(c.pending, oldKey)
		op.ID = to
		c.pending[newKey] = op
	}
	if rev, ok := c.revisions[oldKey]; ok {
		delete(c.revisions, oldKey)
		c.revisions[newKey] = rev
	}
}

// resolveFolderRefLocked rewrites a folder reference to its remote id. It
// reports false when the folder itself has not reached the remote store; the
// reference is then sent as nil and the entity stays pending.
func (c *Cache) resolveFolderRefLocked(ref **string) bool {
	if *ref == nil {
		return true
	}
	id := c.resolveLocked(**ref)
	if IsLocalID(id) {
		*ref = nil
		return false
	}
	*ref = &id
	return true
}

func (c *Cache) syncFolder(ctx context.Context, j job) {
	c.mu.RLock()
	id := c.resolveLocked(j.id)
	f := j.folder
	f.ID = id
	parentReady := c.resolveFolderRefLocked(&f.ParentID)
	c.mu.RUnlock()

	var err error
	switch j.op {
	case opCreate:
		if !IsLocalID(id) {
			err = c.call(ctx, func(ctx context.Context) error { return c.remote.UpdateFolder(ctx, j.userID, id, f) })
			break
		}
		var created domain.Folder
		err = c.call(ctx, func(ctx context.Context) error {
			var cerr error
			created, cerr = c.remote.InsertFolder(ctx, j.userID, f)
			return cerr
		})
		if err == nil {
			c.confirmFolderCreate(ctx, j, id, created, parentReady)
			c.syncSucceeded(entityFolder, j.op)
			return
		}
	case opUpdate:
		if IsLocalID(id) {
			return
		}
		err = c.call(ctx, func(ctx context.Context) error { return c.remote.UpdateFolder(ctx, j.userID, id, f) })
	case opDelete:
		if IsLocalID(id) {
			c.clearPending(ctx, entityFolder, j.id, 0)
			return
		}
		err = c.call(ctx, func(ctx context.Context) error { return c.remote.DeleteFolder(ctx, j.userID, id) })
	}

	if err != nil {
		c.syncFailed(ctx, entityFolder, j.op, id, j.rev, err)
		return
	}
	if parentReady {
		c.clearPending(ctx, entityFolder, id, j.rev)
	}
	c.syncSucceeded(entityFolder, j.op)
}

func (c *Cache) confirmFolderCreate(ctx context.Context, j job, localID string, created domain.Folder, parentReady bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remoteID := created.ID
	if remoteID == "" {
		remoteID = localID
	}
	if remoteID != localID {
		c.aliases[localID] = remoteID
	}
	f, ok := c.folders[localID]
	if !ok {
		c.renameKeyLocked(entityFolder, localID, remoteID)
		c.persistLocked(ctx, KeyPending)
		return
	}

	key := entityKey(entityFolder, localID)
	current := c.revisions[key]
	if remoteID != localID {
		c.renameFolderLocked(localID, remoteID)
		key = entityKey(entityFolder, remoteID)
		f = c.folders[remoteID]
	}
	if current == j.rev {
		if !created.CreatedAt.IsZero() {
			f.CreatedAt = created.CreatedAt
		}
		if !created.UpdatedAt.IsZero() {
			f.UpdatedAt = created.UpdatedAt
		}
		c.folders[remoteID] = f
		if parentReady {
			delete(c.pending, key)
		} else {
			c.setPendingOpLocked(key, opUpdate)
		}
	} else {
		c.setPendingOpLocked(key, opUpdate)
	}
	c.persistLocked(ctx, KeyPrompts, KeyFolders, KeyPending)
	c.rec.PendingCount(len(c.pending))
}

func (c *Cache) syncVersion(ctx context.Context, j job) {
	c.mu.RLock()
	v := j.version
	v.PromptID = c.resolveLocked(v.PromptID)
	c.mu.RUnlock()

	if IsLocalID(v.PromptID) {
		// The prompt has not reached the remote store yet.
		return
	}
	err := c.call(ctx, func(ctx context.Context) error { return c.remote.InsertPromptVersion(ctx, j.userID, v) })
	if err != nil {
		c.syncFailed(ctx, entityVersion, opCreate, v.ID, j.rev, err)
		return
	}
	c.clearPending(ctx, entityVersion, v.ID, 0)
	c.syncSucceeded(entityVersion, opCreate)
}

// clearPending drops the pending marker when rev still matches the entity's
// revision. rev 0 clears unconditionally.
func (c *Cache) clearPending(ctx context.Context, entity, id string, rev uint64) {
	c.mu.Lock()
	key := entityKey(entity, c.resolveLocked(id))
	if _, ok := c.pending[key]; ok && (rev == 0 || c.revisions[key] == rev) {
		delete(c.pending, key)
		c.persistLocked(ctx, KeyPending)
	}
	n := len(c.pending)
	c.mu.Unlock()
	c.rec.PendingCount(n)
}

func (c *Cache) syncSucceeded(entity, op string) {
	c.mu.Lock()
	if c.state == StateOffline {
		c.state = StateSynced
	}
	c.mu.Unlock()
	c.rec.SyncResult(entity, op, nil)
}

// syncFailed keeps the local change and reports a warning. It never rolls
// back. A rejection parks the pending op at rev so retries skip it.
func (c *Cache) syncFailed(ctx context.Context, entity, op, id string, rev uint64, err error) {
	c.mu.Lock()
	if isRejected(err) {
		key := entityKey(entity, c.resolveLocked(id))
		if prev, ok := c.pending[key]; ok && (rev == 0 || c.revisions[key] == rev) {
			prev.Rejected = true
			c.pending[key] = prev
			c.persistLocked(ctx, KeyPending)
		}
	} else if c.state == StateSynced {
		c.state = StateOffline
	}
	c.mu.Unlock()

	c.rec.SyncResult(entity, op, err)
	c.log.Warn("Remote sync failed, change kept locally",
		zap.String("entity", entity), zap.String("op", op), zap.String("id", id), zap.Error(err))

	msg := fmt.Sprintf("Saved locally; %s will sync when the connection is back", entity)
	if isRejected(err) {
		msg = fmt.Sprintf("Saved locally, but the server rejected the %s %s", entity, op)
	}
	c.notify(LevelWarning, op, entity, id, msg)
}
