package library

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
)

var alice = &domain.UserIdentity{UID: "user-alice", Email: "alice@example.com"}

func TestCreatePrompt_VisibleBeforeRemoteConfirms(t *testing.T) {
	h := newHarness(t, alice)
	gate := make(chan struct{})
	h.remote.mu.Lock()
	h.remote.gate = gate
	h.remote.mu.Unlock()

	p := h.create(t, "Summarize", "Summarize the text")
	assert.True(t, IsLocalID(p.ID))
	assert.Equal(t, domain.StatusDraft, p.Status)
	assert.Equal(t, domain.InitialVersion, p.Version)
	assert.True(t, h.cache.IsPending(p.ID))

	list, err := h.cache.ListPrompts(domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Summarize"}, titles(list))

	close(gate)
	h.flush(t)

	list, err = h.cache.ListPrompts(domain.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p-1", list[0].ID)
	assert.False(t, h.cache.IsPending("p-1"))
	assert.Equal(t, 0, h.cache.PendingCount())

	// The local id keeps resolving after the swap.
	got, ok := h.cache.GetPrompt(p.ID)
	require.True(t, ok)
	assert.Equal(t, "p-1", got.ID)
}

func TestCreatePrompt_Validation(t *testing.T) {
	h := newHarness(t, alice)

	_, err := h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "  ", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "T", Content: ""})
	assert.ErrorIs(t, err, domain.ErrValidation)

	missing := "nope"
	_, err = h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "T", Content: "c", FolderID: &missing})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrFolderNotFound)

	list, err := h.cache.ListPrompts(domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Len(t, h.notes.levels(LevelError), 3)
	assert.Equal(t, 0, h.remote.callCount())
}

func TestUpdatePrompt_ContentChangeBumpsVersion(t *testing.T) {
	h := newHarness(t, alice)
	p := h.create(t, "A", "hello")
	h.flush(t)

	updated, err := h.cache.UpdatePrompt(context.Background(), p.ID, domain.PromptPatch{
		Content:    ptr("hello world"),
		ChangeNote: "expand",
	})
	require.NoError(t, err)
	assert.Equal(t, "v1.0.1", updated.Version)
	assert.Equal(t, "hello world", updated.Content)
	h.flush(t)

	versions, err := h.cache.Versions(context.Background(), updated.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "hello", versions[0].Content)
	assert.Equal(t, "v1.0.0", versions[0].Version)
	assert.Equal(t, "expand", versions[0].ChangeNote)

	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	require.Len(t, h.remote.versions, 1)
	assert.Equal(t, "p-1", h.remote.versions[0].PromptID)
	assert.Equal(t, "hello world", h.remote.prompts["p-1"].Content)
	assert.Equal(t, "v1.0.1", h.remote.prompts["p-1"].Version)
}

func TestUpdatePrompt_MetadataKeepsVersion(t *testing.T) {
	h := newHarness(t, alice)
	p, err := h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "A", Content: "c", Version: "v1.0.9"})
	require.NoError(t, err)

	p, err = h.cache.UpdatePrompt(context.Background(), p.ID, domain.PromptPatch{Title: ptr("B"), Rating: ptr(9.0)})
	require.NoError(t, err)
	assert.Equal(t, "v1.0.9", p.Version)
	assert.Equal(t, 5.0, p.Rating)

	p, err = h.cache.UpdatePrompt(context.Background(), p.ID, domain.PromptPatch{Content: ptr("d")})
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", p.Version)
}

func TestUpdatePrompt_NotFound(t *testing.T) {
	h := newHarness(t, alice)
	_, err := h.cache.UpdatePrompt(context.Background(), "missing", domain.PromptPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
}

func TestArchivedPromptsLeaveDefaultListing(t *testing.T) {
	h := newHarness(t, alice)
	p := h.create(t, "Old", "c")
	h.create(t, "Fresh", "c")

	_, err := h.cache.UpdatePrompt(context.Background(), p.ID, domain.PromptPatch{Status: ptr(domain.StatusArchived)})
	require.NoError(t, err)

	list, err := h.cache.ListPrompts(domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fresh"}, titles(list))

	list, err = h.cache.ListPrompts(domain.Filter{Status: domain.StatusFilterArchived})
	require.NoError(t, err)
	assert.Equal(t, []string{"Old"}, titles(list))

	// The archived pseudo-folder overrides the status filter.
	list, err = h.cache.ListPrompts(domain.Filter{Folder: domain.FolderArchived, Status: domain.StatusFilterActive})
	require.NoError(t, err)
	assert.Equal(t, []string{"Old"}, titles(list))
}

func TestStatusFilterPartition(t *testing.T) {
	h := newHarness(t, nil)
	statuses := []domain.Status{domain.StatusDraft, domain.StatusActive, domain.StatusArchived, domain.StatusActive, domain.StatusArchived}
	for i, s := range statuses {
		_, err := h.cache.CreatePrompt(context.Background(), domain.PromptInput{
			Title: fmt.Sprintf("p%d", i), Content: "c", Status: s,
		})
		require.NoError(t, err)
	}

	all, err := h.cache.ListPrompts(domain.Filter{Status: domain.StatusFilterAll})
	require.NoError(t, err)
	archived, err := h.cache.ListPrompts(domain.Filter{Status: domain.StatusFilterArchived})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Len(t, archived, 2)
	for _, p := range all {
		assert.NotEqual(t, domain.StatusArchived, p.Status)
	}
	for _, p := range archived {
		assert.Equal(t, domain.StatusArchived, p.Status)
	}
}

func TestListPrompts_SearchAndSort(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "beta", Content: "c", Tags: []string{"Email"}})
	require.NoError(t, err)
	_, err = h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "Alpha", Content: "write an EMAIL"})
	require.NoError(t, err)
	_, err = h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "gamma", Content: "c"})
	require.NoError(t, err)

	list, err := h.cache.ListPrompts(domain.Filter{Search: "email", Sort: domain.SortTitle, Order: domain.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "beta"}, titles(list))

	list, err = h.cache.ListPrompts(domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma", "Alpha", "beta"}, titles(list))

	_, err = h.cache.ListPrompts(domain.Filter{Sort: "owner"})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestToggleFavorite_TwiceRestores(t *testing.T) {
	h := newHarness(t, alice)
	p := h.create(t, "A", "c")
	h.flush(t)
	before, _ := h.cache.GetPrompt(p.ID)

	fav, err := h.cache.ToggleFavorite(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, fav.IsFavorite)
	assert.Equal(t, []string{"p-1"}, h.cache.Favorites())

	list, err := h.cache.ListPrompts(domain.Filter{Folder: domain.FolderFavorites})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(list))

	fav, err = h.cache.ToggleFavorite(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, fav.IsFavorite)
	assert.Empty(t, h.cache.Favorites())
	assert.Equal(t, before.UpdatedAt, fav.UpdatedAt)
	assert.Equal(t, before.Version, fav.Version)

	h.flush(t)
	h.remote.mu.Lock()
	assert.False(t, h.remote.prompts["p-1"].IsFavorite)
	h.remote.mu.Unlock()
}

func TestRecordRunAndView(t *testing.T) {
	h := newHarness(t, alice)
	p := h.create(t, "A", "c")

	_, err := h.cache.RecordRun(context.Background(), p.ID)
	require.NoError(t, err)
	_, err = h.cache.RecordRun(context.Background(), p.ID)
	require.NoError(t, err)
	got, err := h.cache.RecordView(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RunCount)
	assert.Equal(t, 1, got.ViewCount)

	h.flush(t)
	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	assert.Equal(t, 2, h.remote.prompts["p-1"].RunCount)
	assert.Equal(t, 1, h.remote.prompts["p-1"].ViewCount)
}

func TestDuplicatePrompt(t *testing.T) {
	h := newHarness(t, nil)
	p, err := h.cache.CreatePrompt(context.Background(), domain.PromptInput{
		Title: "A", Content: "c", Status: domain.StatusActive, Tags: []string{"x"},
	})
	require.NoError(t, err)

	dup, err := h.cache.DuplicatePrompt(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, dup.ID)
	assert.Equal(t, "A (Copy)", dup.Title)
	assert.Equal(t, domain.StatusDraft, dup.Status)
	assert.Equal(t, []string{"x"}, dup.Tags)
}

func TestDeletePrompt_RemovesEverywhere(t *testing.T) {
	h := newHarness(t, alice)
	p := h.create(t, "A", "c")
	h.flush(t)
	_, err := h.cache.ToggleFavorite(context.Background(), p.ID)
	require.NoError(t, err)

	require.NoError(t, h.cache.DeletePrompt(context.Background(), p.ID))
	_, ok := h.cache.GetPrompt(p.ID)
	assert.False(t, ok)
	assert.Empty(t, h.cache.Favorites())

	h.flush(t)
	h.remote.mu.Lock()
	assert.Empty(t, h.remote.prompts)
	h.remote.mu.Unlock()
	assert.Equal(t, 0, h.cache.PendingCount())

	assert.ErrorIs(t, h.cache.DeletePrompt(context.Background(), p.ID), domain.ErrPromptNotFound)
}

func TestDeletePrompt_BeforeInsertLands(t *testing.T) {
	h := newHarness(t, alice)
	gate := make(chan struct{})
	h.remote.mu.Lock()
	h.remote.gate = gate
	h.remote.mu.Unlock()

	p := h.create(t, "A", "c")
	require.NoError(t, h.cache.DeletePrompt(context.Background(), p.ID))

	close(gate)
	h.flush(t)

	h.remote.mu.Lock()
	assert.Empty(t, h.remote.prompts)
	h.remote.mu.Unlock()
	assert.Equal(t, 0, h.cache.PendingCount())
}

func TestFolderDelete_ReassignsPrompts(t *testing.T) {
	h := newHarness(t, alice)
	work, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Work"})
	require.NoError(t, err)
	child, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Drafts", ParentID: &work.ID})
	require.NoError(t, err)
	p, err := h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "A", Content: "c", FolderID: &work.ID})
	require.NoError(t, err)
	h.flush(t)

	got, _ := h.cache.GetPrompt(p.ID)
	require.NotNil(t, got.FolderID)
	workID := *got.FolderID
	assert.False(t, IsLocalID(workID))

	require.NoError(t, h.cache.DeleteFolder(context.Background(), workID))

	got, ok := h.cache.GetPrompt(p.ID)
	require.True(t, ok)
	assert.Nil(t, got.FolderID)
	c, ok := h.cache.GetFolder(child.ID)
	require.True(t, ok)
	assert.Nil(t, c.ParentID)
	assert.Len(t, h.cache.Folders(), 1)

	h.flush(t)
	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	assert.Len(t, h.remote.prompts, 1)
	for _, rp := range h.remote.prompts {
		assert.Nil(t, rp.FolderID)
	}
}

func TestFolder_CycleRejected(t *testing.T) {
	h := newHarness(t, nil)
	a, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "A"})
	require.NoError(t, err)
	b, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "B", ParentID: &a.ID})
	require.NoError(t, err)

	_, err = h.cache.UpdateFolder(context.Background(), a.ID, domain.FolderPatch{ParentID: &b.ID})
	assert.ErrorIs(t, err, domain.ErrFolderCycle)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.cache.UpdateFolder(context.Background(), a.ID, domain.FolderPatch{ParentID: &a.ID})
	assert.ErrorIs(t, err, domain.ErrFolderCycle)

	got, _ := h.cache.GetFolder(a.ID)
	assert.Nil(t, got.ParentID)
}

func TestFolder_OneLevelOfNesting(t *testing.T) {
	h := newHarness(t, nil)
	top, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Top"})
	require.NoError(t, err)
	child, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Child", ParentID: &top.ID})
	require.NoError(t, err)
	other, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Other"})
	require.NoError(t, err)

	_, err = h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Grandchild", ParentID: &child.ID})
	assert.ErrorIs(t, err, domain.ErrFolderDepth)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.cache.UpdateFolder(context.Background(), other.ID, domain.FolderPatch{ParentID: &child.ID})
	assert.ErrorIs(t, err, domain.ErrFolderDepth)

	// Top already has a child, so it cannot itself be nested.
	_, err = h.cache.UpdateFolder(context.Background(), top.ID, domain.FolderPatch{ParentID: &other.ID})
	assert.ErrorIs(t, err, domain.ErrFolderDepth)

	moved, err := h.cache.UpdateFolder(context.Background(), other.ID, domain.FolderPatch{ParentID: &top.ID})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Len(t, h.cache.Folders(), 3)
}

func TestFolder_ChildrenAndCounts(t *testing.T) {
	h := newHarness(t, nil)
	root, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Root"})
	require.NoError(t, err)
	_, err = h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "zeta", ParentID: &root.ID})
	require.NoError(t, err)
	_, err = h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Alpha", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "a", Content: "c", FolderID: &root.ID})
	require.NoError(t, err)
	_, err = h.cache.CreatePrompt(context.Background(), domain.PromptInput{
		Title: "b", Content: "c", FolderID: &root.ID, Status: domain.StatusArchived,
	})
	require.NoError(t, err)

	children := h.cache.GetChildren(root.ID)
	require.Len(t, children, 2)
	assert.Equal(t, "Alpha", children[0].Name)
	assert.Equal(t, "zeta", children[1].Name)

	roots := h.cache.GetChildren("")
	require.Len(t, roots, 1)
	assert.Equal(t, "Root", roots[0].Name)

	assert.Equal(t, 1, h.cache.PromptCount(root.ID))

	list, err := h.cache.ListPrompts(domain.Filter{Folder: root.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, titles(list))
}

func TestRemoteFailure_KeepsLocalChange(t *testing.T) {
	h := newHarness(t, alice)
	p := h.create(t, "A", "c")
	h.flush(t)

	h.remote.setFail(fmt.Errorf("%w: connection refused", domain.ErrRemoteUnavailable))
	got, err := h.cache.UpdatePrompt(context.Background(), p.ID, domain.PromptPatch{Title: ptr("B")})
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)
	h.flush(t)

	got, _ = h.cache.GetPrompt(p.ID)
	assert.Equal(t, "B", got.Title)
	assert.True(t, h.cache.IsPending(p.ID))
	assert.Equal(t, StateOffline, h.cache.State())
	assert.NotEmpty(t, h.notes.levels(LevelWarning))
	assert.Empty(t, h.notes.levels(LevelError))

	h.remote.setFail(nil)
	assert.Equal(t, 1, h.cache.RetryPending(context.Background()))
	h.flush(t)

	assert.False(t, h.cache.IsPending(p.ID))
	assert.Equal(t, StateSynced, h.cache.State())
	h.remote.mu.Lock()
	assert.Equal(t, "B", h.remote.prompts["p-1"].Title)
	h.remote.mu.Unlock()
}

func TestRemoteRejection_IsNotRetried(t *testing.T) {
	h := newHarness(t, alice)
	h.remote.setFail(fmt.Errorf("%w: check violation", domain.ErrRemoteRejected))

	h.create(t, "A", "c")
	h.flush(t)

	assert.Equal(t, 1, h.remote.callCount())
	assert.Equal(t, StateSynced, h.cache.State())
	warnings := h.notes.levels(LevelWarning)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1].Message, "rejected")
}

func TestRemoteRejection_ParkedUntilNextEdit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, alice)
	h.remote.setFail(fmt.Errorf("%w: check violation", domain.ErrRemoteRejected))

	p := h.create(t, "A", "c")
	h.flush(t)
	calls := h.remote.callCount()
	warnings := len(h.notes.levels(LevelWarning))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, h.cache.RetryPending(ctx))
		h.flush(t)
	}
	assert.Equal(t, calls, h.remote.callCount())
	assert.Len(t, h.notes.levels(LevelWarning), warnings)
	assert.True(t, h.cache.IsPending(p.ID))

	// The parked op survives a restart.
	h.remote.setFail(nil)
	h.start(t)
	assert.True(t, h.cache.IsPending(p.ID))
	h.remote.mu.Lock()
	assert.Empty(t, h.remote.prompts)
	h.remote.mu.Unlock()

	_, err := h.cache.UpdatePrompt(ctx, p.ID, domain.PromptPatch{Title: ptr("A fixed")})
	require.NoError(t, err)
	assert.Equal(t, 1, h.cache.RetryPending(ctx))
	h.flush(t)

	assert.False(t, h.cache.IsPending(p.ID))
	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	require.Len(t, h.remote.prompts, 1)
	for _, rp := range h.remote.prompts {
		assert.Equal(t, "A fixed", rp.Title)
	}
}

func TestStaleEchoDoesNotOverwriteNewerEdit(t *testing.T) {
	h := newHarness(t, alice)
	gate := make(chan struct{})
	h.remote.mu.Lock()
	h.remote.gate = gate
	h.remote.mu.Unlock()

	p := h.create(t, "first", "c")
	_, err := h.cache.UpdatePrompt(context.Background(), p.ID, domain.PromptPatch{Title: ptr("second")})
	require.NoError(t, err)

	close(gate)
	h.flush(t)

	got, ok := h.cache.GetPrompt(p.ID)
	require.True(t, ok)
	assert.Equal(t, "p-1", got.ID)
	assert.Equal(t, "second", got.Title)
	assert.False(t, h.cache.IsPending(got.ID))

	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	assert.Len(t, h.remote.prompts, 1)
	assert.Equal(t, "second", h.remote.prompts["p-1"].Title)
}

func TestInit_OfflineKeepsSnapshot(t *testing.T) {
	h := newHarness(t, alice)
	h.create(t, "A", "c")
	h.flush(t)

	h.remote.setFail(fmt.Errorf("%w: dial tcp", domain.ErrRemoteUnavailable))
	state := h.start(t)
	assert.Equal(t, StateOffline, state)

	list, err := h.cache.ListPrompts(domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(list))
	assert.NotEmpty(t, h.notes.levels(LevelWarning))
}

func TestInit_ReplacesSnapshotWithRemote(t *testing.T) {
	h := newHarness(t, alice)
	h.create(t, "A", "c")
	h.flush(t)

	h.remote.mu.Lock()
	h.remote.prompts["p-9"] = domain.Prompt{
		ID: "p-9", UserID: alice.UID, Title: "From elsewhere", Content: "c",
		Status: domain.StatusActive, Version: "v1.0.0", UpdatedAt: time.Now(),
	}
	h.remote.mu.Unlock()

	assert.Equal(t, StateSynced, h.start(t))
	list, err := h.cache.ListPrompts(domain.Filter{Sort: domain.SortTitle, Order: domain.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "From elsewhere"}, titles(list))
}

func TestInit_PendingEditsSurviveReload(t *testing.T) {
	h := newHarness(t, alice)
	p := h.create(t, "A", "c")
	h.flush(t)

	h.remote.setFail(fmt.Errorf("%w: timeout", domain.ErrRemoteUnavailable))
	_, err := h.cache.UpdatePrompt(context.Background(), p.ID, domain.PromptPatch{Title: ptr("edited offline")})
	require.NoError(t, err)
	h.flush(t)

	h.remote.setFail(nil)
	assert.Equal(t, StateSynced, h.start(t))

	got, ok := h.cache.GetPrompt("p-1")
	require.True(t, ok)
	assert.Equal(t, "edited offline", got.Title)
	assert.False(t, h.cache.IsPending("p-1"))
	h.remote.mu.Lock()
	assert.Equal(t, "edited offline", h.remote.prompts["p-1"].Title)
	h.remote.mu.Unlock()
}

func TestLocalOnly_SignInPushesPendingChanges(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, StateLocalOnly, h.cache.State())

	folder, err := h.cache.CreateFolder(context.Background(), domain.FolderInput{Name: "Work"})
	require.NoError(t, err)
	_, err = h.cache.CreatePrompt(context.Background(), domain.PromptInput{Title: "A", Content: "c", FolderID: &folder.ID})
	require.NoError(t, err)
	h.flush(t)
	assert.Equal(t, 0, h.remote.callCount())
	assert.Equal(t, 2, h.cache.PendingCount())

	h.auth.set(alice)
	// The reload re-queues pending work behind the first barrier.
	h.flush(t)
	h.flush(t)

	assert.Equal(t, StateSynced, h.cache.State())
	assert.Equal(t, 0, h.cache.PendingCount())
	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	require.Len(t, h.remote.folders, 1)
	require.Len(t, h.remote.prompts, 1)
	for _, rp := range h.remote.prompts {
		require.NotNil(t, rp.FolderID)
		assert.Equal(t, "f-1", *rp.FolderID)
	}
}

func TestIdentityChange_DiscardsOtherUsersSnapshot(t *testing.T) {
	h := newHarness(t, alice)
	h.create(t, "alice's", "c")
	h.flush(t)

	h.auth.set(&domain.UserIdentity{UID: "user-bob"})
	h.flush(t)
	h.flush(t)

	list, err := h.cache.ListPrompts(domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, "user-bob", h.cache.User().UID)

	h.auth.set(nil)
	h.flush(t)
	assert.Equal(t, StateLocalOnly, h.cache.State())
}

func TestPreferencesPersist(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.cache.SetView(context.Background(), "list"))
	require.NoError(t, h.cache.SetSort(context.Background(), domain.SortTitle, domain.SortAsc))
	assert.ErrorIs(t, h.cache.SetSort(context.Background(), "bogus", domain.SortAsc), domain.ErrInvalidFilter)

	h.start(t)
	prefs := h.cache.Preferences()
	assert.Equal(t, "list", prefs.View)
	assert.Equal(t, domain.SortTitle, prefs.Sort)
	assert.Equal(t, domain.SortAsc, prefs.Order)
}
