package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/voiceclone/internal/database/testutil"
	apperrors "github.com/charlesng35/voiceclone/pkg/errors"
)

func newModelService(t *testing.T) *ModelService {
	t.Helper()

	svc, err := NewModelService(testutil.MustOpenTestDB(t))
	require.NoError(t, err)
	return svc
}

func TestModelServiceCreateAndGet(t *testing.T) {
	svc := newModelService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateModelInput{
		Title:         "  Narrator  ",
		Description:   "calm narration voice",
		RemoteModelID: "remote-1",
		State:         "trained",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Narrator", created.Title)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "remote-1", got.RemoteModelID)
	require.True(t, got.Ready())
}

func TestModelServiceCreateRejectsDuplicateTitle(t *testing.T) {
	svc := newModelService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateModelInput{Title: "Narrator", RemoteModelID: "remote-1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateModelInput{Title: "Narrator", RemoteModelID: "remote-2"})
	require.ErrorIs(t, err, ErrDuplicateTitle)

	exists, err := svc.TitleExists(ctx, "Narrator")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestModelServiceGetNotFound(t *testing.T) {
	svc := newModelService(t)

	_, err := svc.Get(context.Background(), "missing-id")
	require.ErrorIs(t, err, ErrModelNotFound)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 404, appErr.StatusCode)
}

func TestModelServiceResolveByIDAndTitle(t *testing.T) {
	svc := newModelService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateModelInput{Title: "Narrator", RemoteModelID: "remote-1"})
	require.NoError(t, err)

	byID, err := svc.Resolve(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, byID.ID)

	byTitle, err := svc.Resolve(ctx, "Narrator")
	require.NoError(t, err)
	require.Equal(t, created.ID, byTitle.ID)

	_, err = svc.Resolve(ctx, "Unknown Voice")
	require.ErrorIs(t, err, ErrModelNotFound)

	_, err = svc.Resolve(ctx, "   ")
	require.ErrorIs(t, err, ErrModelNotFound)
}

func TestModelServiceListNewestFirst(t *testing.T) {
	svc := newModelService(t)
	ctx := context.Background()

	for _, title := range []string{"First", "Second", "Third"} {
		_, err := svc.Create(ctx, CreateModelInput{Title: title, RemoteModelID: "remote-" + title})
		require.NoError(t, err)
	}

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.False(t, records[0].CreatedAt.Before(records[2].CreatedAt))
}

func TestModelServiceUpdate(t *testing.T) {
	svc := newModelService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateModelInput{Title: "Narrator", RemoteModelID: "remote-1"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, CreateModelInput{Title: "Announcer", RemoteModelID: "remote-2"})
	require.NoError(t, err)

	newTitle := "Storyteller"
	updated, err := svc.Update(ctx, created.ID, UpdateModelInput{Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, "Storyteller", updated.Title)

	// Renaming onto an existing title hits the unique index.
	taken := "Announcer"
	_, err = svc.Update(ctx, created.ID, UpdateModelInput{Title: &taken})
	require.ErrorIs(t, err, ErrDuplicateTitle)

	// No fields set is a no-op.
	same, err := svc.Update(ctx, other.ID, UpdateModelInput{})
	require.NoError(t, err)
	require.Equal(t, "Announcer", same.Title)
}

func TestModelServiceUpdateState(t *testing.T) {
	svc := newModelService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateModelInput{Title: "Narrator", RemoteModelID: "remote-1", State: "training"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateState(ctx, created.ID, "trained"))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "trained", got.State)

	require.ErrorIs(t, svc.UpdateState(ctx, "missing-id", "trained"), ErrModelNotFound)
}

func TestModelServiceDelete(t *testing.T) {
	svc := newModelService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateModelInput{Title: "Narrator", RemoteModelID: "remote-1"})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, deleted.ID)

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrModelNotFound)

	_, err = svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, ErrModelNotFound)
}
