package collection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pokedex/internal/notify"
	"pokedex/internal/pokemon"
)

var pikachu = pokemon.Entry{
	ID:        25,
	Name:      "pikachu",
	Types:     []string{"electric"},
	Abilities: []string{"static", "lightning-rod"},
	Image:     "https://img.example/25.png",
	Owner:     "u1",
}

func newTestService(t *testing.T) (*Service, *MockRepository) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestService_IsOwned(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	t.Run("owned", func(t *testing.T) {
		repo.EXPECT().FindByNameAndUser(gomock.Any(), "pikachu", "u1").Return([]Record{{ID: "r1"}}, nil)
		owned, err := svc.IsOwned(ctx, "pikachu", "u1")
		require.NoError(t, err)
		assert.True(t, owned)
	})

	t.Run("not owned", func(t *testing.T) {
		repo.EXPECT().FindByNameAndUser(gomock.Any(), "eevee", "u1").Return(nil, nil)
		owned, err := svc.IsOwned(ctx, "eevee", "u1")
		require.NoError(t, err)
		assert.False(t, owned)
	})

	t.Run("no identity skips the store", func(t *testing.T) {
		owned, err := svc.IsOwned(ctx, "pikachu", "")
		require.NoError(t, err)
		assert.False(t, owned)
	})

	t.Run("store failure", func(t *testing.T) {
		ctx, c := notify.WithCollector(ctx)
		repo.EXPECT().FindByNameAndUser(gomock.Any(), "pikachu", "u1").Return(nil, errors.New("unavailable"))
		_, err := svc.IsOwned(ctx, "pikachu", "u1")
		assert.Error(t, err)
		require.Len(t, c.Items(), 1)
		assert.Equal(t, notify.LevelError, c.Items()[0].Level)
	})
}

func TestService_Add(t *testing.T) {
	svc, repo := newTestService(t)

	t.Run("success", func(t *testing.T) {
		ctx, c := notify.WithCollector(context.Background())
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec *Record) error {
			assert.Equal(t, "pikachu", rec.Name)
			assert.Equal(t, "u1", rec.User)
			assert.Equal(t, []string{"electric"}, rec.Types)
			rec.ID = "r1"
			return nil
		})

		rec, err := svc.Add(ctx, "u1", pikachu)
		require.NoError(t, err)
		assert.Equal(t, "r1", rec.ID)
		assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), rec.CreatedAt)
		assert.Equal(t, []notify.Notification{{Level: notify.LevelSuccess, Message: "pikachu added to your collection"}}, c.Items())
	})

	t.Run("duplicate", func(t *testing.T) {
		ctx, c := notify.WithCollector(context.Background())
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(ErrAlreadyOwned)

		rec, err := svc.Add(ctx, "u1", pikachu)
		assert.ErrorIs(t, err, ErrAlreadyOwned)
		assert.Nil(t, rec)
		require.Len(t, c.Items(), 1)
		assert.Equal(t, notify.LevelError, c.Items()[0].Level)
	})

	t.Run("entry without types", func(t *testing.T) {
		entry := pikachu
		entry.Types = nil
		_, err := svc.Add(context.Background(), "u1", entry)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("no identity", func(t *testing.T) {
		_, err := svc.Add(context.Background(), "", pikachu)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
}

func TestService_Remove(t *testing.T) {
	svc, repo := newTestService(t)

	t.Run("success", func(t *testing.T) {
		ctx, c := notify.WithCollector(context.Background())
		gomock.InOrder(
			repo.EXPECT().FindByNameAndUser(gomock.Any(), "pikachu", "u1").Return([]Record{{ID: "r1", Name: "pikachu", User: "u1"}}, nil),
			repo.EXPECT().Delete(gomock.Any(), "r1").Return(nil),
		)

		require.NoError(t, svc.Remove(ctx, "pikachu", "u1"))
		assert.Equal(t, []notify.Notification{{Level: notify.LevelSuccess, Message: "pikachu removed from your collection"}}, c.Items())
	})

	t.Run("no matching record", func(t *testing.T) {
		ctx, c := notify.WithCollector(context.Background())
		repo.EXPECT().FindByNameAndUser(gomock.Any(), "pikachu", "u1").Return(nil, nil)

		err := svc.Remove(ctx, "pikachu", "u1")
		assert.ErrorIs(t, err, ErrNotFound)
		require.Len(t, c.Items(), 1)
		assert.Equal(t, notify.LevelError, c.Items()[0].Level)
	})

	t.Run("delete failure", func(t *testing.T) {
		repo.EXPECT().FindByNameAndUser(gomock.Any(), "pikachu", "u1").Return([]Record{{ID: "r1"}}, nil)
		repo.EXPECT().Delete(gomock.Any(), "r1").Return(errors.New("unavailable"))

		assert.Error(t, svc.Remove(context.Background(), "pikachu", "u1"))
	})
}

func TestService_List(t *testing.T) {
	svc, repo := newTestService(t)

	repo.EXPECT().ListByUser(gomock.Any(), "u1").Return(nil, nil)
	list, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	list, err = svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}
