package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/storage/postgres"
	"github.com/cory-johannsen/gridbrawl/internal/testutil"
)

var _ board.Provider = (*postgres.BoardRepository)(nil)

func duelBoard(description string) *board.Board {
	return &board.Board{
		Name:        "duel",
		Description: description,
		Rows:        []string{"....", ".#D.", "....", "...."},
		Items: []board.Placement{
			{Item: grid.Spawn, Position: grid.Position{X: 0, Y: 0}},
			{Item: grid.Spawn, Position: grid.Position{X: 3, Y: 3}},
			{Item: grid.Sword, Position: grid.Position{X: 2, Y: 2}},
		},
	}
}

func TestBoardRepository_RoundTrip(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	repo := postgres.NewBoardRepository(pc.Pool.DB())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, duelBoard("first")))
	got, err := repo.GetBoard(ctx, "duel")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description)
	assert.Equal(t, duelBoard("first").Rows, got.Rows)
	assert.Equal(t, duelBoard("first").Items, got.Items)

	require.NoError(t, repo.Upsert(ctx, duelBoard("second")), "upsert replaces")
	got, err = repo.GetBoard(ctx, "duel")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Description)

	list, err := repo.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, board.Summary{Name: "duel", Description: "second", Size: 4, MaxPlayers: 2}, list[0])

	require.NoError(t, repo.Delete(ctx, "duel"))
	_, err = repo.GetBoard(ctx, "duel")
	assert.ErrorIs(t, err, board.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "duel"), board.ErrNotFound)
}

func TestBoardRepository_RejectsInvalidBoard(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	repo := postgres.NewBoardRepository(pc.Pool.DB())

	b := duelBoard("bad")
	b.Items = b.Items[:1]
	assert.Error(t, repo.Upsert(context.Background(), b))
}

func TestBoardRepository_ContentBoards(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	repo := postgres.NewBoardRepository(pc.Pool.DB())
	ctx := context.Background()

	boards, err := board.LoadDir("../../../content/boards")
	require.NoError(t, err)
	for _, b := range boards {
		require.NoError(t, repo.Upsert(ctx, b))
	}
	list, err := repo.ListBoards(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(boards))
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name)
	}

	pc.Reset(t)
	list, err = repo.ListBoards(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPool_Health(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	assert.NoError(t, pc.Pool.Health(context.Background(), 2*time.Second))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	res, err := postgres.Migrate(pc.Config.DSN(), 0, false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.EqualValues(t, 2, res.Version)
	assert.False(t, res.Dirty)
}
