package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/match"
)

// BoardRepository stores board YAML documents in the boards table.
// It implements board.Provider.
type BoardRepository struct {
	db *pgxpool.Pool
}

// NewBoardRepository creates a BoardRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewBoardRepository(db *pgxpool.Pool) *BoardRepository {
	return &BoardRepository{db: db}
}

// Upsert validates b and inserts or replaces its document.
//
// Postcondition: GetBoard(b.Name) returns a board equal to b.
func (r *BoardRepository) Upsert(ctx context.Context, b *board.Board) error {
	if err := b.Validate(); err != nil {
		return err
	}
	doc, err := board.Marshal(b)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO boards (name, description, ctf, size, document)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE
		 SET description = EXCLUDED.description,
		     ctf = EXCLUDED.ctf,
		     size = EXCLUDED.size,
		     document = EXCLUDED.document,
		     updated_at = NOW()`,
		b.Name, b.Description, b.IsCTF, b.Size(), string(doc),
	)
	if err != nil {
		return fmt.Errorf("upserting board %q: %w", b.Name, err)
	}
	return nil
}

// GetBoard implements board.Provider.
func (r *BoardRepository) GetBoard(ctx context.Context, name string) (*board.Board, error) {
	var doc string
	err := r.db.QueryRow(ctx, `SELECT document FROM boards WHERE name = $1`, name).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", board.ErrNotFound, name)
		}
		return nil, fmt.Errorf("querying board %q: %w", name, err)
	}
	b, err := board.Parse([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("stored board %q: %w", name, err)
	}
	return b, nil
}

// ListBoards implements board.Provider.
func (r *BoardRepository) ListBoards(ctx context.Context) ([]board.Summary, error) {
	rows, err := r.db.Query(ctx, `SELECT name, description, ctf, size FROM boards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	defer rows.Close()

	var out []board.Summary
	for rows.Next() {
		var s board.Summary
		if err := rows.Scan(&s.Name, &s.Description, &s.IsCTF, &s.Size); err != nil {
			return nil, fmt.Errorf("scanning board row: %w", err)
		}
		s.MaxPlayers = match.MaxPlayersFor(s.Size)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating boards: %w", err)
	}
	return out, nil
}

// Delete removes the named board.
//
// Postcondition: Returns an error wrapping board.ErrNotFound if no row matched.
func (r *BoardRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM boards WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting board %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", board.ErrNotFound, name)
	}
	return nil
}
