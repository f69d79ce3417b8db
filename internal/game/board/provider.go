package board

import (
	"context"
	"fmt"
	"sort"

	"github.com/cory-johannsen/gridbrawl/internal/game/match"
)

// Provider serves board documents by name.
type Provider interface {
	// GetBoard returns the named board or an error wrapping ErrNotFound.
	GetBoard(ctx context.Context, name string) (*Board, error)
	// ListBoards returns the catalogue, sorted by name.
	ListBoards(ctx context.Context) ([]Summary, error)
}

// Summarize builds the catalogue entry of b.
func Summarize(b *Board) Summary {
	return Summary{
		Name:        b.Name,
		Description: b.Description,
		Size:        b.Size(),
		IsCTF:       b.IsCTF,
		MaxPlayers:  match.MaxPlayersFor(b.Size()),
	}
}

// DirProvider serves the boards of a content directory, loaded once.
type DirProvider struct {
	boards map[string]*Board
	order  []string
}

// NewDirProvider loads every board in dir.
//
// Postcondition: Returns an error if any file fails to parse or validate.
func NewDirProvider(dir string) (*DirProvider, error) {
	boards, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewStaticProvider(boards...), nil
}

// NewStaticProvider serves an in-memory set of boards.
func NewStaticProvider(boards ...*Board) *DirProvider {
	p := &DirProvider{boards: make(map[string]*Board, len(boards))}
	for _, b := range boards {
		if _, dup := p.boards[b.Name]; !dup {
			p.order = append(p.order, b.Name)
		}
		p.boards[b.Name] = b
	}
	sort.Strings(p.order)
	return p
}

// GetBoard implements Provider.
func (p *DirProvider) GetBoard(_ context.Context, name string) (*Board, error) {
	b, ok := p.boards[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return b, nil
}

// ListBoards implements Provider.
func (p *DirProvider) ListBoards(_ context.Context) ([]Summary, error) {
	out := make([]Summary, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, Summarize(p.boards[name]))
	}
	return out, nil
}
