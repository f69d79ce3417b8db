package board

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
)

// yamlBoardFile is the top-level YAML structure for board files.
type yamlBoardFile struct {
	Board yamlBoard `yaml:"board"`
}

type yamlBoard struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	CTF         bool            `yaml:"ctf"`
	Rows        []string        `yaml:"rows"`
	Items       []yamlPlacement `yaml:"items"`
}

type yamlPlacement struct {
	Item string `yaml:"item"`
	X    int    `yaml:"x"`
	Y    int    `yaml:"y"`
}

// Parse decodes and validates one YAML board document.
func Parse(data []byte) (*Board, error) {
	var file yamlBoardFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing board YAML: %w", err)
	}
	yb := file.Board
	b := &Board{
		Name:        yb.Name,
		Description: yb.Description,
		IsCTF:       yb.CTF,
		Rows:        yb.Rows,
		Items:       make([]Placement, 0, len(yb.Items)),
	}
	for _, p := range yb.Items {
		b.Items = append(b.Items, Placement{
			Item:     grid.Item(strings.ToLower(p.Item)),
			Position: grid.Position{X: p.X, Y: p.Y},
		})
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Marshal renders b as a YAML document Parse accepts.
func Marshal(b *Board) ([]byte, error) {
	yb := yamlBoard{
		Name:        b.Name,
		Description: b.Description,
		CTF:         b.IsCTF,
		Rows:        b.Rows,
	}
	for _, p := range b.Items {
		yb.Items = append(yb.Items, yamlPlacement{Item: string(p.Item), X: p.Position.X, Y: p.Position.Y})
	}
	data, err := yaml.Marshal(yamlBoardFile{Board: yb})
	if err != nil {
		return nil, fmt.Errorf("encoding board %q: %w", b.Name, err)
	}
	return data, nil
}

// LoadFile reads and parses a single board YAML file.
func LoadFile(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading board file %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// LoadDir loads every .yaml/.yml file in dir, sorted by board name.
//
// Postcondition: board names are unique.
func LoadDir(dir string) ([]*Board, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading board directory %s: %w", dir, err)
	}

	var boards []*Board
	names := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		b, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := names[b.Name]; dup {
			return nil, fmt.Errorf("board %q defined in both %s and %s", b.Name, prev, name)
		}
		names[b.Name] = name
		boards = append(boards, b)
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].Name < boards[j].Name })
	return boards, nil
}
