package forum

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed boards.yaml
var boardsYAML []byte

type BoardSeed struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type boardCatalog struct {
	Boards []BoardSeed `yaml:"boards"`
}

// DefaultBoards returns the built-in board catalog.
func DefaultBoards() ([]BoardSeed, error) {
	var c boardCatalog
	if err := yaml.Unmarshal(boardsYAML, &c); err != nil {
		return nil, fmt.Errorf("parse board catalog: %w", err)
	}
	return c.Boards, nil
}

// SeedBoards upserts the catalog by slug. Existing boards keep their id,
// so topics never dangle across reseeds.
func (s *Store) SeedBoards(ctx context.Context, seeds []BoardSeed) error {
	for _, b := range seeds {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO boards(slug, name, description) VALUES(?,?,?)
			ON CONFLICT(slug) DO UPDATE SET
				name=excluded.name, description=excluded.description`,
			b.Slug, b.Name, b.Description)
		if err != nil {
			return fmt.Errorf("seed board %s: %w", b.Slug, err)
		}
	}
	s.log.Info().Int("boards", len(seeds)).Msg("board catalog seeded")
	return nil
}
