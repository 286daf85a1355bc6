package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"escape-room-service/internal/domain"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileLoader loads rounds from a YAML or TOML file. A file holds one round, or a list of
// rounds under a top-level "rounds" key.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

type roundFile struct {
	domain.Round `yaml:",inline"`
	Rounds       []domain.Round `yaml:"rounds" toml:"rounds"`
}

func (l *FileLoader) LoadRound(_ context.Context, roundID string) (domain.Round, error) {
	rounds, err := LoadFile(l.path)
	if err != nil {
		return domain.Round{}, err
	}
	for _, r := range rounds {
		if r.ID == roundID {
			return r, nil
		}
	}
	return domain.Round{}, domain.ErrRoundNotFound
}

// LoadFile decodes every round in path; the format is chosen by extension.
func LoadFile(path string) ([]domain.Round, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file roundFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
	}

	rounds := file.Rounds
	if file.Round.ID != "" {
		rounds = append(rounds, file.Round)
	}
	if len(rounds) == 0 {
		return nil, fmt.Errorf("catalog %s defines no rounds", path)
	}
	return rounds, nil
}
