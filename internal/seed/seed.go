// Package seed loads the built-in vote types from an embedded YAML file and
// writes them to the database.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/repo"
)

//go:embed vote_types.yaml
var DefaultVoteTypesYAML []byte

// idNamespace derives stable vote type ids from their names, so every
// database seeded from the same file agrees on them.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://votehub/vote-types"))

type file struct {
	VoteTypes []entry `yaml:"vote_types"`
}

type entry struct {
	Name          string         `yaml:"name"`
	DisplayName   string         `yaml:"display_name"`
	Description   string         `yaml:"description"`
	Inactive      bool           `yaml:"inactive"`
	Version       int            `yaml:"version"`
	DefaultConfig map[string]any `yaml:"default_config"`
	ConfigSchema  map[string]any `yaml:"config_schema"`
}

// Parse decodes a vote type seed document. Names must be present and
// unique; a missing display name falls back to the name.
func Parse(data []byte) ([]domain.VoteTypeConfig, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing vote types: %w", err)
	}
	if len(f.VoteTypes) == 0 {
		return nil, errors.New("parsing vote types: no entries")
	}

	seen := make(map[string]struct{}, len(f.VoteTypes))
	out := make([]domain.VoteTypeConfig, 0, len(f.VoteTypes))
	for i, e := range f.VoteTypes {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("vote type #%d: name is required", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("vote type %q: duplicate name", name)
		}
		seen[name] = struct{}{}

		def, err := toJSON(e.DefaultConfig)
		if err != nil {
			return nil, fmt.Errorf("vote type %q: default_config: %w", name, err)
		}
		schema, err := toJSON(e.ConfigSchema)
		if err != nil {
			return nil, fmt.Errorf("vote type %q: config_schema: %w", name, err)
		}

		vt := domain.VoteTypeConfig{
			ID:            uuid.NewSHA1(idNamespace, []byte(name)).String(),
			Name:          name,
			DisplayName:   strings.TrimSpace(e.DisplayName),
			ConfigSchema:  schema,
			DefaultConfig: def,
			IsActive:      !e.Inactive,
			Version:       e.Version,
		}
		if vt.DisplayName == "" {
			vt.DisplayName = name
		}
		if vt.Version < 1 {
			vt.Version = 1
		}
		if d := strings.TrimSpace(e.Description); d != "" {
			vt.Description = &d
		}
		out = append(out, vt)
	}
	return out, nil
}

// VoteTypes upserts the given vote types by name and returns how many were
// written. Existing rows keep their id.
func VoteTypes(ctx context.Context, db *gorm.DB, types []domain.VoteTypeConfig) (int, error) {
	n := 0
	for i := range types {
		if _, err := repo.UpsertVoteType(ctx, db, &types[i]); err != nil {
			return n, fmt.Errorf("seeding vote type %q: %w", types[i].Name, err)
		}
		n++
	}
	log.Ctx(ctx).Debug().Int("count", n).Msg("vote types seeded")
	return n, nil
}

// Defaults seeds the embedded built-in vote types.
func Defaults(ctx context.Context, db *gorm.DB) (int, error) {
	types, err := Parse(DefaultVoteTypesYAML)
	if err != nil {
		return 0, err
	}
	return VoteTypes(ctx, db, types)
}

func toJSON(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return datatypes.JSON("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
