package refstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elettra-ics/inau/pkg/storage"
)

// SeedFile is the YAML shape of a reference catalog seed. Cross references
// use names, not ids, so the file stays stable across databases.
type SeedFile struct {
	Architectures []string `yaml:"architectures"`
	Distributions []struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"distributions"`
	Platforms []struct {
		Distribution string `yaml:"distribution"`
		Version      string `yaml:"version"`
		Architecture string `yaml:"architecture"`
	} `yaml:"platforms"`
	Providers  []string `yaml:"providers"`
	Facilities []string `yaml:"facilities"`
	Users      []struct {
		Name   string `yaml:"name"`
		Admin  bool   `yaml:"admin"`
		Notify bool   `yaml:"notify"`
	} `yaml:"users"`
}

// LoadSeed parses a seed file from disk.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed upserts the seed into the catalog. Rows already present are left
// untouched, so re-applying a seed (including on live reload) is idempotent.
func (s *Store) ApplySeed(ctx context.Context, seed *SeedFile) error {
	for _, name := range seed.Architectures {
		if err := s.ensure(ctx, &Architecture{Name: name}); err != nil {
			return err
		}
	}
	for _, d := range seed.Distributions {
		var existing Distribution
		err := s.db.WithContext(ctx).Where("name = ? AND version = ?", d.Name, d.Version).First(&existing).Error
		if err == nil {
			continue
		}
		if err := s.ensure(ctx, &Distribution{Name: d.Name, Version: d.Version}); err != nil {
			return err
		}
	}
	for _, p := range seed.Platforms {
		var dist Distribution
		if err := s.db.WithContext(ctx).Where("name = ? AND version = ?", p.Distribution, p.Version).First(&dist).Error; err != nil {
			return storage.NotFoundf("seed platform: distribution %s %s", p.Distribution, p.Version)
		}
		arch, err := getByName[Architecture](ctx, s.db, "architecture", p.Architecture)
		if err != nil {
			return fmt.Errorf("seed platform: %w", err)
		}
		var existing Platform
		err = s.db.WithContext(ctx).Where("distribution_id = ? AND architecture_id = ?", dist.ID, arch.ID).First(&existing).Error
		if err == nil {
			continue
		}
		if err := s.ensure(ctx, &Platform{DistributionID: dist.ID, ArchitectureID: arch.ID}); err != nil {
			return err
		}
	}
	for _, url := range seed.Providers {
		if err := s.ensure(ctx, &Provider{URL: url}); err != nil {
			return err
		}
	}
	for _, name := range seed.Facilities {
		if err := s.ensure(ctx, &Facility{Name: name}); err != nil {
			return err
		}
	}
	for _, u := range seed.Users {
		if err := s.ensure(ctx, &User{Name: u.Name, Admin: u.Admin, Notify: u.Notify}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensure(ctx context.Context, row any) error {
	err := s.Create(ctx, row)
	if err != nil && errors.Is(err, storage.ErrIntegrity) {
		// Already present.
		return nil
	}
	return err
}
