package application

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bnema/penphinmind/internal/domain"
)

// Registry is the immutable set of configured minds.
type Registry struct {
	profiles  map[domain.MindID]domain.MindProfile
	ids       []domain.MindID
	defaultID domain.MindID
}

func LoadRegistry(cfg domain.MindsConfig) (*Registry, error) {
	if len(cfg.Minds) == 0 {
		return nil, &domain.ConfigError{Field: "minds", Err: errors.New("at least one mind is required")}
	}

	profiles := make(map[domain.MindID]domain.MindProfile, len(cfg.Minds))
	folded := make(map[string]domain.MindID, len(cfg.Minds))
	for key, profile := range cfg.Minds {
		if profile.ID == "" {
			profile.ID = key
		}
		if profile.ID != key {
			return nil, &domain.ConfigError{MindID: key, Err: fmt.Errorf("profile id %q does not match its key", profile.ID)}
		}

		normalized := strings.ToLower(strings.TrimSpace(string(key)))
		if other, exists := folded[normalized]; exists {
			return nil, &domain.ConfigError{MindID: key, Err: fmt.Errorf("duplicate of mind %q", other)}
		}
		folded[normalized] = key

		if err := profile.Validate(); err != nil {
			return nil, &domain.ConfigError{MindID: key, Err: err}
		}
		profiles[key] = profile
	}

	if _, ok := profiles[cfg.DefaultMind]; !ok {
		return nil, &domain.ConfigError{Field: "default_mind", Err: fmt.Errorf("%q is not a configured mind", cfg.DefaultMind)}
	}

	ids := make([]domain.MindID, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return &Registry{profiles: profiles, ids: ids, defaultID: cfg.DefaultMind}, nil
}

func (r *Registry) Get(id domain.MindID) (domain.MindProfile, error) {
	profile, ok := r.profiles[id]
	if !ok {
		return domain.MindProfile{}, &domain.NotFoundError{MindID: id}
	}
	return profile, nil
}

func (r *Registry) Has(id domain.MindID) bool {
	_, ok := r.profiles[id]
	return ok
}

func (r *Registry) DefaultID() domain.MindID {
	return r.defaultID
}

// IDs returns mind ids in lexicographic order.
func (r *Registry) IDs() []domain.MindID {
	return slices.Clone(r.ids)
}

func (r *Registry) Profiles() []domain.MindProfile {
	profiles := make([]domain.MindProfile, 0, len(r.ids))
	for _, id := range r.ids {
		profiles = append(profiles, r.profiles[id])
	}
	return profiles
}
