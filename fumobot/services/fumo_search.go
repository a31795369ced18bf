package services

import (
	"context"
	"strings"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/fumocord/fumobot/fumobot/database/repositories"
	"github.com/sahilm/fuzzy"
)

// fumoSearchItems implements fuzzy.Source over fumo definitions.
type fumoSearchItems []*models.Fumo

func (items fumoSearchItems) Len() int {
	return len(items)
}

func (items fumoSearchItems) String(i int) string {
	return normalizeName(items[i].Name)
}

// FumoSearchService resolves user-typed fumo names to definitions,
// tolerating typos and partial input.
type FumoSearchService struct {
	fumos repositories.FumoRepository
}

func NewFumoSearchService(fumos repositories.FumoRepository) *FumoSearchService {
	return &FumoSearchService{fumos: fumos}
}

// Resolve returns the best-matching fumo for a query, or nil when nothing
// matches. An exact (case-insensitive) name always wins.
func (s *FumoSearchService) Resolve(ctx context.Context, query string) (*models.Fumo, error) {
	all, err := s.fumos.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	normalized := normalizeName(query)
	for _, f := range all {
		if normalizeName(f.Name) == normalized {
			return f, nil
		}
	}

	matches := fuzzy.FindFrom(normalized, fumoSearchItems(all))
	if len(matches) == 0 {
		return nil, nil
	}
	return all[matches[0].Index], nil
}

// Suggest returns up to limit fuzzy matches for autocomplete.
func (s *FumoSearchService) Suggest(ctx context.Context, query string, limit int) ([]*models.Fumo, error) {
	all, err := s.fumos.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		if len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	}

	matches := fuzzy.FindFrom(normalizeName(query), fumoSearchItems(all))
	results := make([]*models.Fumo, 0, limit)
	for _, match := range matches {
		results = append(results, all[match.Index])
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
