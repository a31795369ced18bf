package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fumocord/fumobot/fumobot/database/models"
)

type fakeFumoRepo struct {
	fumos []*models.Fumo
}

func (f *fakeFumoRepo) GetAll(_ context.Context) ([]*models.Fumo, error) {
	return f.fumos, nil
}

func (f *fakeFumoRepo) GetByRarity(_ context.Context, rarity int) ([]*models.Fumo, error) {
	var out []*models.Fumo
	for _, fm := range f.fumos {
		if fm.Rarity == rarity {
			out = append(out, fm)
		}
	}
	return out, nil
}

func (f *fakeFumoRepo) GetUserFumos(_ context.Context, _ string) ([]*models.UserFumo, error) {
	return nil, nil
}

func (f *fakeFumoRepo) AddBatch(_ context.Context, _, _ string, _ int64) error {
	return nil
}

func newTestSearch() *FumoSearchService {
	return NewFumoSearchService(&fakeFumoRepo{
		fumos: []*models.Fumo{
			{Name: "Cirno", Rarity: 1},
			{Name: "Reimu", Rarity: 2},
			{Name: "Remilia", Rarity: 4},
			{Name: "Flandre", Rarity: 4},
		},
	})
}

func TestResolveExactNameWins(t *testing.T) {
	s := newTestSearch()

	got, err := s.Resolve(context.Background(), "  ReImU ")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Reimu", got.Name)
}

func TestResolveToleratesTypos(t *testing.T) {
	s := newTestSearch()

	got, err := s.Resolve(context.Background(), "flanre")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Flandre", got.Name)
}

func TestResolveUnknownReturnsNil(t *testing.T) {
	s := newTestSearch()

	got, err := s.Resolve(context.Background(), "zzzz")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSuggestLimitsResults(t *testing.T) {
	s := newTestSearch()

	got, err := s.Suggest(context.Background(), "re", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSuggestEmptyQueryListsDefinitions(t *testing.T) {
	s := newTestSearch()

	got, err := s.Suggest(context.Background(), "", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
}
