package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/store"
	"beer-scanner-backend/internal/store/storetest"
)

func newCatalog(t *testing.T) (*Catalog, store.Store, *gorm.DB) {
	t.Helper()
	st, gdb := storetest.Open(t)
	return New(st, nil, zap.NewNop()), st, gdb
}

func strPtr(s string) *string { return &s }

func TestResolve_CreatesThenFindsExact(t *testing.T) {
	ctx := context.Background()
	c, _, gdb := newCatalog(t)

	beer, existed, err := c.Resolve(ctx, Candidate{Name: " IPA  One ", Brewery: "Acme", Type: "India Pale Ale"})
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "IPA One", beer.Name)
	assert.Equal(t, "IPA", beer.Type)

	again, existed, err := c.Resolve(ctx, Candidate{Name: "IPA One", Brewery: "Acme"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, beer.ID, again.ID)

	var count int64
	gdb.Model(&model.Beer{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestResolve_ExactMatchIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCatalog(t)

	a, _, err := c.Resolve(ctx, Candidate{Name: "Hazy Juice", Brewery: "X"})
	require.NoError(t, err)
	b, existed, err := c.Resolve(ctx, Candidate{Name: "hazy juice", Brewery: "X"})
	require.NoError(t, err)
	assert.False(t, existed)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolve_Alias(t *testing.T) {
	ctx := context.Background()
	c, _, gdb := newCatalog(t)

	target, _, err := c.Resolve(ctx, Candidate{Name: "Juice Bomb", Brewery: "X"})
	require.NoError(t, err)
	_, err = c.AddAlias(ctx, target.ID, "Hazy Juice", "X")
	require.NoError(t, err)

	beer, existed, err := c.Resolve(ctx, Candidate{Name: "HAZY JUICE", Brewery: "x"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, target.ID, beer.ID)

	var count int64
	gdb.Model(&model.Beer{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestResolve_BackfillsDescriptionOnce(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newCatalog(t)

	beer, _, err := c.Resolve(ctx, Candidate{Name: "Stouty", Brewery: "Acme"})
	require.NoError(t, err)

	_, _, err = c.Resolve(ctx, Candidate{Name: "Stouty", Brewery: "Acme", Description: "roasty"})
	require.NoError(t, err)
	_, _, err = c.Resolve(ctx, Candidate{Name: "Stouty", Brewery: "Acme", Description: "sweet"})
	require.NoError(t, err)

	stored, err := st.GetBeer(ctx, beer.ID)
	require.NoError(t, err)
	assert.Equal(t, "roasty", stored.Description)
}

func TestResolve_BlankName(t *testing.T) {
	c, _, _ := newCatalog(t)
	_, _, err := c.Resolve(context.Background(), Candidate{Name: "  ", Brewery: "Acme"})
	assert.ErrorIs(t, err, ErrBlankName)
}

func TestAddAlias_Duplicate(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCatalog(t)

	a, _, _ := c.Resolve(ctx, Candidate{Name: "A", Brewery: "X"})
	b, _, _ := c.Resolve(ctx, Candidate{Name: "B", Brewery: "X"})

	first, err := c.AddAlias(ctx, a.ID, "Old A", "X")
	require.NoError(t, err)

	same, err := c.AddAlias(ctx, a.ID, "old a", "X")
	require.NoError(t, err)
	assert.Equal(t, first.ID, same.ID)

	_, err = c.AddAlias(ctx, b.ID, "Old A", "X")
	var dup *DuplicateAliasError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, a.ID, dup.BeerID)
}

func TestAddAlias_UnknownBeer(t *testing.T) {
	c, _, _ := newCatalog(t)
	_, err := c.AddAlias(context.Background(), 999, "Ghost", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateBeer_RenameRecordsAlias(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCatalog(t)

	beer, _, err := c.Resolve(ctx, Candidate{Name: "Hazy Juice", Brewery: "X"})
	require.NoError(t, err)

	updated, err := c.UpdateBeer(ctx, beer.ID, BeerUpdate{Name: strPtr("Juice Bomb"), Type: strPtr("new england ipa")})
	require.NoError(t, err)
	assert.Equal(t, "Juice Bomb", updated.Name)
	assert.Equal(t, "NEIPA", updated.Type)

	resolved, existed, err := c.Resolve(ctx, Candidate{Name: "Hazy Juice", Brewery: "X"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, beer.ID, resolved.ID)
}

func TestUpdateBeer_Errors(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCatalog(t)

	a, _, _ := c.Resolve(ctx, Candidate{Name: "A", Brewery: "X"})
	b, _, _ := c.Resolve(ctx, Candidate{Name: "B", Brewery: "X"})

	_, err := c.UpdateBeer(ctx, a.ID, BeerUpdate{Type: strPtr("Cola")})
	var typeErr *InvalidBeerTypeError
	assert.ErrorAs(t, err, &typeErr)

	_, err = c.UpdateBeer(ctx, a.ID, BeerUpdate{Name: strPtr(b.Name)})
	assert.ErrorIs(t, err, ErrBeerExists)

	// The old name of a rename cannot be kept if another beer owns it as an alias.
	_, err = c.AddAlias(ctx, b.ID, "A", "X")
	require.NoError(t, err)
	_, err = c.UpdateBeer(ctx, a.ID, BeerUpdate{Name: strPtr("Z")})
	var dup *DuplicateAliasError
	assert.ErrorAs(t, err, &dup)

	_, err = c.UpdateBeer(ctx, 999, BeerUpdate{Name: strPtr("Ghost")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMergeBeers(t *testing.T) {
	ctx := context.Background()
	c, st, gdb := newCatalog(t)

	source, _, _ := c.Resolve(ctx, Candidate{Name: "Hazy Juice", Brewery: "X", Description: "hazy"})
	target, _, _ := c.Resolve(ctx, Candidate{Name: "Juice Bomb", Brewery: "X"})

	bar := model.Bar{Name: "Taproom", MenuURL: "http://example.test", IsApproved: true}
	require.NoError(t, gdb.Create(&bar).Error)
	other := model.Bar{Name: "Pub", MenuURL: "http://example.test/pub", IsApproved: true}
	require.NoError(t, gdb.Create(&other).Error)
	user := model.User{Email: "u@example.test"}
	require.NoError(t, gdb.Create(&user).Error)

	early := time.Now().Add(-48 * time.Hour).UTC()
	late := time.Now().UTC()
	require.NoError(t, st.OpenCurrent(ctx, bar.ID, source.ID, early))
	require.NoError(t, st.OpenCurrent(ctx, bar.ID, target.ID, late))
	require.NoError(t, st.OpenCurrent(ctx, other.ID, source.ID, late))
	require.NoError(t, gdb.Create(&model.BeerTracking{UserID: user.ID, BeerID: source.ID}).Error)
	require.NoError(t, gdb.Create(&model.BeerTracking{UserID: user.ID, BeerID: target.ID}).Error)

	check := model.Check{BarID: bar.ID, ProcessingStatus: model.CheckCompleted}
	require.NoError(t, st.CreateCheck(ctx, &check))
	require.NoError(t, st.SetCheckBeers(ctx, check.ID, []model.Beer{*source, *target}, nil))

	merged, err := c.MergeBeers(ctx, source.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, merged.ID)
	assert.Equal(t, "hazy", merged.Description)

	_, err = st.GetBeer(ctx, source.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	current, err := st.ListCurrent(ctx, bar.ID)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, target.ID, current[0].BeerID)
	assert.WithinDuration(t, early, current[0].AddedAt, time.Second)

	current, err = st.ListCurrent(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, target.ID, current[0].BeerID)

	var trackings int64
	gdb.Model(&model.BeerTracking{}).Count(&trackings)
	assert.Equal(t, int64(1), trackings)

	loaded, err := st.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	require.Len(t, loaded.BeersAdded, 1)
	assert.Equal(t, target.ID, loaded.BeersAdded[0].ID)

	resolved, existed, err := c.Resolve(ctx, Candidate{Name: "Hazy Juice", Brewery: "X"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, target.ID, resolved.ID)
}

func TestMergeBeers_Self(t *testing.T) {
	c, _, _ := newCatalog(t)
	_, err := c.MergeBeers(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrSelfMerge)
}

func TestDeleteBeer(t *testing.T) {
	ctx := context.Background()
	c, st, gdb := newCatalog(t)

	beer, _, _ := c.Resolve(ctx, Candidate{Name: "Gone", Brewery: "X"})
	bar := model.Bar{Name: "Taproom"}
	require.NoError(t, gdb.Create(&bar).Error)
	require.NoError(t, st.OpenCurrent(ctx, bar.ID, beer.ID, time.Now()))

	require.NoError(t, c.DeleteBeer(ctx, beer.ID))

	current, err := st.ListCurrent(ctx, bar.ID)
	require.NoError(t, err)
	assert.Empty(t, current)
	assert.ErrorIs(t, c.DeleteBeer(ctx, beer.ID), store.ErrNotFound)
}
