package volume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

type fakeCapacityAPI struct {
	packages []softlayer.ProductPackage
	items    []softlayer.PackageItem
	itemsErr error
}

func (f *fakeCapacityAPI) GetProductPackages(ctx context.Context) ([]softlayer.ProductPackage, error) {
	return f.packages, nil
}

func (f *fakeCapacityAPI) GetPackageItems(ctx context.Context, packageID int) ([]softlayer.PackageItem, error) {
	return f.items, f.itemsErr
}

func newFakeCapacityAPI(capacities ...int) *fakeCapacityAPI {
	items := make([]softlayer.PackageItem, 0, len(capacities))
	for i, c := range capacities {
		items = append(items, softlayer.PackageItem{
			Capacity: softlayer.Capacity(c),
			Prices:   []softlayer.Price{{ID: 1000 + i}},
		})
	}
	return &fakeCapacityAPI{
		packages: []softlayer.ProductPackage{
			{ID: 198, Name: "Other Product", IsActive: 1},
			{ID: 199, Name: "Portable Storage", IsActive: 0},
			{ID: 200, Name: "Portable Storage", IsActive: 1},
		},
		items: items,
	}
}

func TestCapacityCatalog(t *testing.T) {
	log := logging.NewTestLog()
	ctx := context.Background()

	t.Run("exact match", func(t *testing.T) {
		r := require.New(t)
		catalog := NewCapacityCatalog(newFakeCapacityAPI(5, 10, 15), log)

		tier, err := catalog.FindExact(ctx, 10)
		r.NoError(err)
		r.Equal(10, tier.CapacityGB)
		r.Equal(200, tier.PackageID)
		r.Equal([]softlayer.Price{{ID: 1001}}, tier.Prices)
	})

	t.Run("exact never rounds", func(t *testing.T) {
		r := require.New(t)
		catalog := NewCapacityCatalog(newFakeCapacityAPI(5, 15), log)

		_, err := catalog.FindExact(ctx, 10)
		r.ErrorIs(err, ErrNoMatchingCapacity)
	})

	t.Run("nearest minimizes distance", func(t *testing.T) {
		r := require.New(t)
		catalog := NewCapacityCatalog(newFakeCapacityAPI(25, 100, 150), log)

		tier, err := catalog.FindNearest(ctx, 90)
		r.NoError(err)
		r.Equal(100, tier.CapacityGB)
	})

	t.Run("nearest tie keeps first provider order", func(t *testing.T) {
		r := require.New(t)
		// 5 and 15 are equidistant from 10, the tier listed first wins.
		catalog := NewCapacityCatalog(newFakeCapacityAPI(5, 15), log)

		tier, err := catalog.FindNearest(ctx, 10)
		r.NoError(err)
		r.Equal(5, tier.CapacityGB)

		catalog = NewCapacityCatalog(newFakeCapacityAPI(15, 5), log)
		tier, err = catalog.FindNearest(ctx, 10)
		r.NoError(err)
		r.Equal(15, tier.CapacityGB)
	})

	t.Run("duplicate capacity keeps first item", func(t *testing.T) {
		r := require.New(t)
		api := newFakeCapacityAPI(10, 10)
		catalog := NewCapacityCatalog(api, log)

		tier, err := catalog.FindExact(ctx, 10)
		r.NoError(err)
		r.Equal([]softlayer.Price{{ID: 1000}}, tier.Prices)
	})

	t.Run("no active package", func(t *testing.T) {
		r := require.New(t)
		catalog := NewCapacityCatalog(&fakeCapacityAPI{
			packages: []softlayer.ProductPackage{{ID: 199, Name: "Portable Storage", IsActive: 0}},
		}, log)

		_, err := catalog.FindNearest(ctx, 10)
		r.ErrorContains(err, "no active")
	})
}
