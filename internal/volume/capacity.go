package volume

import (
	"context"
	"fmt"
	"strings"

	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

// portableStoragePackage is the provider product line holding the priced
// portable storage capacities.
const portableStoragePackage = "portable storage"

type capacityAPI interface {
	GetProductPackages(ctx context.Context) ([]softlayer.ProductPackage, error)
	GetPackageItems(ctx context.Context, packageID int) ([]softlayer.PackageItem, error)
}

// Tier is one priced capacity the provider offers, bound to the package it
// was read from.
type Tier struct {
	PackageID  int
	CapacityGB int
	Prices     []softlayer.Price
}

// CapacityCatalog matches requested sizes to priced capacity tiers. Tiers are
// fetched fresh on every call, prices change without notice.
type CapacityCatalog struct {
	log *logging.Logger
	api capacityAPI
}

func NewCapacityCatalog(api capacityAPI, log *logging.Logger) *CapacityCatalog {
	return &CapacityCatalog{
		log: log.WithField("component", "capacity"),
		api: api,
	}
}

// FindExact returns the tier whose capacity equals sizeGB, or
// ErrNoMatchingCapacity. It never rounds.
func (c *CapacityCatalog) FindExact(ctx context.Context, sizeGB int) (Tier, error) {
	tiers, err := c.tiers(ctx)
	if err != nil {
		return Tier{}, err
	}
	for _, t := range tiers {
		if t.CapacityGB == sizeGB {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%d GB: %w", sizeGB, ErrNoMatchingCapacity)
}

// FindNearest returns the tier minimizing |capacity - sizeGB|. Ties keep the
// tier the provider returned first, there is no secondary sort key.
func (c *CapacityCatalog) FindNearest(ctx context.Context, sizeGB int) (Tier, error) {
	tiers, err := c.tiers(ctx)
	if err != nil {
		return Tier{}, err
	}
	if len(tiers) == 0 {
		return Tier{}, fmt.Errorf("%d GB: %w", sizeGB, ErrNoMatchingCapacity)
	}
	best := tiers[0]
	for _, t := range tiers[1:] {
		if abs(t.CapacityGB-sizeGB) < abs(best.CapacityGB-sizeGB) {
			best = t
		}
	}
	return best, nil
}

// tiers reads the active portable storage package and flattens its items into
// one tier per distinct capacity, preserving provider order.
func (c *CapacityCatalog) tiers(ctx context.Context) ([]Tier, error) {
	packages, err := c.api.GetProductPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing product packages: %w", err)
	}
	packageID := -1
	for _, p := range packages {
		if strings.EqualFold(p.Name, portableStoragePackage) && p.IsActive == 1 {
			packageID = p.ID
			break
		}
	}
	if packageID < 0 {
		return nil, fmt.Errorf("no active %q product package", portableStoragePackage)
	}

	items, err := c.api.GetPackageItems(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("listing package %d items: %w", packageID, err)
	}

	seen := map[int]struct{}{}
	tiers := make([]Tier, 0, len(items))
	for _, item := range items {
		capGB := int(item.Capacity)
		if _, ok := seen[capGB]; ok {
			continue
		}
		seen[capGB] = struct{}{}
		tiers = append(tiers, Tier{
			PackageID:  packageID,
			CapacityGB: capGB,
			Prices:     item.Prices,
		})
	}
	return tiers, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
