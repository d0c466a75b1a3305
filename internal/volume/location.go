package volume

import (
	"context"
	"fmt"

	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

type datacenterAPI interface {
	GetDatacenters(ctx context.Context) ([]softlayer.Location, error)
}

// LocationResolver maps zone names to provider location ids. A disk ordered
// without a datacenter cannot be found afterwards, so an unknown or missing
// zone falls back to the configured default rather than being rejected.
type LocationResolver struct {
	log         *logging.Logger
	api         datacenterAPI
	defaultZone string
}

func NewLocationResolver(api datacenterAPI, defaultZone string, log *logging.Logger) *LocationResolver {
	return &LocationResolver{
		log:         log.WithField("component", "location"),
		api:         api,
		defaultZone: defaultZone,
	}
}

func (r *LocationResolver) Resolve(ctx context.Context, zoneName string) (int, error) {
	datacenters, err := r.api.GetDatacenters(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing datacenters: %w", err)
	}

	byName := make(map[string]int, len(datacenters))
	for _, dc := range datacenters {
		byName[dc.Name] = dc.ID
	}

	if id, ok := byName[zoneName]; ok {
		return id, nil
	}
	if id, ok := byName[r.defaultZone]; ok {
		if zoneName != "" {
			r.log.Warnf("zone %q unknown, falling back to %q", zoneName, r.defaultZone)
		}
		return id, nil
	}
	return 0, fmt.Errorf("zone %q and default %q: %w", zoneName, r.defaultZone, ErrNoMatchingLocation)
}
