package volume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

type fakeDatacenterAPI struct {
	datacenters []softlayer.Location
}

func (f *fakeDatacenterAPI) GetDatacenters(ctx context.Context) ([]softlayer.Location, error) {
	return f.datacenters, nil
}

func TestLocationResolver(t *testing.T) {
	log := logging.NewTestLog()
	ctx := context.Background()
	api := &fakeDatacenterAPI{datacenters: []softlayer.Location{
		{ID: 265592, Name: "dal05"},
		{ID: 168642, Name: "sjc01"},
	}}

	t.Run("known zone", func(t *testing.T) {
		r := require.New(t)
		resolver := NewLocationResolver(api, "dal05", log)

		id, err := resolver.Resolve(ctx, "sjc01")
		r.NoError(err)
		r.Equal(168642, id)
	})

	t.Run("empty zone falls back to default", func(t *testing.T) {
		r := require.New(t)
		resolver := NewLocationResolver(api, "dal05", log)

		id, err := resolver.Resolve(ctx, "")
		r.NoError(err)
		r.Equal(265592, id)
	})

	t.Run("unknown zone falls back to default", func(t *testing.T) {
		r := require.New(t)
		resolver := NewLocationResolver(api, "dal05", log)

		id, err := resolver.Resolve(ctx, "nowhere01")
		r.NoError(err)
		r.Equal(265592, id)
	})

	t.Run("default zone also missing", func(t *testing.T) {
		r := require.New(t)
		resolver := NewLocationResolver(&fakeDatacenterAPI{}, "dal05", log)

		_, err := resolver.Resolve(ctx, "sjc01")
		r.ErrorIs(err, ErrNoMatchingLocation)
	})
}
