package volume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imkarrer/jumpgate/internal/storageclass"
	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

type fakeProvider struct {
	*fakeCapacityAPI
	*fakeDatacenterAPI
	*fakeOrderItemsAPI
	*fakeGuestAPI

	disks map[int]softlayer.DiskImage

	verifyErr    error
	placeErr     error
	placedOrders []softlayer.DiskImageOrder
	cancelled    []int
}

func newFakeProvider(capacities ...int) *fakeProvider {
	return &fakeProvider{
		fakeCapacityAPI: newFakeCapacityAPI(capacities...),
		fakeDatacenterAPI: &fakeDatacenterAPI{datacenters: []softlayer.Location{
			{ID: 265592, Name: "dal05"},
			{ID: 168642, Name: "sjc01"},
		}},
		fakeOrderItemsAPI: &fakeOrderItemsAPI{resolveAfter: 1, resourceID: 4242},
		fakeGuestAPI:      &fakeGuestAPI{},
		disks: map[int]softlayer.DiskImage{
			4242: {
				ID:       4242,
				Name:     "jumpgate-vol1",
				TypeID:   softlayer.DiskImageTypeSystem,
				Capacity: 10,
				StorageRepository: &softlayer.StorageRepository{
					Datacenter: &softlayer.Location{ID: 265592, Name: "dal05"},
				},
				BillingItem: &softlayer.BillingItem{ID: 9000},
			},
		},
	}
}

func (f *fakeProvider) VerifyOrder(ctx context.Context, order softlayer.DiskImageOrder) error {
	return f.verifyErr
}

func (f *fakeProvider) PlaceOrder(ctx context.Context, order softlayer.DiskImageOrder) (softlayer.OrderReceipt, error) {
	if f.placeErr != nil {
		return softlayer.OrderReceipt{}, f.placeErr
	}
	f.placedOrders = append(f.placedOrders, order)
	return softlayer.OrderReceipt{OrderID: 100}, nil
}

func (f *fakeProvider) GetVirtualDiskImages(ctx context.Context) ([]softlayer.DiskImage, error) {
	out := make([]softlayer.DiskImage, 0, len(f.disks))
	for _, d := range f.disks {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeProvider) GetDiskImage(ctx context.Context, id int) (softlayer.DiskImage, error) {
	d, ok := f.disks[id]
	if !ok {
		return softlayer.DiskImage{}, &softlayer.APIError{
			StatusCode:  404,
			FaultCode:   "SoftLayer_Exception_ObjectNotFound",
			FaultString: "Unable to find object",
		}
	}
	return d, nil
}

func (f *fakeProvider) GetDiskImageBillingItem(ctx context.Context, id int) (*softlayer.BillingItem, error) {
	d, err := f.GetDiskImage(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.BillingItem, nil
}

func (f *fakeProvider) CancelBillingItem(ctx context.Context, billingItemID int, reason string) error {
	f.cancelled = append(f.cancelled, billingItemID)
	return nil
}

func newTestService(provider Provider, catalogJSON string) *Service {
	log := logging.NewTestLog()
	return NewService(Config{
		NamePrefix:  "jumpgate-",
		DefaultZone: "dal05",
		RetryCount:  3,
		WaitTime:    0,
	}, provider, storageclass.NewRegistry(catalogJSON, log), log)
}

const sanCatalog = `{"volume_types": [
	{"id": "1", "name": "san", "extra_specs": {
		"capabilities:volume_backend_name": "dal05",
		"drivers:display_name": "Portable Storage (SAN)",
		"drivers:san_backed_disk": true,
		"drivers:exact_capacity": false
	}}
]}`

const exactSanCatalog = `{"volume_types": [
	{"id": "1", "name": "san", "extra_specs": {
		"capabilities:volume_backend_name": "dal05",
		"drivers:display_name": "Portable Storage (SAN)",
		"drivers:san_backed_disk": true,
		"drivers:exact_capacity": true
	}}
]}`

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("nearest match create resolves and reports creating", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10, 15)
		svc := newTestService(provider, sanCatalog)

		vol, err := svc.Create(ctx, CreateSpec{
			DisplayName:      "vol1",
			SizeGB:           10,
			AvailabilityZone: "dal05",
			VolumeType:       "san",
		})
		r.NoError(err)
		r.Equal(StatusCreating, vol.Status)
		r.Equal(4242, vol.ID)

		r.Len(provider.placedOrders, 1)
		order := provider.placedOrders[0]
		r.Equal(softlayer.OrderContainerVirtualDiskImage, order.ComplexType)
		r.Equal(200, order.PackageID)
		r.Equal(265592, order.Location)
		r.Equal("jumpgate-vol1", order.DiskDescription)
		// Size 10 hits tier 10 exactly (distance 0), price id 1001.
		r.Equal([]softlayer.Price{{ID: 1001}}, order.Prices)
	})

	t.Run("exact capacity class with no matching tier rejects before ordering", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 15)
		svc := newTestService(provider, exactSanCatalog)

		_, err := svc.Create(ctx, CreateSpec{SizeGB: 10, VolumeType: "san"})
		validationErr := &ValidationError{}
		r.ErrorAs(err, &validationErr)
		r.Contains(validationErr.Reason, "matching capacity")
		r.Empty(provider.placedOrders)
	})

	t.Run("unknown volume type", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		svc := newTestService(provider, sanCatalog)

		_, err := svc.Create(ctx, CreateSpec{SizeGB: 10, VolumeType: "nope"})
		validationErr := &ValidationError{}
		r.ErrorAs(err, &validationErr)
		r.Empty(provider.placedOrders)
	})

	t.Run("empty catalog with requested type is a server problem", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		svc := newTestService(provider, `{"volume_types": []}`)

		_, err := svc.Create(ctx, CreateSpec{SizeGB: 10, VolumeType: "san"})
		r.ErrorIs(err, storageclass.ErrNoStorageClasses)
		r.Empty(provider.placedOrders)
	})

	t.Run("no type skips the registry entirely", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		svc := newTestService(provider, `{"volume_types": []}`)

		vol, err := svc.Create(ctx, CreateSpec{SizeGB: 10})
		r.NoError(err)
		r.Equal(StatusCreating, vol.Status)
	})

	t.Run("class implies the zone when the request has none", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		provider.fakeDatacenterAPI.datacenters = []softlayer.Location{
			{ID: 168642, Name: "sjc01"},
			{ID: 265592, Name: "dal05"},
		}
		svc := newTestService(provider, `{"volume_types": [
			{"id": "1", "name": "san", "extra_specs": {
				"capabilities:volume_backend_name": "sjc01",
				"drivers:display_name": "SAN",
				"drivers:san_backed_disk": true,
				"drivers:exact_capacity": false
			}}
		]}`)

		_, err := svc.Create(ctx, CreateSpec{SizeGB: 10, VolumeType: "san"})
		r.NoError(err)
		r.Equal(168642, provider.placedOrders[0].Location)
	})

	t.Run("invalid size", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		svc := newTestService(provider, sanCatalog)

		_, err := svc.Create(ctx, CreateSpec{SizeGB: 0})
		validationErr := &ValidationError{}
		r.ErrorAs(err, &validationErr)
		r.Empty(provider.placedOrders)
	})

	t.Run("unresolved order is distinguishable", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		provider.fakeOrderItemsAPI.resolveAfter = 0 // never resolves
		svc := newTestService(provider, sanCatalog)

		_, err := svc.Create(ctx, CreateSpec{SizeGB: 10, VolumeType: "san"})
		r.ErrorIs(err, ErrOrderUnresolved)
		r.ErrorContains(err, "order 100")
		// The order stays placed, there is no compensating cancel.
		r.Len(provider.placedOrders, 1)
		r.Empty(provider.cancelled)
		r.Equal(4, provider.fakeOrderItemsAPI.calls)
	})

	t.Run("submission failure passes the provider fault through", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		provider.verifyErr = &softlayer.APIError{
			StatusCode:  500,
			FaultCode:   "SoftLayer_Exception_Order_InvalidContainer",
			FaultString: "Invalid container specified",
		}
		svc := newTestService(provider, sanCatalog)

		_, err := svc.Create(ctx, CreateSpec{SizeGB: 10, VolumeType: "san"})
		apiErr := &softlayer.APIError{}
		r.ErrorAs(err, &apiErr)
		r.Equal("SoftLayer_Exception_Order_InvalidContainer", apiErr.FaultCode)
		r.Empty(provider.placedOrders)
	})
}

func TestServiceList(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	provider := newFakeProvider(5, 10)
	provider.disks = map[int]softlayer.DiskImage{
		1: {ID: 1, TypeID: softlayer.DiskImageTypeSystem},
		2: {ID: 2, TypeID: softlayer.DiskImageTypeSwap},
		3: {ID: 3, TypeID: softlayer.DiskImageTypeSwap},
		4: {ID: 4, TypeID: softlayer.DiskImageTypeSystem, LocalDiskFlag: true},
	}
	svc := newTestService(provider, sanCatalog)

	vols, err := svc.List(ctx, false)
	r.NoError(err)
	r.Len(vols, 1)
	r.Equal(1, vols[0].ID)
}

func TestServiceListDetail(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	provider := newFakeProvider(5, 10)
	provider.disks = map[int]softlayer.DiskImage{
		1: {ID: 1, TypeID: softlayer.DiskImageTypeSystem, BlockDevices: []softlayer.BlockDevice{
			{DiskImageID: 1, GuestID: 77, Device: "2"},
		}},
	}
	provider.fakeGuestAPI.guests = map[int]softlayer.VirtualGuest{
		77: {ID: 77, FullyQualifiedDomainName: "vs1.example.com"},
	}
	svc := newTestService(provider, sanCatalog)

	vols, err := svc.List(ctx, true)
	r.NoError(err)
	r.Len(vols, 1)
	r.Len(vols[0].Attachments, 1)
	r.Equal("vs1.example.com", vols[0].Attachments[0].HostName)
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		r := require.New(t)
		svc := newTestService(newFakeProvider(5, 10), sanCatalog)

		vol, err := svc.Get(ctx, 4242)
		r.NoError(err)
		r.Equal(4242, vol.ID)
		r.Equal(StatusAvailable, vol.Status)
	})

	t.Run("missing upstream", func(t *testing.T) {
		r := require.New(t)
		svc := newTestService(newFakeProvider(5, 10), sanCatalog)

		_, err := svc.Get(ctx, 999)
		notFound := &NotFoundError{}
		r.ErrorAs(err, &notFound)
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels billing item", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		svc := newTestService(provider, sanCatalog)

		r.NoError(svc.Delete(ctx, 4242))
		r.Equal([]int{9000}, provider.cancelled)
	})

	t.Run("missing volume", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		svc := newTestService(provider, sanCatalog)

		err := svc.Delete(ctx, 999)
		notFound := &NotFoundError{}
		r.ErrorAs(err, &notFound)
		r.Empty(provider.cancelled)
	})

	t.Run("volume without billing item", func(t *testing.T) {
		r := require.New(t)
		provider := newFakeProvider(5, 10)
		provider.disks[5000] = softlayer.DiskImage{ID: 5000}
		svc := newTestService(provider, sanCatalog)

		err := svc.Delete(ctx, 5000)
		notFound := &NotFoundError{}
		r.ErrorAs(err, &notFound)
		r.Empty(provider.cancelled)
	})
}
