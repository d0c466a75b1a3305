package volume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/imkarrer/jumpgate/internal/storageclass"
	"github.com/imkarrer/jumpgate/metrics"
	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

// cancelReason is the canned cancellation reason the provider's billing
// service expects.
const cancelReason = "No longer needed"

// Provider is the slice of the provider API the volume lifecycle needs.
// Implemented by *softlayer.Client.
type Provider interface {
	capacityAPI
	datacenterAPI
	orderAPI
	orderItemsAPI
	guestAPI
	GetVirtualDiskImages(ctx context.Context) ([]softlayer.DiskImage, error)
	GetDiskImage(ctx context.Context, id int) (softlayer.DiskImage, error)
	GetDiskImageBillingItem(ctx context.Context, id int) (*softlayer.BillingItem, error)
	CancelBillingItem(ctx context.Context, billingItemID int, reason string) error
}

type Config struct {
	NamePrefix  string
	DefaultZone string
	RetryCount  int
	WaitTime    time.Duration
}

// CreateSpec is the validated body of a create request.
type CreateSpec struct {
	DisplayName      string
	SizeGB           int
	AvailabilityZone string
	VolumeType       string
}

// Service owns the volume lifecycle: create (order, poll, view), list, show,
// delete. Every call runs synchronously on the caller's goroutine, the create
// poll included.
type Service struct {
	log      *logging.Logger
	cfg      Config
	provider Provider
	classes  *storageclass.Registry

	capacity  *CapacityCatalog
	locations *LocationResolver
	orders    *OrderSubmitter
	poller    *FulfillmentPoller
	views     *ViewBuilder
}

func NewService(cfg Config, provider Provider, classes *storageclass.Registry, log *logging.Logger) *Service {
	return &Service{
		log:       log.WithField("component", "volume"),
		cfg:       cfg,
		provider:  provider,
		classes:   classes,
		capacity:  NewCapacityCatalog(provider, log),
		locations: NewLocationResolver(provider, cfg.DefaultZone, log),
		orders:    NewOrderSubmitter(provider, log),
		poller:    NewFulfillmentPoller(provider, cfg.RetryCount, cfg.WaitTime, log),
		views:     NewViewBuilder(provider, log),
	}
}

// Create turns a create request into a billed, physically assigned disk.
// All validation happens before the order is verified or placed. Once placed,
// downstream failures are reported but never trigger a compensating
// cancellation.
func (s *Service) Create(ctx context.Context, spec CreateSpec) (Volume, error) {
	if spec.SizeGB <= 0 {
		return Volume{}, &ValidationError{Reason: "size must be a positive integer"}
	}

	var class *storageclass.Class
	if spec.VolumeType != "" {
		c, err := s.classes.Get(spec.VolumeType)
		if err != nil {
			if errors.Is(err, storageclass.ErrClassNotFound) {
				return Volume{}, &ValidationError{Reason: "specify a volume with a valid volume type name"}
			}
			// ErrNoStorageClasses and load failures are server side.
			return Volume{}, err
		}
		class = &c
	}

	// Effective zone: explicit request zone, else the zone the class
	// implies via its backend name, else the configured default.
	zone := spec.AvailabilityZone
	if zone == "" && class != nil {
		zone = class.BackendName
	}
	if zone == "" {
		zone = s.cfg.DefaultZone
	}

	tier, err := s.matchCapacity(ctx, spec.SizeGB, class)
	if err != nil {
		return Volume{}, err
	}

	locationID, err := s.locations.Resolve(ctx, zone)
	if err != nil {
		return Volume{}, err
	}

	// The provider rejects orders with an empty disk description.
	description := s.cfg.NamePrefix + spec.DisplayName

	orderID, err := s.orders.Submit(ctx, tier, locationID, description)
	if err != nil {
		metrics.IncOrdersTotal(metrics.OrderStatusFailed)
		return Volume{}, err
	}
	metrics.IncOrdersTotal(metrics.OrderStatusPlaced)

	pollStart := time.Now()
	resourceID, resolved := s.poller.Poll(ctx, orderID)
	metrics.ObservePollDuration(pollStart)
	if !resolved {
		// The order is live but unconfirmed. It may still deliver a
		// billed disk out of band, which the caller can reconcile from
		// the provider portal. The order id in the error is the only
		// handle onto it.
		metrics.IncOrdersTotal(metrics.OrderStatusUnresolved)
		return Volume{}, fmt.Errorf("order %d: %w", orderID, ErrOrderUnresolved)
	}

	disk, err := s.provider.GetDiskImage(ctx, resourceID)
	if err != nil {
		return Volume{}, fmt.Errorf("fetching ordered disk %d: %w", resourceID, err)
	}

	vol := s.views.Build(ctx, disk, false)
	// The billing/attachment derived status is meaningless this early,
	// the caller gets an explicit "creating".
	vol.Status = StatusCreating
	return vol, nil
}

func (s *Service) matchCapacity(ctx context.Context, sizeGB int, class *storageclass.Class) (Tier, error) {
	if class != nil && class.ExactCapacity {
		tier, err := s.capacity.FindExact(ctx, sizeGB)
		if err != nil {
			if isNoMatchingCapacity(err) {
				return Tier{}, &ValidationError{
					Reason: fmt.Sprintf("volume type %q requires exact capacity and there is no volume with matching capacity", class.Name),
				}
			}
			return Tier{}, err
		}
		return tier, nil
	}
	tier, err := s.capacity.FindNearest(ctx, sizeGB)
	if err != nil {
		if isNoMatchingCapacity(err) {
			return Tier{}, &ValidationError{Reason: "no volume with matching capacity"}
		}
		return Tier{}, err
	}
	return tier, nil
}

// List returns all portable storage disks except swap disks and instance
// local disks, which the provider manages and the caller must never see.
// With detail set, attachments carry the owning guest's hostname.
func (s *Service) List(ctx context.Context, detail bool) ([]Volume, error) {
	disks, err := s.provider.GetVirtualDiskImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing disk images: %w", err)
	}
	disks = lo.Filter(disks, func(d softlayer.DiskImage, _ int) bool {
		return d.TypeID != softlayer.DiskImageTypeSwap && !d.LocalDiskFlag
	})
	return lo.Map(disks, func(d softlayer.DiskImage, _ int) Volume {
		return s.views.Build(ctx, d, detail)
	}), nil
}

// Get shows one volume with detail enrichment.
func (s *Service) Get(ctx context.Context, id int) (Volume, error) {
	disk, err := s.provider.GetDiskImage(ctx, id)
	if err != nil {
		return Volume{}, notFoundOrPassthrough(id, err)
	}
	return s.views.Build(ctx, disk, true), nil
}

// Delete cancels the disk's billing association. Physical teardown happens on
// the provider's schedule, there is no wait.
func (s *Service) Delete(ctx context.Context, id int) error {
	billingItem, err := s.provider.GetDiskImageBillingItem(ctx, id)
	if err != nil {
		return notFoundOrPassthrough(id, err)
	}
	if billingItem == nil {
		return &NotFoundError{ID: id, Message: fmt.Sprintf("volume %d has no billing item to cancel", id)}
	}
	if err := s.provider.CancelBillingItem(ctx, billingItem.ID, cancelReason); err != nil {
		return fmt.Errorf("cancelling billing item %d: %w", billingItem.ID, err)
	}
	metrics.IncCancellationsTotal()
	return nil
}

func isNoMatchingCapacity(err error) bool {
	return errors.Is(err, ErrNoMatchingCapacity)
}

// notFoundOrPassthrough maps provider "object missing" faults to a
// NotFoundError and leaves everything else, rate limits and timeouts
// included, untouched for the API layer to report as an upstream fault.
func notFoundOrPassthrough(id int, err error) error {
	apiErr := &softlayer.APIError{}
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return &NotFoundError{ID: id, Message: apiErr.FaultString}
	}
	return err
}
