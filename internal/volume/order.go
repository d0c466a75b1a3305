package volume

import (
	"context"
	"fmt"

	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

type orderAPI interface {
	VerifyOrder(ctx context.Context, order softlayer.DiskImageOrder) error
	PlaceOrder(ctx context.Context, order softlayer.DiskImageOrder) (softlayer.OrderReceipt, error)
}

// OrderSubmitter builds and places priced disk orders. Verification must
// succeed before placement, so a bad payload never reaches billing.
type OrderSubmitter struct {
	log *logging.Logger
	api orderAPI
}

func NewOrderSubmitter(api orderAPI, log *logging.Logger) *OrderSubmitter {
	return &OrderSubmitter{
		log: log.WithField("component", "order"),
		api: api,
	}
}

// Submit verifies and places an order for the given tier at the given
// location. Returns the provider's order id, the only handle onto the
// asynchronous fulfillment.
func (s *OrderSubmitter) Submit(ctx context.Context, tier Tier, locationID int, description string) (int, error) {
	order := softlayer.DiskImageOrder{
		ComplexType:     softlayer.OrderContainerVirtualDiskImage,
		Prices:          tier.Prices,
		PackageID:       tier.PackageID,
		Location:        locationID,
		DiskDescription: description,
	}
	s.log.Debugf("portable storage order payload: %+v", order)

	if err := s.api.VerifyOrder(ctx, order); err != nil {
		return 0, fmt.Errorf("verifying order: %w", err)
	}
	receipt, err := s.api.PlaceOrder(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("placing order: %w", err)
	}
	s.log.Debugf("portable storage order receipt: %+v", receipt)
	return receipt.OrderID, nil
}
