package volume

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

type orderItemsAPI interface {
	GetOrderTopLevelItems(ctx context.Context, orderID int) ([]softlayer.OrderItem, error)
}

// LinearBackOff waits Interval*n before retry n (1-based), so the first retry
// fires immediately and later ones stretch out linearly. Single use, like the
// other backoff.BackOff implementations.
type LinearBackOff struct {
	Interval time.Duration

	attempt int
}

func (b *LinearBackOff) NextBackOff() time.Duration {
	d := b.Interval * time.Duration(b.attempt)
	b.attempt++
	return d
}

func (b *LinearBackOff) Reset() {
	b.attempt = 0
}

var errNotFulfilled = errors.New("billing item not yet available")

// FulfillmentPoller resolves a placed order into the provisioned resource id.
// placeOrder only returns a receipt, the disk id appears on the order's
// billing item some time later.
type FulfillmentPoller struct {
	log        *logging.Logger
	api        orderItemsAPI
	retryCount int
	policy     func() backoff.BackOff
}

func NewFulfillmentPoller(api orderItemsAPI, retryCount int, waitTime time.Duration, log *logging.Logger) *FulfillmentPoller {
	return &FulfillmentPoller{
		log:        log.WithField("component", "fulfillment"),
		api:        api,
		retryCount: retryCount,
		policy: func() backoff.BackOff {
			return &LinearBackOff{Interval: waitTime}
		},
	}
}

// Poll attempts at most retryCount+1 reads of the order's top level line
// items. Any attempt failure, transport or a still-missing billing item, is
// "not yet". Exhaustion returns resolved=false, never an error: the placed
// order cannot be cancelled yet since the billing item does not exist, so
// there is nothing to roll back. Context cancellation cuts the waits short
// and reports the order as unresolved.
func (p *FulfillmentPoller) Poll(ctx context.Context, orderID int) (resourceID int, resolved bool) {
	attempts := 0
	operation := func() error {
		attempts++
		items, err := p.api.GetOrderTopLevelItems(ctx, orderID)
		if err != nil {
			p.log.Debugf("order %d items not readable yet: %v", orderID, err)
			return errNotFulfilled
		}
		// One disk is ordered per volume create, only the first line
		// item matters.
		if len(items) == 0 || items[0].BillingItem == nil || items[0].BillingItem.ResourceTableID == 0 {
			return errNotFulfilled
		}
		resourceID = items[0].BillingItem.ResourceTableID
		return nil
	}

	err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.WithContext(p.policy(), ctx), uint64(p.retryCount)))
	if err != nil {
		p.log.Infof("portable storage order %d has not been delivered after %d attempts", orderID, attempts)
		return 0, false
	}
	return resourceID, true
}
