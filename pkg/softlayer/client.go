package softlayer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"

	"github.com/imkarrer/jumpgate/pkg/logging"
)

const (
	// PublicEndpoint is the provider's public REST API endpoint.
	PublicEndpoint = "https://api.softlayer.com/rest/v3"

	headerUserAgent = "User-Agent"
)

// diskImageMask selects every disk image relation the volume views need in a
// single round trip.
var diskImageMask = "mask[" + strings.Join([]string{
	"id",
	"name",
	"type",
	"typeId",
	"units",
	"storageRepositoryId",
	"capacity",
	"description",
	"createDate",
	"blockDevices",
	"storageRepository.datacenter",
	"billingItem",
	"localDiskFlag",
}, ",") + "]"

type Config struct {
	Endpoint string `json:"endpoint"`
	Username string `json:"username"`
	APIKey   string `json:"-"`
}

func (c Config) Valid() bool {
	return c.Username != "" && c.APIKey != ""
}

func NewClient(userAgent string, cfg Config, log *logging.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = PublicEndpoint
	}

	restClient := resty.NewWithClient(newDefaultHTTPClient())
	restClient.SetBaseURL(endpoint)
	restClient.SetBasicAuth(cfg.Username, cfg.APIKey)
	restClient.Header.Set(headerUserAgent, userAgent)
	restClient.JSONMarshal = json.Marshal
	restClient.JSONUnmarshal = json.Unmarshal

	return &Client{
		log:        log.WithField("component", "softlayer"),
		restClient: restClient,
	}
}

func newDefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 2 * time.Minute,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Client calls the provider's REST API. Paths follow the provider's
// service-method convention: /{Service}/{id}/{method}.json.
type Client struct {
	log        *logging.Logger
	restClient *resty.Client
}

// GetVirtualDiskImages lists every portable storage disk image on the
// account, swap and local disks included.
func (c *Client) GetVirtualDiskImages(ctx context.Context) ([]DiskImage, error) {
	var out []DiskImage
	err := c.get(ctx, "/SoftLayer_Account/getVirtualDiskImages.json", diskImageMask, &out)
	return out, err
}

func (c *Client) GetDiskImage(ctx context.Context, id int) (DiskImage, error) {
	var out DiskImage
	err := c.get(ctx, fmt.Sprintf("/SoftLayer_Virtual_Disk_Image/%d/getObject.json", id), diskImageMask, &out)
	return out, err
}

// GetDiskImageBillingItem fetches only the billing association of a disk
// image. A nil billing item means the disk is already cancelled or bundled
// with an instance.
func (c *Client) GetDiskImageBillingItem(ctx context.Context, id int) (*BillingItem, error) {
	var out DiskImage
	err := c.get(ctx, fmt.Sprintf("/SoftLayer_Virtual_Disk_Image/%d/getObject.json", id), "mask[billingItem]", &out)
	if err != nil {
		return nil, err
	}
	return out.BillingItem, nil
}

func (c *Client) GetProductPackages(ctx context.Context) ([]ProductPackage, error) {
	var out []ProductPackage
	err := c.get(ctx, "/SoftLayer_Product_Package/getAllObjects.json", "", &out)
	return out, err
}

func (c *Client) GetPackageItems(ctx context.Context, packageID int) ([]PackageItem, error) {
	var out []PackageItem
	err := c.get(ctx, fmt.Sprintf("/SoftLayer_Product_Package/%d/getItems.json", packageID), "mask[prices.id]", &out)
	return out, err
}

func (c *Client) GetDatacenters(ctx context.Context) ([]Location, error) {
	var out []Location
	err := c.get(ctx, "/SoftLayer_Location_Datacenter/getDatacenters.json", "mask[name,id]", &out)
	return out, err
}

// VerifyOrder dry-runs the order with the provider's billing system. No
// billable action occurs.
func (c *Client) VerifyOrder(ctx context.Context, order DiskImageOrder) error {
	return c.post(ctx, "/SoftLayer_Product_Order/verifyOrder.json", []any{order}, nil)
}

// PlaceOrder submits the order. The receipt carries the order id only, the
// provisioned resource id is discovered later via the billing order.
func (c *Client) PlaceOrder(ctx context.Context, order DiskImageOrder) (OrderReceipt, error) {
	var out OrderReceipt
	err := c.post(ctx, "/SoftLayer_Product_Order/placeOrder.json", []any{order}, &out)
	return out, err
}

func (c *Client) GetOrderTopLevelItems(ctx context.Context, orderID int) ([]OrderItem, error) {
	var out []OrderItem
	err := c.get(ctx, fmt.Sprintf("/SoftLayer_Billing_Order/%d/getOrderTopLevelItems.json", orderID), "mask[billingItem]", &out)
	return out, err
}

// CancelBillingItem cancels the billing association immediately. Physical
// teardown happens on the provider's schedule.
func (c *Client) CancelBillingItem(ctx context.Context, billingItemID int, reason string) error {
	path := fmt.Sprintf("/SoftLayer_Billing_Item/%d/cancelItem.json", billingItemID)
	return c.post(ctx, path, []any{true, true, reason}, nil)
}

func (c *Client) GetVirtualGuest(ctx context.Context, id int) (VirtualGuest, error) {
	var out VirtualGuest
	err := c.get(ctx, fmt.Sprintf("/SoftLayer_Virtual_Guest/%d/getObject.json", id), "mask[id,hostname,fullyQualifiedDomainName]", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path, mask string, out any) error {
	req := c.restClient.R().SetContext(ctx)
	if mask != "" {
		req.SetQueryParam("objectMask", mask)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	return c.decode(path, resp, out)
}

func (c *Client) post(ctx context.Context, path string, parameters []any, out any) error {
	resp, err := c.restClient.R().
		SetContext(ctx).
		SetBody(map[string]any{"parameters": parameters}).
		Post(path)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	return c.decode(path, resp, out)
}

func (c *Client) decode(path string, resp *resty.Response, out any) error {
	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.FaultString == "" {
			apiErr.FaultString = string(resp.Body())
		}
		c.log.Warnf("api fault on %s: %v", path, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
