package softlayer

import (
	"bytes"
	"fmt"
	"strconv"
)

// Virtual disk image type ids as reported by the provider. Swap disks are
// provider-managed and never surfaced as volumes.
const (
	DiskImageTypeSystem = 241
	DiskImageTypeSwap   = 246
)

// OrderContainerVirtualDiskImage is the complexType required when ordering a
// portable storage disk.
const OrderContainerVirtualDiskImage = "SoftLayer_Container_Product_Order_Virtual_Disk_Image"

// Capacity decodes the provider's capacity field, which arrives either as a
// JSON number or as a decimal string like "150" or "25.00".
type Capacity int

func (c *Capacity) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parsing capacity %q: %w", string(data), err)
	}
	*c = Capacity(int(f))
	return nil
}

type DiskImage struct {
	ID                int                `json:"id"`
	Name              string             `json:"name"`
	TypeID            int                `json:"typeId"`
	Units             string             `json:"units"`
	Capacity          Capacity           `json:"capacity"`
	Description       string             `json:"description"`
	CreateDate        string             `json:"createDate"`
	BlockDevices      []BlockDevice      `json:"blockDevices"`
	StorageRepository *StorageRepository `json:"storageRepository"`
	BillingItem       *BillingItem       `json:"billingItem"`
	LocalDiskFlag     bool               `json:"localDiskFlag"`
}

type BlockDevice struct {
	DiskImageID  int    `json:"diskImageId"`
	GuestID      int    `json:"guestId"`
	Device       string `json:"device"`
	BootableFlag int    `json:"bootableFlag"`
}

type StorageRepository struct {
	Datacenter *Location `json:"datacenter"`
}

type Location struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type BillingItem struct {
	ID              int `json:"id"`
	ResourceTableID int `json:"resourceTableId"`
}

type ProductPackage struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsActive int    `json:"isActive"`
}

// PackageItem is one priceable item of a product package, e.g.
// {"capacity": "150", "description": "150 GB (SAN)", "prices": [{"id": 2262}]}.
type PackageItem struct {
	ID          int      `json:"id"`
	Capacity    Capacity `json:"capacity"`
	Description string   `json:"description"`
	Units       string   `json:"units"`
	Prices      []Price  `json:"prices"`
}

type Price struct {
	ID int `json:"id"`
}

// DiskImageOrder is the priced order payload for a portable storage disk.
type DiskImageOrder struct {
	ComplexType     string  `json:"complexType"`
	Prices          []Price `json:"prices"`
	PackageID       int     `json:"packageId"`
	Location        int     `json:"location"`
	DiskDescription string  `json:"diskDescription"`
}

type OrderReceipt struct {
	OrderID int `json:"orderId"`
}

// OrderItem is a top-level line item of a placed billing order. The billing
// item may lag the order by a while, callers must treat its absence as
// "not yet".
type OrderItem struct {
	ID          int          `json:"id"`
	BillingItem *BillingItem `json:"billingItem"`
}

type VirtualGuest struct {
	ID                       int    `json:"id"`
	Hostname                 string `json:"hostname"`
	FullyQualifiedDomainName string `json:"fullyQualifiedDomainName"`
}
