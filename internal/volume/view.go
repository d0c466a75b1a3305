package volume

import (
	"context"
	"strconv"

	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

// Volume statuses derived from billing and attachment state.
const (
	StatusCreating  = "creating"
	StatusAvailable = "available"
	StatusInUse     = "in-use"
	StatusDeleting  = "deleting"
)

// mountLabels maps the provider's device index to a human label. Device 0 is
// always the boot disk, device 1 is reserved by the provider for swap.
var mountLabels = map[string]string{
	"0": "First Disk(boot)",
	"2": "Second Disk",
	"3": "Third Disk",
	"4": "Fourth Disk",
	"5": "Fifth Disk",
}

const mountLabelUnknown = "UNKNOWN"

// Volume is the external representation of a provisioned disk.
type Volume struct {
	ID                 int               `json:"id"`
	DisplayName        string            `json:"display_name"`
	DisplayDescription string            `json:"display_description"`
	Size               int               `json:"size"`
	VolumeType         string            `json:"volume_type"`
	Metadata           map[string]string `json:"metadata"`
	SnapshotID         *string           `json:"snapshot_id"`
	Attachments        []Attachment      `json:"attachments"`
	Bootable           string            `json:"bootable"`
	AvailabilityZone   string            `json:"availability_zone"`
	CreatedAt          string            `json:"created_at"`
	Status             string            `json:"status"`
}

type Attachment struct {
	ID         int    `json:"id"`
	ServerID   string `json:"server_id"`
	HostName   string `json:"host_name"`
	Mountpoint string `json:"mountpoint"`
}

type guestAPI interface {
	GetVirtualGuest(ctx context.Context, id int) (softlayer.VirtualGuest, error)
}

// ViewBuilder shapes provider disk images into Volumes.
type ViewBuilder struct {
	log    *logging.Logger
	guests guestAPI
}

func NewViewBuilder(guests guestAPI, log *logging.Logger) *ViewBuilder {
	return &ViewBuilder{
		log:    log.WithField("component", "view"),
		guests: guests,
	}
}

// Build translates one disk image. With detail set, attachments are enriched
// with the owning instance's host name, best effort: a failed instance lookup
// degrades host_name to empty instead of failing the view.
func (b *ViewBuilder) Build(ctx context.Context, disk softlayer.DiskImage, detail bool) Volume {
	attachments := make([]Attachment, 0, len(disk.BlockDevices))
	bootable := "false"
	for _, dev := range disk.BlockDevices {
		attachments = append(attachments, b.buildAttachment(ctx, dev, detail))
		if dev.BootableFlag != 0 {
			bootable = "true"
		}
	}

	zone := ""
	if disk.StorageRepository != nil && disk.StorageRepository.Datacenter != nil {
		zone = disk.StorageRepository.Datacenter.Name
	}

	return Volume{
		ID:                 disk.ID,
		DisplayName:        disk.Name,
		DisplayDescription: disk.Description,
		Size:               int(disk.Capacity),
		VolumeType:         strconv.Itoa(disk.TypeID),
		Metadata:           map[string]string{},
		SnapshotID:         nil,
		Attachments:        attachments,
		Bootable:           bootable,
		AvailabilityZone:   zone,
		CreatedAt:          disk.CreateDate,
		Status:             deriveStatus(disk),
	}
}

func (b *ViewBuilder) buildAttachment(ctx context.Context, dev softlayer.BlockDevice, detail bool) Attachment {
	a := Attachment{
		ID:         dev.DiskImageID,
		Mountpoint: mountLabel(dev.Device),
	}
	if dev.GuestID == 0 {
		return a
	}
	a.ServerID = strconv.Itoa(dev.GuestID)
	if !detail {
		return a
	}
	guest, err := b.guests.GetVirtualGuest(ctx, dev.GuestID)
	if err != nil {
		// Degraded, not fatal. The reason stays observable in logs.
		b.log.Warnf("host name lookup for guest %d failed: %v", dev.GuestID, err)
		return a
	}
	a.HostName = guest.FullyQualifiedDomainName
	return a
}

func mountLabel(device string) string {
	if label, ok := mountLabels[device]; ok {
		return label
	}
	return mountLabelUnknown
}

// deriveStatus computes the volume status from two signals: the billing
// association and the attachment list. A disk without a billing item was
// either ordered bundled with an instance or already cancelled.
func deriveStatus(disk softlayer.DiskImage) string {
	attached := len(disk.BlockDevices) > 0
	switch {
	case attached:
		return StatusInUse
	case disk.BillingItem != nil:
		return StatusAvailable
	default:
		return StatusDeleting
	}
}
