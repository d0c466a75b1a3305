package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/imkarrer/jumpgate/internal/storageclass"
	"github.com/imkarrer/jumpgate/internal/volume"
	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

// maxVolumeIDLen bounds accepted volume id keys. OpenStack volume ids are
// uuid4 strings, anything longer is rejected before the provider is called.
var maxVolumeIDLen = len(uuid.Nil.String())

const (
	msgMalformedBody = "Malformed request body"
	msgInvalidID     = "Invalid volume Id"
	msgNoTypes       = "Server has no volume types to select"
	msgOrderDelayed  = "Portable storage order delayed"
)

type volumeService interface {
	Create(ctx context.Context, spec volume.CreateSpec) (volume.Volume, error)
	List(ctx context.Context, detail bool) ([]volume.Volume, error)
	Get(ctx context.Context, id int) (volume.Volume, error)
	Delete(ctx context.Context, id int) error
}

// VolumesHandler serves the Cinder v1 style volume endpoints.
type VolumesHandler struct {
	log     *logging.Logger
	volumes volumeService
	classes *storageclass.Registry
}

func NewVolumesHandler(volumes volumeService, classes *storageclass.Registry, log *logging.Logger) *VolumesHandler {
	return &VolumesHandler{
		log:     log.WithField("component", "api"),
		volumes: volumes,
		classes: classes,
	}
}

func (h *VolumesHandler) RegisterHandlers(e *echo.Echo) {
	e.POST("/v1/:tenant_id/volumes", h.create)
	e.GET("/v1/:tenant_id/volumes", h.list)
	e.GET("/v1/:tenant_id/volumes/detail", h.listDetail)
	e.GET("/v1/:tenant_id/volumes/:volume_id", h.show)
	e.DELETE("/v1/:tenant_id/volumes/:volume_id", h.delete)
	e.GET("/v1/:tenant_id/types", h.listTypes)
}

type createVolumeRequest struct {
	Volume struct {
		DisplayName      string      `json:"display_name"`
		Size             json.Number `json:"size"`
		AvailabilityZone string      `json:"availability_zone"`
		VolumeType       string      `json:"volume_type"`
	} `json:"volume"`
}

func (h *VolumesHandler) create(c echo.Context) error {
	var req createVolumeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, msgMalformedBody)
	}
	size, err := strconv.Atoi(req.Volume.Size.String())
	if err != nil {
		return badRequest(c, "size must be an integer")
	}

	vol, err := h.volumes.Create(c.Request().Context(), volume.CreateSpec{
		DisplayName:      req.Volume.DisplayName,
		SizeGB:           size,
		AvailabilityZone: req.Volume.AvailabilityZone,
		VolumeType:       req.Volume.VolumeType,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"volume": vol})
}

func (h *VolumesHandler) list(c echo.Context) error {
	vols, err := h.volumes.List(c.Request().Context(), false)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"volumes": vols})
}

func (h *VolumesHandler) listDetail(c echo.Context) error {
	vols, err := h.volumes.List(c.Request().Context(), true)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"volumes": vols})
}

func (h *VolumesHandler) show(c echo.Context) error {
	id, ok := parseVolumeID(c.Param("volume_id"))
	if !ok {
		return badRequest(c, msgInvalidID)
	}
	vol, err := h.volumes.Get(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"volume": vol})
}

func (h *VolumesHandler) delete(c echo.Context) error {
	id, ok := parseVolumeID(c.Param("volume_id"))
	if !ok {
		return badRequest(c, msgInvalidID)
	}
	if err := h.volumes.Delete(c.Request().Context(), id); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// listTypes serves the storage class catalog. A catalog that failed to load
// is an empty list here, never an error.
func (h *VolumesHandler) listTypes(c echo.Context) error {
	classes := h.classes.List()
	types := make([]echo.Map, 0, len(classes))
	for _, class := range classes {
		types = append(types, echo.Map{
			"id":   class.ID,
			"name": class.Name,
			"extra_specs": echo.Map{
				storageclass.KeyBackendName:   class.BackendName,
				storageclass.KeyDisplayName:   class.DisplayName,
				storageclass.KeySANBacked:     class.SANBacked,
				storageclass.KeyExactCapacity: class.ExactCapacity,
			},
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"volume_types": types})
}

// parseVolumeID validates the :volume_id path key before anything reaches
// the provider. Oversized or non-numeric keys cannot name an upstream disk.
func parseVolumeID(raw string) (int, bool) {
	if raw == "" || len(raw) > maxVolumeIDLen {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *VolumesHandler) writeError(c echo.Context, err error) error {
	validationErr := &volume.ValidationError{}
	if errors.As(err, &validationErr) {
		return badRequest(c, validationErr.Reason)
	}
	if errors.Is(err, storageclass.ErrNoStorageClasses) {
		return volumeFault(c, msgNoTypes, http.StatusInternalServerError)
	}
	if errors.Is(err, volume.ErrOrderUnresolved) {
		// The order was placed but never confirmed. An explicit error
		// beats fabricating a volume body with no id.
		return volumeFault(c, msgOrderDelayed, http.StatusInternalServerError)
	}
	notFoundErr := &volume.NotFoundError{}
	if errors.As(err, &notFoundErr) {
		return volumeFault(c, notFoundErr.Error(), http.StatusNotFound)
	}
	apiErr := &softlayer.APIError{}
	if errors.As(err, &apiErr) {
		return providerFault(c, apiErr)
	}
	h.log.Errorf("unhandled volume error: %v", err)
	return volumeFault(c, err.Error(), http.StatusInternalServerError)
}
