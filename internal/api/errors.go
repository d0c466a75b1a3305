package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/imkarrer/jumpgate/pkg/softlayer"
)

// fault is the body of every OpenStack-style error response.
type fault struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"badRequest": fault{Message: message, Code: http.StatusBadRequest},
	})
}

func volumeFault(c echo.Context, message string, code int) error {
	return c.JSON(code, echo.Map{
		"volumeFault": fault{Message: message, Code: code},
	})
}

// providerFault passes an upstream API fault through, keeping the provider's
// own fault code in the body.
func providerFault(c echo.Context, apiErr *softlayer.APIError) error {
	status := apiErr.StatusCode
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, echo.Map{
		"SoftLayerAPIError": fault{Message: apiErr.FaultString, Code: apiErr.FaultCode},
	})
}
