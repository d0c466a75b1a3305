package softlayer

import "fmt"

// APIError is a decoded provider API fault. FaultCode is the provider's own
// exception class name, e.g. "SoftLayer_Exception_ObjectNotFound".
type APIError struct {
	StatusCode  int
	FaultCode   string `json:"code"`
	FaultString string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("SoftLayerAPIError(%s): %s", e.FaultCode, e.FaultString)
}

// IsNotFound reports whether the fault indicates a missing upstream object.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404 || e.FaultCode == "SoftLayer_Exception_ObjectNotFound"
}
