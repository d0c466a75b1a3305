package storageclass

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/imkarrer/jumpgate/pkg/logging"
)

// Extra spec keys every storage class must carry. Entries missing any of them
// are repaired from the default template rather than rejected.
const (
	KeyBackendName   = "capabilities:volume_backend_name"
	KeyDisplayName   = "drivers:display_name"
	KeySANBacked     = "drivers:san_backed_disk"
	KeyExactCapacity = "drivers:exact_capacity"
)

var (
	// ErrNoStorageClasses means the catalog is empty or failed to load and
	// a storage class was required. A server configuration problem, not a
	// caller one.
	ErrNoStorageClasses = errors.New("server has no volume types to select")

	ErrClassNotFound = errors.New("volume type not found")
)

// ConfigurationError is a fatal catalog defect that self-healing must not
// paper over, e.g. a non-boolean exact-capacity flag.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "volume types configuration: " + e.Reason
}

// Class is one loaded storage class. Immutable after load.
type Class struct {
	ID            string
	Name          string
	BackendName   string
	DisplayName   string
	SANBacked     bool
	ExactCapacity bool
}

// Diagnostic records one non-fatal repair or drop applied during load.
type Diagnostic struct {
	ClassID        string
	Field          string
	DefaultApplied bool
	Message        string
}

// Report is the outcome of the one-time catalog load.
type Report struct {
	Diagnostics []Diagnostic
	Err         error
}

type rawCatalog struct {
	VolumeTypes []rawClass `json:"volume_types"`
}

type rawClass struct {
	ID         *string        `json:"id"`
	Name       *string        `json:"name"`
	ExtraSpecs map[string]any `json:"extra_specs"`
}

func defaultExtraSpecs() map[string]any {
	return map[string]any{
		KeyBackendName:   "SAN",
		KeyDisplayName:   "Portable Storage (SAN)",
		KeySANBacked:     true,
		KeyExactCapacity: false,
	}
}

// DefaultCatalogJSON is the built-in catalog applied when no volume types are
// configured.
const DefaultCatalogJSON = `{
  "volume_types": [
    {
      "id": "1",
      "name": "SAN",
      "extra_specs": {
        "capabilities:volume_backend_name": "SAN",
        "drivers:display_name": "Portable Storage (SAN)",
        "drivers:san_backed_disk": true,
        "drivers:exact_capacity": false
      }
    }
  ]
}`

// Registry loads the storage class catalog exactly once, on first use, and
// serves a read-only view afterwards. Concurrent first-use calls are
// serialized by sync.Once.
type Registry struct {
	log *logging.Logger
	raw string

	once    sync.Once
	classes []Class
	byName  map[string]Class
	report  Report
}

func NewRegistry(rawJSON string, log *logging.Logger) *Registry {
	if rawJSON == "" {
		rawJSON = DefaultCatalogJSON
	}
	return &Registry{
		log: log.WithField("component", "storageclass"),
		raw: rawJSON,
	}
}

// Get looks a class up by name. Returns ErrNoStorageClasses when the catalog
// is empty (or failed to load), ErrClassNotFound for an unknown name.
func (r *Registry) Get(name string) (Class, error) {
	r.once.Do(r.load)
	if len(r.classes) == 0 {
		return Class{}, ErrNoStorageClasses
	}
	c, ok := r.byName[name]
	if !ok {
		return Class{}, fmt.Errorf("%q: %w", name, ErrClassNotFound)
	}
	return c, nil
}

// List returns the loaded catalog. Empty, never nil, when the load failed.
func (r *Registry) List() []Class {
	r.once.Do(r.load)
	return r.classes
}

func (r *Registry) LoadReport() Report {
	r.once.Do(r.load)
	return r.report
}

func (r *Registry) load() {
	r.classes = []Class{}
	r.byName = map[string]Class{}

	var catalog rawCatalog
	if err := json.UnmarshalFromString(r.raw, &catalog); err != nil {
		// A broken catalog degrades to an empty one. Lookups will fail
		// with ErrNoStorageClasses, the types listing stays empty.
		r.report.Err = fmt.Errorf("parsing volume types: %w", err)
		r.log.Errorf("volume types config did not parse, serving empty catalog: %v", err)
		return
	}

	classes, diags, err := validate(catalog)
	r.report.Diagnostics = diags
	for _, d := range diags {
		r.log.Errorf("volume type %s: %s", d.ClassID, d.Message)
	}
	if err != nil {
		r.report.Err = err
		r.log.Errorf("volume types config rejected, serving empty catalog: %v", err)
		return
	}

	r.classes = classes
	for _, c := range classes {
		r.byName[c.Name] = c
	}
	r.log.Infof("loaded %d volume types, %d repairs applied", len(classes), len(diags))
}

// validate runs the self-heal pass over every raw entry, accumulating
// non-fatal diagnostics. Only boolean type violations abort the whole load.
func validate(catalog rawCatalog) ([]Class, []Diagnostic, error) {
	classes := []Class{}
	var diags []Diagnostic
	seen := map[string]struct{}{}

	for _, v := range catalog.VolumeTypes {
		id := ""
		if v.ID != nil {
			id = *v.ID
		}

		if v.ID == nil || v.Name == nil {
			diags = append(diags, Diagnostic{
				ClassID: id,
				Message: "entry missing id or name key, dropped",
			})
			continue
		}

		specs := v.ExtraSpecs
		if specs == nil {
			specs = defaultExtraSpecs()
			diags = append(diags, Diagnostic{
				ClassID:        id,
				Field:          "extra_specs",
				DefaultApplied: true,
				Message:        "entry missing extra_specs key, replaced with default values",
			})
		}

		var defaulted []string
		for _, key := range []string{KeyBackendName, KeyDisplayName, KeySANBacked, KeyExactCapacity} {
			if _, ok := specs[key]; !ok {
				specs[key] = defaultExtraSpecs()[key]
				defaulted = append(defaulted, key)
			}
		}
		if len(defaulted) > 0 {
			diags = append(diags, Diagnostic{
				ClassID:        id,
				Field:          strings.Join(defaulted, ", "),
				DefaultApplied: true,
				Message:        "replaced " + strings.Join(defaulted, ", ") + " with default values",
			})
		}

		exact, ok := specs[KeyExactCapacity].(bool)
		if !ok {
			return nil, diags, &ConfigurationError{Reason: "expects type of " + KeyExactCapacity + " to be bool"}
		}
		san, ok := specs[KeySANBacked].(bool)
		if !ok {
			return nil, diags, &ConfigurationError{Reason: "expects type of " + KeySANBacked + " to be bool"}
		}

		if _, dup := seen[id]; dup {
			diags = append(diags, Diagnostic{
				ClassID: id,
				Field:   "id",
				Message: "duplicate id detected, entry dropped",
			})
			continue
		}
		seen[id] = struct{}{}

		classes = append(classes, Class{
			ID:            id,
			Name:          *v.Name,
			BackendName:   asString(specs[KeyBackendName]),
			DisplayName:   asString(specs[KeyDisplayName]),
			SANBacked:     san,
			ExactCapacity: exact,
		})
	}

	return classes, diags, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
