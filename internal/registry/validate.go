package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
)

// DefaultHealthCheckInterval applies when a descriptor enables health checks
// without an explicit interval.
const DefaultHealthCheckInterval = 60 * time.Second

// descriptorSchema is the JSON Schema every registration descriptor must
// satisfy before semantic validation runs.
const descriptorSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "endpointUrl", "transportType"],
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1,
      "maxLength": 128,
      "pattern": "^[a-zA-Z0-9][a-zA-Z0-9._-]*$"
    },
    "displayName": {"type": "string", "maxLength": 256},
    "endpointUrl": {"type": "string", "minLength": 1},
    "transportType": {"type": "string", "enum": ["http", "websocket"]},
    "capabilities": {
      "type": "array",
      "items": {"type": "string", "minLength": 1, "maxLength": 128}
    },
    "authConfig": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "healthCheckEnabled": {"type": "boolean"},
    "healthCheckIntervalSeconds": {"type": "integer", "minimum": 1, "maximum": 86400},
    "discoverCapabilities": {"type": "boolean"}
  }
}`

var compiledDescriptorSchema = gojsonschema.NewStringLoader(descriptorSchema)

// ValidateDescriptor checks a registration descriptor against the JSON schema
// and then applies semantic validation of the endpoint and capability set.
func ValidateDescriptor(descriptor domain.ServerDescriptor) error {
	raw, err := json.Marshal(descriptor)
	if err != nil {
		return fmt.Errorf("%w: descriptor is not serializable: %w", errors.ErrValidation, err)
	}

	result, err := gojsonschema.Validate(compiledDescriptorSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: schema validation failed: %w", errors.ErrValidation, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", errors.ErrValidation, strings.Join(msgs, "; "))
	}

	if err := validateEndpointURL(descriptor.EndpointURL); err != nil {
		return err
	}
	return validateCapabilities(descriptor.Capabilities)
}

// validateEndpointURL requires an absolute http(s)/ws(s) URL with a host,
// matching the declared transport family on scheme.
func validateEndpointURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: invalid endpoint URL: %w", errors.ErrValidation, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported endpoint scheme %q", errors.ErrValidation, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: endpoint URL missing host", errors.ErrValidation)
	}
	return nil
}

func validateCapabilities(capabilities []string) error {
	seen := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: capability names cannot be blank", errors.ErrValidation)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate capability %q", errors.ErrValidation, c)
		}
		seen[c] = struct{}{}
	}
	return nil
}
