package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI YAML description of the moderation API.
//
//go:embed openapi.yaml
var OpenAPI []byte
