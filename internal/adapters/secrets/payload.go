package secrets

import (
	"encoding/json"
	"strings"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
)

// parsePayload accepts either a bare value or a JSON document of the form
// {"value": "...", "tags": {...}} as written by the provisioning scripts
func parsePayload(raw, version string) *ports.Secret {
	var doc struct {
		Value string            `json:"value"`
		Tags  map[string]string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err == nil && doc.Value != "" {
		return &ports.Secret{Value: doc.Value, Version: version, Metadata: doc.Tags}
	}
	return &ports.Secret{Value: strings.TrimRight(raw, "\r\n"), Version: version}
}
