package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ecadtools/datasheetdl/internal/catalog"
)

// credentialsSchema rejects malformed credential files before any network
// call; a typo'd key name should fail the run, not silently retire.
const credentialsSchema = `{
  "type": "object",
  "required": ["api_keys"],
  "additionalProperties": false,
  "properties": {
    "api_keys": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["client_id", "client_secret"],
        "additionalProperties": false,
        "properties": {
          "client_id": {"type": "string", "minLength": 1},
          "client_secret": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

type credentialsFile struct {
	APIKeys []struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"api_keys"`
}

// LoadCredentials reads and schema-validates the credentials JSON at path.
// Each key is labeled key-1, key-2, ... in file order; labels appear in logs
// and worker IDs so operators can tell keys apart without seeing secrets.
func LoadCredentials(path string) ([]catalog.Credential, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	if err := validateCredentials(b); err != nil {
		return nil, fmt.Errorf("credentials %s: %w", path, err)
	}

	var file credentialsFile
	if err := json.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}

	creds := make([]catalog.Credential, 0, len(file.APIKeys))
	for i, k := range file.APIKeys {
		creds = append(creds, catalog.Credential{
			ID:           fmt.Sprintf("key-%d", i+1),
			ClientID:     strings.TrimSpace(k.ClientID),
			ClientSecret: strings.TrimSpace(k.ClientSecret),
		})
	}
	return creds, nil
}

func validateCredentials(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("credentials.json", bytes.NewReader([]byte(credentialsSchema))); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("credentials.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
