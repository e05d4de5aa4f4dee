package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// metaSchema is the layout every templates_metadata.json must follow.
const metaSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "description": {"type": "string"},
      "required_fields": {"$ref": "#/definitions/fields"},
      "optional_fields": {"$ref": "#/definitions/fields"}
    }
  },
  "definitions": {
    "fields": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {"enum": ["string", "number", "array", "object"]},
          "format": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var metaLoader = gojsonschema.NewStringLoader(metaSchema)

func validate(data []byte) error {
	result, err := gojsonschema.Validate(metaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidSchema, strings.Join(errs, "; "))
	}
	return nil
}
