package tool

import (
	"encoding/json"

	"github.com/driftloop/agentcore/pkg/agentcore/errs"
)

// decodeSchema decodes raw JSON schema bytes into the generic document
// shape jsonschema/v6's Compiler.AddResource expects.
func decodeSchema(raw []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func schemaFormatError(tool string, cause error) error {
	return errs.Wrap(cause, errs.KindSchemaFormat, "invalid input schema for tool "+tool).WithContext("tool", tool)
}
