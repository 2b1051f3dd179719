package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

// BuildMetadataSchema returns the JSON Schema every stored metadata object must satisfy.
// Extractors may add keys; the known ones are typed.
func BuildMetadataSchema() map[string]any {
	count := map[string]any{"type": "integer", "minimum": 0}
	props := map[string]any{
		"format":             map[string]any{"type": "string", "minLength": 1},
		"mimeType":           map[string]any{"type": "string"},
		"fileName":           map[string]any{"type": "string"},
		"fileSize":           count,
		"contentHash":        map[string]any{"type": "string", "pattern": `^[0-9a-f]{64}$`},
		"requestedMethod":    map[string]any{"type": "string", "enum": []string{"auto", "ocr", "text"}},
		"cacheHit":           map[string]any{"type": "boolean"},
		"empty":              map[string]any{"type": "boolean"},
		"pageCount":          count,
		"standardTextLength": count,
		"ocrTextLength":      count,
		"imagesProcessed":    count,
		"imagesSkipped":      count,
		"hasImages":          map[string]any{"type": "boolean"},
		"subMethods":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"slideCount":         count,
		"sheetCount":         count,
		"sheetNames":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"rowCount":           count,
		"legacy":             map[string]any{"type": "boolean"},
		"fallback":           map[string]any{"type": "string"},
		"recommendation":     map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
		"required":             []string{"format", "contentHash"},
	}
}

// metadataValidator checks metadata maps against a compiled schema.
type metadataValidator struct {
	schema *jsonschema.Schema
}

func newMetadataValidator(schemaMap map[string]any) (*metadataValidator, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("metadata.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("metadata.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &metadataValidator{schema: schema}, nil
}

// normalize round-trips metadata through JSON, so the stored value is exactly what
// validation saw, and validates it.
func (v *metadataValidator) normalize(m map[string]any) (map[string]any, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata is not serializable: %v", common.ErrValidation, err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", common.ErrValidation, err)
	}
	if err := v.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: metadata does not match schema: %v", common.ErrValidation, err)
	}
	out, ok := generic.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: metadata is not an object", common.ErrValidation)
	}
	return out, nil
}
