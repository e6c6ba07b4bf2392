package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Gemini's responseSchema dialect (OpenAPI subset, upper-case types).

func documentResponseSchema() map[string]any {
	str := map[string]any{"type": "STRING"}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"status":         map[string]any{"type": "STRING", "description": "SUCCESS or FAIL"},
			"name":           str,
			"documentNumber": str,
			"dob":            str,
			"address":        map[string]any{"type": "STRING", "description": "Address string, omitted if not applicable/present"},
			"gender":         str,
			"fatherName":     str,
			"motherName":     str,
			"nationality":    str,
			"issueDate":      str,
			"expiryDate":     str,
			"feedback":       str,
			"tip":            str,
		},
		"required": []string{"status"},
	}
}

func livenessResponseSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"pinVisible":     map[string]any{"type": "BOOLEAN"},
			"faceMatchScore": map[string]any{"type": "NUMBER"},
			"feedback":       map[string]any{"type": "STRING"},
		},
		"required": []string{"pinVisible", "faceMatchScore"},
	}
}

// JSON Schema used to check what actually came back. It is looser than the
// request schema where models are known to drift (strings for booleans).

const documentJSONSchema = `{
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"type": "string"},
    "name": {"type": ["string", "null"]},
    "documentNumber": {"type": ["string", "null"]},
    "dob": {"type": ["string", "null"]},
    "address": {"type": ["string", "null"]},
    "gender": {"type": ["string", "null"]},
    "fatherName": {"type": ["string", "null"]},
    "motherName": {"type": ["string", "null"]},
    "nationality": {"type": ["string", "null"]},
    "issueDate": {"type": ["string", "null"]},
    "expiryDate": {"type": ["string", "null"]},
    "feedback": {"type": ["string", "null"]},
    "tip": {"type": ["string", "null"]}
  }
}`

const livenessJSONSchema = `{
  "type": "object",
  "required": ["pinVisible", "faceMatchScore"],
  "properties": {
    "pinVisible": {"type": ["boolean", "string"]},
    "faceMatchScore": {"type": "number", "minimum": 0, "maximum": 100},
    "feedback": {"type": ["string", "null"]}
  }
}`

var (
	documentSchema = mustCompile("document.json", documentJSONSchema)
	livenessSchema = mustCompile("liveness.json", livenessJSONSchema)
)

func mustCompile(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

func validateAgainst(schema *jsonschema.Schema, data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// flexBool accepts true/false or their string spellings ("true", "yes", "visible").
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected boolean or string, got %s", string(data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "visible", "confirmed":
		*b = true
		return nil
	case "no", "n", "not visible", "":
		*b = false
		return nil
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("unrecognized boolean %q", s)
	}
	*b = flexBool(parsed)
	return nil
}
