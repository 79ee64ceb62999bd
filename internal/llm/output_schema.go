package llm

import (
	"fmt"
	"strings"
)

// OutputSchema describes the JSON object a stage expects back from the model.
type OutputSchema struct {
	Name   string
	Fields []SchemaField
}

// SchemaField is one key of an OutputSchema.
type SchemaField struct {
	Name        string
	Type        string // JSON shape hint, e.g. ["string"] or {"keyword": 0.0}
	Description string
	Required    bool
}

// DescribeOutput renders the schema as instructions appended to a system prompt.
func DescribeOutput(schema OutputSchema) string {
	var sb strings.Builder
	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = `"string"`
		}
		sb.WriteString(fmt.Sprintf("  %q: %s", field.Name, typeHint))
		if field.Required {
			sb.WriteString(" (required)")
		}
		if field.Description != "" {
			sb.WriteString(" // " + field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	sb.WriteString("Do not wrap the JSON in markdown and do not add commentary.")
	return sb.String()
}
