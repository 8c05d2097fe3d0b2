package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

// fieldKinds maps backend type tags onto the closed set of field kinds.
// Template files authored for the CAP protocols use the long tags.
var fieldKinds = map[string]domain.FieldKind{
	"text":          domain.FieldKindText,
	"free_text":     domain.FieldKindText,
	"select":        domain.FieldKindSelect,
	"single_select": domain.FieldKindSelect,
}

func convertSchema(requestedID string, payload schemaPayload) (domain.TemplateSchema, error) {
	schema := domain.TemplateSchema{
		ID:    payload.TemplateID,
		Name:  payload.Organ,
		Organ: payload.Organ,
	}
	if schema.ID == "" {
		schema.ID = requestedID
	}
	if schema.Name == "" {
		schema.Name = schema.ID
	}

	seen := make(map[string]struct{})
	for si, section := range payload.Sections {
		name := section.Name
		if name == "" {
			name = section.SectionName
		}
		out := domain.Section{Name: name, Fields: make([]domain.FieldSpec, 0, len(section.Fields))}

		for fi, field := range section.Fields {
			if strings.TrimSpace(field.FieldID) == "" {
				return domain.TemplateSchema{}, fmt.Errorf("%w: section %d field %d has no field_id", domain.ErrSchema, si, fi)
			}
			if _, dup := seen[field.FieldID]; dup {
				return domain.TemplateSchema{}, fmt.Errorf("%w: duplicate field_id %q", domain.ErrSchema, field.FieldID)
			}
			seen[field.FieldID] = struct{}{}

			tag := strings.ToLower(strings.TrimSpace(field.Type))
			if tag == "" {
				// Untyped fields are free text.
				tag = "free_text"
			}
			kind, ok := fieldKinds[tag]
			if !ok {
				return domain.TemplateSchema{}, fmt.Errorf("%w: field %q has unsupported type %q", domain.ErrSchema, field.FieldID, field.Type)
			}

			spec := domain.FieldSpec{ID: field.FieldID, Label: field.Label, Kind: kind}
			if spec.Label == "" {
				spec.Label = field.FieldID
			}
			if kind == domain.FieldKindSelect {
				spec.Options = make([]domain.Option, 0, len(field.Options))
				for _, opt := range field.Options {
					label := opt.Label
					if label == "" {
						label = opt.Value
					}
					spec.Options = append(spec.Options, domain.Option{Value: opt.Value, Label: label})
				}
			}
			out.Fields = append(out.Fields, spec)
		}
		schema.Sections = append(schema.Sections, out)
	}
	return schema, nil
}

// normalizeExtracted flattens extracted values to strings. A null value means
// the field was not extracted and is dropped.
func normalizeExtracted(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := raw[key].(type) {
		case nil:
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("extracted field %q has a non-string list item", key)
				}
				parts = append(parts, s)
			}
			out[key] = strings.Join(parts, ", ")
		default:
			return nil, fmt.Errorf("extracted field %q has unsupported value %T", key, v)
		}
	}
	return out, nil
}
