package extraction

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

var (
	ErrNoSchema     = errors.New("no template schema loaded")
	ErrUnknownField = errors.New("unknown template field")
)

// Editor holds the extracted field values of the session and exposes them as
// a form defined by the template schema.
type Editor struct {
	mu     sync.Mutex
	schema *domain.TemplateSchema
	data   map[string]string
}

func NewEditor() *Editor {
	return &Editor{}
}

// Load seeds the editor. Keys the schema does not define are dropped and
// returned.
func (e *Editor) Load(schema domain.TemplateSchema, data map[string]string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	known := make(map[string]struct{})
	for _, id := range schema.FieldIDs() {
		known[id] = struct{}{}
	}

	seeded := make(map[string]string, len(data))
	var dropped []string
	for key, value := range data {
		if _, ok := known[key]; !ok {
			dropped = append(dropped, key)
			continue
		}
		seeded[key] = value
	}
	sort.Strings(dropped)
	if len(dropped) > 0 {
		log.Debug().Strs("fields", dropped).Str("templateId", schema.ID).Msg("dropped extracted values outside the template")
	}

	e.schema = &schema
	e.data = seeded
	return dropped
}

// SetField overwrites one value. Select values are not checked against the
// option list.
func (e *Editor) SetField(id string, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.schema == nil {
		return ErrNoSchema
	}
	if _, ok := e.schema.Field(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	e.data[id] = value
	return nil
}

// Field returns the stored value and whether one is present.
func (e *Editor) Field(id string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	value, ok := e.data[id]
	return value, ok
}

// Data returns a copy of the values to submit. Absent fields stay absent.
func (e *Editor) Data() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(e.data))
	for key, value := range e.data {
		out[key] = value
	}
	return out
}

// Schema returns the loaded template schema.
func (e *Editor) Schema() (domain.TemplateSchema, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.schema == nil {
		return domain.TemplateSchema{}, false
	}
	return *e.schema, true
}

// Views renders every schema field in order. Select fields list an empty
// "not determined" choice ahead of the schema options.
func (e *Editor) Views() []domain.FieldView {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.schema == nil {
		return nil
	}

	var views []domain.FieldView
	for _, section := range e.schema.Sections {
		for _, field := range section.Fields {
			value := e.data[field.ID]
			view := domain.FieldView{
				Section:       section.Name,
				ID:            field.ID,
				Label:         field.Label,
				Kind:          field.Kind,
				Value:         value,
				NotDetermined: value == "",
			}
			if field.Kind == domain.FieldKindSelect {
				view.Options = make([]domain.Option, 0, len(field.Options)+1)
				view.Options = append(view.Options, domain.Option{Value: "", Label: domain.NotDeterminedLabel})
				view.Options = append(view.Options, field.Options...)
			}
			views = append(views, view)
		}
	}
	return views
}

func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.schema = nil
	e.data = nil
}
