// Package workflowdoc reads workflow definitions from YAML or JSON documents.
package workflowdoc

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDocument = errors.New("invalid workflow document")

//go:embed schema.json
var schema string

var schemaLoader = gojsonschema.NewStringLoader(schema)

// Document is the on-disk form of a workflow.
type Document struct {
	ID          string `yaml:"id,omitempty"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Frequency   string `yaml:"frequency,omitempty"`
	Tasks       []Task `yaml:"tasks,omitempty"`
}

type Task struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// Workflow converts the document to a workflow in the global context.
func (d Document) Workflow() *models.Workflow {
	templates := make([]models.TaskTemplate, 0, len(d.Tasks))
	for _, task := range d.Tasks {
		templates = append(templates, models.TaskTemplate{
			Title:       task.Title,
			Description: task.Description,
		})
	}

	return &models.Workflow{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Context:       models.GlobalContext(),
		Frequency:     d.Frequency,
		TaskTemplates: templates,
	}
}

// Decode reads every document of a YAML stream. JSON input is accepted as
// well. Each document is validated against the workflow schema.
func Decode(r io.Reader) ([]Document, error) {
	decoder := yaml.NewDecoder(r)

	var documents []Document

	for index := 0; ; index++ {
		var node yaml.Node

		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: document %d: %w", ErrInvalidDocument, index, err)
		}

		document, err := decodeNode(&node)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", index, err)
		}

		documents = append(documents, document)
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("%w: no documents", ErrInvalidDocument)
	}

	return documents, nil
}

func decodeNode(node *yaml.Node) (Document, error) {
	var raw map[string]any

	err := node.Decode(&raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	err = validate(raw)
	if err != nil {
		return Document{}, err
	}

	var document Document

	err = node.Decode(&document)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if document.Frequency != "" {
		_, err = models.ParseFrequency(document.Frequency)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}

	return document, nil
}

func validate(raw map[string]any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(errs, "; "))
	}

	return nil
}

// Encode writes workflows as a YAML stream.
func Encode(w io.Writer, workflows ...*models.Workflow) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	for _, workflow := range workflows {
		document := Document{
			ID:          workflow.ID,
			Title:       workflow.Title,
			Description: workflow.Description,
			Frequency:   workflow.Frequency,
		}

		for _, template := range workflow.TaskTemplates {
			document.Tasks = append(document.Tasks, Task{Title: template.Title, Description: template.Description})
		}

		err := encoder.Encode(document)
		if err != nil {
			return err
		}
	}

	return encoder.Close()
}
