// Package schemas validates recovered model responses against the JSON
// Schemas their question types promise.
package schemas

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// Schema files by question type.
const (
	FileReputation        = "reputation.schema.json"
	FileVisibility        = "visibility.schema.json"
	FileCompetitive       = "competitive.schema.json"
	FileCategoryDetection = "category_detection.schema.json"
)

var filesByType = map[string]string{
	"reputation":         FileReputation,
	"visibility":         FileVisibility,
	"competitive":        FileCompetitive,
	"category-detection": FileCategoryDetection,
}

// cache stores compiled schemas to avoid re-parsing per validation
var (
	cache   = make(map[string]*gojsonschema.Schema)
	cacheMu sync.Mutex
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or compiling the schema itself
type SchemaLoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.File, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.File, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateResponse validates a recovered response document against the
// schema for its question type. Unknown question types are an error.
func ValidateResponse(questionType string, document map[string]any) error {
	file, ok := filesByType[questionType]
	if !ok {
		return fmt.Errorf("no schema registered for question type %q", questionType)
	}

	schema, err := loadSchema(file)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return &SchemaLoadError{File: file, Message: "document could not be validated", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{File: "(string schema)", Message: "schema validation failed during load", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

// loadSchema compiles and caches one embedded schema file.
func loadSchema(file string) (*gojsonschema.Schema, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if schema, exists := cache[file]; exists {
		return schema, nil
	}

	data, err := schemaFiles.ReadFile(file)
	if err != nil {
		return nil, &SchemaLoadError{File: file, Message: "schema file not embedded", Cause: err}
	}

	// Embedded schemas must at minimum be well-formed JSON.
	if !json.Valid(data) {
		return nil, &SchemaLoadError{File: file, Message: "schema is not valid JSON"}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{File: file, Message: "schema failed to compile", Cause: err}
	}

	cache[file] = schema
	return schema, nil
}
