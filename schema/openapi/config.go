package openapi

import (
	"strings"

	"github.com/pypeclub/OpenPype/schema"
)

// Info is the OpenAPI info block. Title and version must not be empty in a
// generated document.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Operation is the endpoint whose request body is the settings document.
type Operation struct {
	Path    string
	Method  string
	ID      string
	Summary string
}

type generatorConfig struct {
	version   string
	info      Info
	operation Operation
	mediaType string
	// responses maps status codes to descriptions.
	responses map[string]string
	rootName  string
	registry  *schema.Registry
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		version:   "3.0.3",
		info:      Info{Title: "Settings Schema", Version: "1.0.0"},
		operation: Operation{Path: "/settings", Method: "put"},
		mediaType: "application/json",
		responses: map[string]string{"204": "Saved"},
	}
}

// operationID defaults to "<method>:<path>".
func (c generatorConfig) operationID() string {
	if c.operation.ID != "" {
		return c.operation.ID
	}
	return c.operation.Method + ":" + c.operation.Path
}

// GeneratorOption configures NewGenerator.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the document version (3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.version = version
		}
	}
}

// WithInfo replaces the non-empty fields of the info block.
func WithInfo(info Info) GeneratorOption {
	return func(cfg *generatorConfig) {
		if info.Title != "" {
			cfg.info.Title = info.Title
		}
		if info.Version != "" {
			cfg.info.Version = info.Version
		}
		if info.Description != "" {
			cfg.info.Description = info.Description
		}
	}
}

// WithOperation replaces the non-empty fields of the operation. Methods are
// lower-cased.
func WithOperation(op Operation) GeneratorOption {
	return func(cfg *generatorConfig) {
		if op.Path != "" {
			cfg.operation.Path = op.Path
		}
		if op.Method != "" {
			cfg.operation.Method = strings.ToLower(op.Method)
		}
		if op.ID != "" {
			cfg.operation.ID = op.ID
		}
		if op.Summary != "" {
			cfg.operation.Summary = op.Summary
		}
	}
}

// WithContentType sets the request body media type (application/json).
func WithContentType(mediaType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if mediaType != "" {
			cfg.mediaType = mediaType
		}
	}
}

// WithResponse adds or replaces a response.
func WithResponse(status, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status == "" {
			return
		}
		responses := make(map[string]string, len(cfg.responses)+1)
		for code, text := range cfg.responses {
			responses[code] = text
		}
		responses[status] = description
		cfg.responses = responses
	}
}

// WithRootComponent publishes the root schema as a named component and
// references it from the request body.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.rootName = name
	}
}

// WithRegistry sets the type registry used to classify schema nodes. Custom
// types registered for the settings tree must be registered here too.
func WithRegistry(registry *schema.Registry) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.registry = registry
	}
}
