// Package entitymodel describes the REST resources as an OpenAPI document
// derived from the domain entity types, so clients can fetch the contract
// from a running backend.
package entitymodel

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"jobsdashboard/pkg/domain"
)

// OpenAPIVersion is the OpenAPI revision the document targets.
const OpenAPIVersion = "3.0.3"

// APIPrefix is the path prefix under which every resource is served.
const APIPrefix = "/api/v1/"

var records = []domain.Record{
	domain.State{},
	domain.City{},
	domain.Company{},
	domain.Department{},
	domain.Skill{},
	domain.Bank{},
	domain.Shift{},
	domain.Job{},
	domain.Onboarding{},
}

var timeType = reflect.TypeOf(time.Time{})

var encoded = sync.OnceValues(func() ([]byte, error) {
	return yaml.Marshal(Document())
})

// OpenAPISpec returns the YAML document. Each call returns a fresh copy.
func OpenAPISpec() []byte {
	spec, err := encoded()
	if err != nil {
		return nil
	}
	return append([]byte(nil), spec...)
}

// NewOpenAPIHandler serves the YAML document.
func NewOpenAPIHandler() http.Handler {
	spec := OpenAPISpec()
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec)
	})
}

// Document builds the OpenAPI document as plain maps.
func Document() map[string]any {
	paths := map[string]any{}
	schemas := map[string]any{
		"Error": map[string]any{
			"type":     "object",
			"required": []string{"error"},
			"properties": map[string]any{
				"error":      map[string]any{"type": "string"},
				"violations": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/Violation"}},
			},
		},
		"Violation": schemaOf(reflect.TypeOf(domain.Violation{})),
	}
	for _, rec := range records {
		t := reflect.TypeOf(rec)
		name := t.Name()
		schemas[name] = schemaOf(t)
		resource := rec.Kind().Resource()
		ref := map[string]any{"$ref": "#/components/schemas/" + name}
		collection, item := operations(name, ref)
		paths[APIPrefix+resource] = collection
		paths[APIPrefix+resource+"/{id}"] = item
	}
	return map[string]any{
		"openapi": OpenAPIVersion,
		"info": map[string]any{
			"title":   "jobsdashboard",
			"version": "1",
		},
		"paths":      paths,
		"components": map[string]any{"schemas": schemas},
	}
}

func operations(name string, ref map[string]any) (collection, item map[string]any) {
	body := map[string]any{
		"required": true,
		"content":  jsonContent(ref),
	}
	one := func(desc string) map[string]any {
		return map[string]any{"description": desc, "content": jsonContent(ref)}
	}
	idParam := []any{map[string]any{
		"name":     "id",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string"},
	}}
	collection = map[string]any{
		"get": map[string]any{
			"summary": "List " + name + " records",
			"responses": map[string]any{
				"200": map[string]any{
					"description": "All records",
					"content":     jsonContent(map[string]any{"type": "array", "items": ref}),
				},
			},
		},
		"post": map[string]any{
			"summary":     "Create a " + name,
			"requestBody": body,
			"responses": withErrors(map[string]any{
				"201": one("Created record with a server-assigned _id"),
			}, "400", "422"),
		},
	}
	item = map[string]any{
		"parameters": idParam,
		"get": map[string]any{
			"summary":   "Get a " + name,
			"responses": withErrors(map[string]any{"200": one("The record")}, "404"),
		},
		"put": map[string]any{
			"summary":     "Replace a " + name,
			"requestBody": body,
			"responses":   withErrors(map[string]any{"200": one("Updated record")}, "400", "404", "422"),
		},
		"delete": map[string]any{
			"summary":   "Delete a " + name,
			"responses": withErrors(map[string]any{"204": map[string]any{"description": "Deleted"}}, "404", "422"),
		},
	}
	return collection, item
}

var errorDescriptions = map[string]string{
	"400": "Malformed JSON body",
	"404": "Unknown record",
	"422": "Blocked by a rule violation",
}

func withErrors(responses map[string]any, codes ...string) map[string]any {
	for _, code := range codes {
		responses[code] = map[string]any{
			"description": errorDescriptions[code],
			"content":     jsonContent(map[string]any{"$ref": "#/components/schemas/Error"}),
		}
	}
	return responses
}

func jsonContent(schema map[string]any) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": schema}}
}

// schemaOf maps a struct's JSON-tagged fields to an object schema. Embedded
// structs are flattened; fields of domain.Base are read-only.
func schemaOf(t reflect.Type) map[string]any {
	props := map[string]any{}
	var required []string
	collect(t, props, &required, false)
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func collect(t reflect.Type, props map[string]any, required *[]string, readOnly bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collect(f.Type, props, required, f.Type == reflect.TypeOf(domain.Base{}))
			continue
		}
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		prop := typeSchema(f.Type)
		if readOnly {
			prop["readOnly"] = true
		} else if !strings.Contains(opts, "omitempty") {
			*required = append(*required, name)
		}
		props[name] = prop
	}
}

func typeSchema(t reflect.Type) map[string]any {
	switch {
	case t == timeType:
		return map[string]any{"type": "string", "format": "date-time"}
	case t.Kind() == reflect.String:
		return map[string]any{"type": "string"}
	case t.Kind() == reflect.Bool:
		return map[string]any{"type": "boolean"}
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Uint64:
		return map[string]any{"type": "integer"}
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		return map[string]any{"type": "number"}
	case t.Kind() == reflect.Slice:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case t.Kind() == reflect.Map:
		return map[string]any{"type": "object", "additionalProperties": typeSchema(t.Elem())}
	default:
		return map[string]any{"type": "object"}
	}
}
