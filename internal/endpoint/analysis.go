package endpoint

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed analysis.schema.json
var analysisSchemaJSON string

const analysisSchemaURL = "analysis.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Analysis is the on-disk form of one analysis run.
type Analysis struct {
	Project     string      `json:"project,omitempty"`
	GeneratedAt string      `json:"generated_at,omitempty"`
	Endpoints   []Signature `json:"endpoints"`
}

func NewAnalysis(project string, sigs []Signature) *Analysis {
	out := make([]Signature, len(sigs))
	copy(out, sigs)
	return &Analysis{
		Project:     project,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Endpoints:   out,
	}
}

// SaveAnalysis validates and writes the analysis as indented JSON.
func SaveAnalysis(path string, a *Analysis) error {
	if a == nil {
		return fmt.Errorf("analysis is nil")
	}
	for i := range a.Endpoints {
		a.Endpoints[i].Normalize()
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if err := ValidateAnalysisJSON(b); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0644)
}

// LoadAnalysis reads an analysis file written by SaveAnalysis or by hand.
func LoadAnalysis(path string) (*Analysis, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateAnalysisJSON(b); err != nil {
		return nil, fmt.Errorf("invalid analysis file %s: %w", path, err)
	}
	var a Analysis
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	for i := range a.Endpoints {
		a.Endpoints[i].Normalize()
	}
	return &a, nil
}

// ValidateAnalysisJSON checks raw analysis JSON against the embedded schema.
func ValidateAnalysisJSON(raw []byte) error {
	schema, err := analysisSchema()
	if err != nil {
		return fmt.Errorf("failed to compile analysis schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("analysis is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("analysis schema validation failed: %w", err)
	}
	return nil
}

func analysisSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(analysisSchemaURL, strings.NewReader(analysisSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(analysisSchemaURL)
	})
	return compiledSchema, schemaErr
}
