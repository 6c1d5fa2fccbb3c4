package endpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Parameter locations recognised by the extractor.
const (
	LocationPath   = "path"
	LocationQuery  = "query"
	LocationBody   = "body"
	LocationHeader = "header"
)

const DefaultStatusCode = 200

// Parameter is a single argument of a route handler.
type Parameter struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Type     string  `json:"type"`
	Required bool    `json:"required"`
	Default  *string `json:"default,omitempty"`
}

// Signature describes one discovered route. It is produced once per route per
// analysis run and treated as immutable afterwards.
type Signature struct {
	Method        string      `json:"method"`
	Path          string      `json:"path"`
	Function      string      `json:"function"`
	Summary       string      `json:"summary,omitempty"`
	Description   string      `json:"description,omitempty"`
	Parameters    []Parameter `json:"parameters"`
	RequestModel  string      `json:"request_model,omitempty"`
	ResponseModel string      `json:"response_model,omitempty"`
	Tags          []string    `json:"tags"`
	StatusCode    int         `json:"status_code"`
	File          string      `json:"file,omitempty"`
	Line          int         `json:"line,omitempty"`
	EndLine       int         `json:"end_line,omitempty"`
}

// Key is the document-wide identity of the route.
func (s Signature) Key() string {
	return Key(s.Method, s.Path)
}

func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// Docstring reassembles the handler docstring from its summary and description.
func (s Signature) Docstring() string {
	switch {
	case s.Summary == "":
		return s.Description
	case s.Description == "":
		return s.Summary
	default:
		return s.Summary + "\n" + s.Description
	}
}

// hashInput holds the fields that change what the documentation says.
// Source location and handler name are deliberately absent.
type hashInput struct {
	Method        string      `json:"method"`
	Path          string      `json:"path"`
	Parameters    []Parameter `json:"parameters"`
	RequestModel  string      `json:"request_model"`
	ResponseModel string      `json:"response_model"`
	Summary       string      `json:"summary"`
	Description   string      `json:"description"`
	Tags          []string    `json:"tags"`
	StatusCode    int         `json:"status_code"`
}

// ContentHash digests the semantic fields of the signature. It never looks at
// generated text.
func (s Signature) ContentHash() string {
	tags := append([]string(nil), s.Tags...)
	sort.Strings(tags)
	params := s.Parameters
	if params == nil {
		params = []Parameter{}
	}
	if tags == nil {
		tags = []string{}
	}
	status := s.StatusCode
	if status == 0 {
		status = DefaultStatusCode
	}

	in := hashInput{
		Method:        strings.ToUpper(strings.TrimSpace(s.Method)),
		Path:          strings.TrimSpace(s.Path),
		Parameters:    params,
		RequestModel:  s.RequestModel,
		ResponseModel: s.ResponseModel,
		Summary:       strings.TrimSpace(s.Summary),
		Description:   strings.TrimSpace(s.Description),
		Tags:          tags,
		StatusCode:    status,
	}
	// Marshal of plain structs and slices cannot fail.
	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Normalize fills defaults the extractor may leave empty.
func (s *Signature) Normalize() {
	s.Method = strings.ToUpper(strings.TrimSpace(s.Method))
	s.Path = strings.TrimSpace(s.Path)
	if s.StatusCode == 0 {
		s.StatusCode = DefaultStatusCode
	}
	if s.Parameters == nil {
		s.Parameters = []Parameter{}
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
}
