package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"

	"docagent/internal/endpoint"
)

// SourceFile is one parsed file handed to a LanguageExtractor.
type SourceFile struct {
	// Path is the project-relative, slash-separated path recorded on routes.
	Path string
	Code []byte
	Root *sitter.Node
	// RouterPrefixes maps router variable names to the prefix they were
	// constructed with in this file.
	RouterPrefixes map[string]string
}

// LanguageExtractor defines what each framework extractor must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	GetQuery() string
	// ScanFile collects file-level facts before routes are extracted.
	ScanFile(file *SourceFile)
	ExtractRoutes(captureName string, node *sitter.Node, file *SourceFile) []endpoint.Signature
}
