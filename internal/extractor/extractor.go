package extractor

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"docagent/internal/endpoint"
)

// Extractor orchestrates the extraction process using a framework-specific extractor.
type Extractor struct {
	langExtractor LanguageExtractor
	framework     string
	logger        *zap.Logger
}

// NewExtractor creates a new extractor for a given web framework.
func NewExtractor(framework string, logger *zap.Logger) (*Extractor, error) {
	var langExt LanguageExtractor
	switch framework {
	case "fastapi", "":
		framework = "fastapi"
		langExt = &FastAPIExtractor{}
	default:
		return nil, fmt.Errorf("unsupported framework: %s", framework)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{langExtractor: langExt, framework: framework, logger: logger}, nil
}

// ExtractFromFile parses a single source file and returns the routes it declares.
// relPath is recorded on every signature.
func (e *Extractor) ExtractFromFile(ctx context.Context, path, relPath string) ([]endpoint.Signature, error) {
	sourceCode, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.ExtractFromSource(ctx, sourceCode, relPath)
}

// ExtractFromSource runs extraction over in-memory source.
func (e *Extractor) ExtractFromSource(ctx context.Context, sourceCode []byte, relPath string) ([]endpoint.Signature, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", relPath, err)
	}

	root := tree.RootNode()
	if root.HasError() {
		// tree-sitter recovers from syntax errors; routes outside the broken
		// region are still extracted.
		e.logger.Warn("syntax errors in source file", zap.String("file", relPath))
	}

	file := &SourceFile{Path: relPath, Code: sourceCode, Root: root}
	e.langExtractor.ScanFile(file)

	query, err := sitter.NewQuery([]byte(e.langExtractor.GetQuery()), e.langExtractor.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}

	qc := sitter.NewQueryCursor()
	qc.Exec(query, root)

	var sigs []endpoint.Signature
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			captureName := query.CaptureNameForId(c.Index)
			sigs = append(sigs, e.langExtractor.ExtractRoutes(captureName, c.Node, file)...)
		}
	}
	for i := range sigs {
		sigs[i].Normalize()
	}
	return sigs, nil
}
