package crawler

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"docagent/internal/endpoint"
	"docagent/internal/extractor"
)

// detectSampleSize is how many Python files DetectFastAPI inspects.
const detectSampleSize = 20

var fastapiImport = regexp.MustCompile(`^\s*(from|import)\s+fastapi\b`)

// Crawler scans a project directory for Python route handlers.
type Crawler struct {
	extractor *extractor.Extractor
	ignored   map[string]bool
	logger    *zap.Logger
}

// NewCrawler creates a new crawler instance.
func NewCrawler(ext *extractor.Extractor, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		extractor: ext,
		ignored: map[string]bool{
			"__pycache__":  true,
			"venv":         true,
			"env":          true,
			".venv":        true,
			".git":         true,
			"node_modules": true,
			"tests":        true,
			"migrations":   true,
		},
		logger: logger,
	}
}

// ScanProject walks root and streams every discovered route to onRoute.
// Files that cannot be read or parsed are logged and skipped.
func (c *Crawler) ScanProject(ctx context.Context, root string, onRoute func(endpoint.Signature)) error {
	return c.walkPython(root, func(path, rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sigs, err := c.extractor.ExtractFromFile(ctx, path, rel)
		if err != nil {
			c.logger.Warn("skipping file", zap.String("file", rel), zap.Error(err))
			return nil
		}
		for _, sig := range sigs {
			onRoute(sig)
		}
		return nil
	})
}

// Analyze collects all routes under root in walk order.
func (c *Crawler) Analyze(ctx context.Context, root string) ([]endpoint.Signature, error) {
	var sigs []endpoint.Signature
	err := c.ScanProject(ctx, root, func(sig endpoint.Signature) {
		sigs = append(sigs, sig)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("analysis complete", zap.String("root", root), zap.Int("endpoints", len(sigs)))
	return sigs, nil
}

// DetectFastAPI reports whether any of the first sampled Python files imports
// fastapi.
func (c *Crawler) DetectFastAPI(root string) (bool, error) {
	sampled := 0
	found := false
	err := c.walkPython(root, func(path, rel string) error {
		if sampled >= detectSampleSize {
			return filepath.SkipAll
		}
		sampled++
		ok, err := importsFastAPI(path)
		if err != nil {
			c.logger.Debug("cannot read file", zap.String("file", rel), zap.Error(err))
			return nil
		}
		if ok {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found, err
}

func (c *Crawler) walkPython(root string, visit func(path, rel string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && c.ignored[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, ".py") || strings.HasPrefix(name, "test_") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		return visit(path, filepath.ToSlash(rel))
	})
}

func importsFastAPI(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if fastapiImport.MatchString(scanner.Text()) {
			return true, nil
		}
	}
	return false, scanner.Err()
}
