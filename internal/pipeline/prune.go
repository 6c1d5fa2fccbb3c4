package pipeline

import (
	"errors"

	"docagent/internal/document"
	"docagent/internal/endpoint"
)

// ErrNoEndpoints is returned by Prune when the analysis found nothing and
// pruning would empty the document.
var ErrNoEndpoints = errors.New("no endpoints found; refusing to prune every section (use --force)")

// Prune drops sections of doc whose keys are not among sigs and returns the
// removed keys. An empty sigs is refused unless force is set.
func Prune(doc *document.Document, sigs []endpoint.Signature, force bool) ([]string, error) {
	if len(sigs) == 0 && !force {
		return nil, ErrNoEndpoints
	}
	keep := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		keep[s.Key()] = true
	}
	return doc.Prune(keep), nil
}
