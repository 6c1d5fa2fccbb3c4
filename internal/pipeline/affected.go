package pipeline

import (
	"strings"

	"docagent/internal/endpoint"
	"docagent/internal/git"
)

// AffectedEndpoints returns the signatures whose handler lines were touched by
// the diff. Diff paths are relative to the repository root while signature
// files are relative to the scanned project, so a path matches when it equals
// the signature file or ends with it.
func AffectedEndpoints(sigs []endpoint.Signature, changed []git.ChangedFile) []endpoint.Signature {
	var out []endpoint.Signature
	for _, sig := range sigs {
		for _, cf := range changed {
			if !sameFile(cf.Path, sig.File) {
				continue
			}
			if cf.Touches(sig.Line, sig.EndLine) {
				out = append(out, sig)
				break
			}
		}
	}
	return out
}

func sameFile(diffPath, sigFile string) bool {
	if sigFile == "" {
		return false
	}
	return diffPath == sigFile || strings.HasSuffix(diffPath, "/"+sigFile)
}
