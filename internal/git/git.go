package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCommitMessage is used when no message is configured.
const DefaultCommitMessage = "docs: Update API documentation [doc-agent]"

// ChangedFile lists the new-side line numbers touched in one file.
type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// Touches reports whether any changed line falls within [start, end].
func (c ChangedFile) Touches(start, end int) bool {
	if end < start {
		end = start
	}
	for _, l := range c.ChangedLines {
		if l >= start && l <= end {
			return true
		}
	}
	return false
}

// Repo runs git commands inside Dir.
type Repo struct {
	Dir string
	// FallbackBranch is returned by DefaultBranch when origin has no HEAD.
	FallbackBranch string
}

func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir, FallbackBranch: "main"}
}

func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("git %s failed: %w", args[0], err)
		}
		return nil, fmt.Errorf("git %s failed: %w: %s", args[0], err, msg)
	}
	return out, nil
}

// IsRepository reports whether Dir is inside a git work tree.
func (r *Repo) IsRepository(ctx context.Context) bool {
	_, err := r.run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DefaultBranch resolves origin's HEAD, falling back to FallbackBranch.
func (r *Repo) DefaultBranch(ctx context.Context) string {
	out, err := r.run(ctx, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil {
		if r.FallbackBranch == "" {
			return "main"
		}
		return r.FallbackBranch
	}
	ref := strings.TrimSpace(string(out))
	return ref[strings.LastIndex(ref, "/")+1:]
}

func (r *Repo) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// ChangedFiles lists files changed on HEAD since it diverged from base,
// keeping only names with the given extension. An empty base means the
// default branch.
func (r *Repo) ChangedFiles(ctx context.Context, base, ext string) ([]string, error) {
	if base == "" {
		base = r.DefaultBranch(ctx)
	}
	out, err := r.run(ctx, "diff", "--name-only", base+"...HEAD")
	if err != nil {
		return nil, err
	}
	return parseNameOnly(out, ext), nil
}

// DiffHunks runs git diff -U0 against base and returns changed line numbers
// per file. Uncommitted edits in the work tree are included.
func (r *Repo) DiffHunks(ctx context.Context, base string) ([]ChangedFile, error) {
	if base == "" {
		base = r.DefaultBranch(ctx)
	}
	out, err := r.run(ctx, "diff", "-U0", base)
	if err != nil {
		return nil, err
	}
	return parseDiff(out)
}

// Commit stages paths and commits them with message.
func (r *Repo) Commit(ctx context.Context, paths []string, message string) error {
	if len(paths) == 0 {
		return fmt.Errorf("nothing to commit")
	}
	if message == "" {
		message = DefaultCommitMessage
	}
	if _, err := r.run(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return err
	}
	// The pathspec keeps unrelated staged changes out of the commit.
	_, err := r.run(ctx, append([]string{"commit", "-m", message, "--"}, paths...)...)
	return err
}

func parseNameOnly(output []byte, ext string) []string {
	files := []string{}
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ext != "" && !strings.HasSuffix(line, ext) {
			continue
		}
		files = append(files, line)
	}
	return files
}

// Regex for chunk header: @@ -oldStart,oldLen +newStart,newLen @@
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				// b/ path is the new version
				path := strings.TrimPrefix(parts[3], "b/")
				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				currentFile = &ChangedFile{Path: path, ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil || !strings.HasPrefix(line, "@@") {
			continue
		}
		matches := chunkHeader.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}
		startLine, _ := strconv.Atoi(matches[1])
		count := 1
		if matches[2] != "" {
			count, _ = strconv.Atoi(matches[2])
		}
		// A zero count is a pure deletion; mark the line it happened after.
		if count == 0 {
			if startLine > 0 {
				currentFile.ChangedLines = append(currentFile.ChangedLines, startLine)
			}
			continue
		}
		for i := 0; i < count; i++ {
			currentFile.ChangedLines = append(currentFile.ChangedLines, startLine+i)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}
	return changes, nil
}
