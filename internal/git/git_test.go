package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiff(t *testing.T) {
	diff := `diff --git a/app/main.py b/app/main.py
index 3b18e51..a9c6b5e 100644
--- a/app/main.py
+++ b/app/main.py
@@ -10,0 +11,2 @@ def list_users():
+    limit = 10
+    return []
@@ -20 +22 @@ def create_user():
-    pass
+    return None
@@ -30,3 +31,0 @@
-gone
diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-old
+new
`
	files, err := parseDiff([]byte(diff))
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "app/main.py", files[0].Path)
	assert.Equal(t, []int{11, 12, 22, 31}, files[0].ChangedLines)
	assert.Equal(t, "README.md", files[1].Path)
	assert.Equal(t, []int{1}, files[1].ChangedLines)

	assert.True(t, files[0].Touches(20, 25))
	assert.False(t, files[0].Touches(13, 21))
	assert.True(t, files[0].Touches(12, 0))
}

func TestParseNameOnly(t *testing.T) {
	out := []byte("app/main.py\nREADME.md\n\napp/api/users.py\n")
	assert.Equal(t, []string{"app/main.py", "app/api/users.py"}, parseNameOnly(out, ".py"))
	assert.Len(t, parseNameOnly(out, ""), 3)
	assert.Empty(t, parseNameOnly(nil, ".py"))
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestRepo_Workflow(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	dir := t.TempDir()

	repo := NewRepo(dir)
	assert.False(t, repo.IsRepository(ctx))

	gitCmd(t, dir, "init", "-q")
	gitCmd(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	gitCmd(t, dir, "config", "user.email", "dev@example.com")
	gitCmd(t, dir, "config", "user.name", "Dev")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")

	require.True(t, repo.IsRepository(ctx))
	assert.Equal(t, "main", repo.DefaultBranch(ctx))

	app := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(app, []byte("a = 1\nb = 2\n"), 0o644))
	require.NoError(t, repo.Commit(ctx, []string{"app.py"}, "initial"))

	gitCmd(t, dir, "checkout", "-q", "-b", "feature")
	branch, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feature", branch)

	require.NoError(t, os.WriteFile(app, []byte("a = 1\nb = 3\nc = 4\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x\n"), 0o644))

	dirty, err := repo.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)

	hunks, err := repo.DiffHunks(ctx, "main")
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, "app.py", hunks[0].Path)
	assert.Equal(t, []int{2, 3}, hunks[0].ChangedLines)

	require.NoError(t, repo.Commit(ctx, []string{"app.py", "notes.txt"}, ""))
	changed, err := repo.ChangedFiles(ctx, "", ".py")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, changed)

	dirty, err = repo.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	assert.Error(t, repo.Commit(ctx, nil, ""))
}

func TestRepo_CommitLeavesUnrelatedStagedChanges(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	dir := t.TempDir()
	repo := NewRepo(dir)

	gitCmd(t, dir, "init", "-q")
	gitCmd(t, dir, "config", "user.email", "dev@example.com")
	gitCmd(t, dir, "config", "user.name", "Dev")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "API.md"), []byte("v1\n"), 0o644))
	require.NoError(t, repo.Commit(ctx, []string{"API.md"}, "initial"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "wip.py"), []byte("x = 1\n"), 0o644))
	gitCmd(t, dir, "add", "wip.py")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "API.md"), []byte("v2\n"), 0o644))

	require.NoError(t, repo.Commit(ctx, []string{"API.md"}, ""))

	staged, err := repo.run(ctx, "diff", "--cached", "--name-only")
	require.NoError(t, err)
	assert.Equal(t, "wip.py", strings.TrimSpace(string(staged)))

	committed, err := repo.run(ctx, "show", "--name-only", "--format=", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "API.md", strings.TrimSpace(string(committed)))
}
