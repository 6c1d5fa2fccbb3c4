package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docagent/internal/endpoint"
	"docagent/internal/extractor"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func routeFile(name string) string {
	return `from fastapi import FastAPI
app = FastAPI()

@app.get("/` + name + `")
def handler():
    pass
`
}

func newCrawler(t *testing.T) *Crawler {
	t.Helper()
	ext, err := extractor.NewExtractor("fastapi", nil)
	require.NoError(t, err)
	return NewCrawler(ext, nil)
}

func TestCrawler_ScanProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/main.py", routeFile("main"))
	writeFile(t, root, "app/environment.py", routeFile("environment"))
	writeFile(t, root, "app/api/users.py", routeFile("users"))
	writeFile(t, root, "venv/lib/site.py", routeFile("venv"))
	writeFile(t, root, ".venv/lib/site.py", routeFile("dotvenv"))
	writeFile(t, root, "tests/routes.py", routeFile("tests"))
	writeFile(t, root, "app/test_main.py", routeFile("test"))
	writeFile(t, root, "app/__pycache__/main.py", routeFile("cache"))
	writeFile(t, root, "migrations/0001.py", routeFile("migration"))
	writeFile(t, root, "README.md", "# not python")

	c := newCrawler(t)
	var keys []string
	var files []string
	err := c.ScanProject(context.Background(), root, func(sig endpoint.Signature) {
		keys = append(keys, sig.Key())
		files = append(files, sig.File)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /users", "GET /environment", "GET /main"}, keys)
	assert.Equal(t, []string{"app/api/users.py", "app/environment.py", "app/main.py"}, files)
}

func TestCrawler_Analyze(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", routeFile("a"))
	writeFile(t, root, "b.py", "def broken(:\n")

	sigs, err := newCrawler(t).Analyze(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "GET /a", sigs[0].Key())
}

func TestCrawler_ScanProjectCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", routeFile("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newCrawler(t).Analyze(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawler_DetectFastAPI(t *testing.T) {
	t.Run("fastapi import", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "util.py", "import os\n")
		writeFile(t, root, "pkg/app.py", "  from fastapi import APIRouter\n")

		ok, err := newCrawler(t).DetectFastAPI(root)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no fastapi", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "manage.py", "import django\n")
		writeFile(t, root, "venv/fastapi/__init__.py", "import fastapi\n")

		ok, err := newCrawler(t).DetectFastAPI(root)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("only samples the first files", func(t *testing.T) {
		root := t.TempDir()
		for i := 0; i < detectSampleSize; i++ {
			writeFile(t, root, filepath.Join("a", "m"+string(rune('a'+i))+".py"), "x = 1\n")
		}
		writeFile(t, root, "z.py", "import fastapi\n")

		ok, err := newCrawler(t).DetectFastAPI(root)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
