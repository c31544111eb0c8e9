package client_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpas-dev/gpas-go/internal/client"
)

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func gunzipFile(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()
	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(content)
}

// outputServer serves /api/get_output/<guid>/<type> for a single sample.
func outputServer(t *testing.T, guid string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/get_output/")
		parts := strings.SplitN(rest, "/", 2)
		require.Len(t, parts, 2)
		if parts[0] != guid {
			http.NotFound(w, r)
			return
		}
		switch parts[1] {
		case "json":
			io.WriteString(w, `{"lineage":"B.1.1.7"}`)
		case "fasta":
			w.Write(gzipBytes(t, ">"+guid+" assembly\nACGT\n"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestDownloadRenamesOutputs(t *testing.T) {
	srv := outputServer(t, "guid123")
	defer srv.Close()

	outDir := filepath.Join(t.TempDir(), "out")
	c := newTestClient(t, srv.URL, fastRetry(3))
	err := c.Download(context.Background(), client.DownloadRequest{
		GUIDs:     []string{"guid123"},
		Names:     map[string]string{"guid123": "mysample"},
		FileTypes: []string{"json", "fasta"},
		OutDir:    outDir,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(outDir, "mysample.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"lineage":"B.1.1.7"}`, string(raw))

	// The FASTA header gains the local sample name after the identifier.
	fasta := gunzipFile(t, filepath.Join(outDir, "mysample.fasta.gz"))
	assert.Equal(t, ">guid123|mysample assembly\nACGT\n", fasta)
}

func TestDownloadWithoutNames(t *testing.T) {
	srv := outputServer(t, "guid123")
	defer srv.Close()

	outDir := t.TempDir()
	c := newTestClient(t, srv.URL, fastRetry(3))
	err := c.Download(context.Background(), client.DownloadRequest{
		GUIDs:     []string{"guid123"},
		FileTypes: []string{"fasta"},
		OutDir:    outDir,
	})
	require.NoError(t, err)

	// Saved under the remote identifier, header untouched.
	fasta := gunzipFile(t, filepath.Join(outDir, "guid123.fasta.gz"))
	assert.Equal(t, ">guid123 assembly\nACGT\n", fasta)
}

func TestDownloadSkipsUnavailableOutputs(t *testing.T) {
	srv := outputServer(t, "guid123")
	defer srv.Close()

	outDir := t.TempDir()
	c := newTestClient(t, srv.URL, fastRetry(3))
	err := c.Download(context.Background(), client.DownloadRequest{
		GUIDs:     []string{"guid123", "gone"},
		FileTypes: []string{"json"},
		OutDir:    outDir,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "guid123.json"))
	assert.NoFileExists(t, filepath.Join(outDir, "gone.json"))
}

func TestDownloadSkipsUnauthorised(t *testing.T) {
	// Unlike status queries, downloads shrug off a 401 per output.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	outDir := t.TempDir()
	c := newTestClient(t, srv.URL, fastRetry(3))
	err := c.Download(context.Background(), client.DownloadRequest{
		GUIDs:     []string{"guid123"},
		FileTypes: []string{"json"},
		OutDir:    outDir,
	})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(outDir, "guid123.json"))
}

func TestDownloadRejectsInvalidFileType(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, fastRetry(3))
	err := c.Download(context.Background(), client.DownloadRequest{
		GUIDs:     []string{"guid123"},
		FileTypes: []string{"exe"},
		OutDir:    t.TempDir(),
	})
	require.Error(t, err)
	assert.EqualError(t, err, `invalid file type "exe"`)
	assert.Zero(t, hits.Load(), "no request should be sent for an invalid type")
}

func TestDownloadKeepsFastaWhenGUIDMissingFromHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipBytes(t, ">something-else assembly\nACGT\n"))
	}))
	defer srv.Close()

	outDir := t.TempDir()
	c := newTestClient(t, srv.URL, fastRetry(3))
	err := c.Download(context.Background(), client.DownloadRequest{
		GUIDs:     []string{"guid123"},
		Names:     map[string]string{"guid123": "mysample"},
		FileTypes: []string{"fasta"},
		OutDir:    outDir,
	})
	require.NoError(t, err)

	// Rewriting fails with a warning; the download itself is kept as-is.
	fasta := gunzipFile(t, filepath.Join(outDir, "mysample.fasta.gz"))
	assert.Equal(t, ">something-else assembly\nACGT\n", fasta)
}

func TestValidFileTypes(t *testing.T) {
	for _, ft := range client.FileTypes() {
		assert.True(t, client.ValidFileType(ft), ft)
	}
	assert.False(t, client.ValidFileType("exe"))
	assert.False(t, client.ValidFileType(""))
}
