package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCatalog(t *testing.T, files []File) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/mods/10/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		index, _ := strconv.Atoi(r.URL.Query().Get("index"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		end := index + pageSize
		if end > len(files) {
			end = len(files)
		}
		var page filesPage
		if index < len(files) {
			page.Data = files[index:end]
		}
		page.Pagination.Index = index
		page.Pagination.PageSize = pageSize
		page.Pagination.ResultCount = len(page.Data)
		page.Pagination.TotalCount = len(files)
		json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/v1/mods/10/files/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"data": "https://cdn.example.com" + r.URL.Path,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "key1")
}

func manyFiles(n int) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = File{ID: int64(100 + i), Name: "mod-" + strconv.Itoa(i) + ".jar"}
	}
	return files
}

func TestListFilesFollowsPagination(t *testing.T) {
	want := manyFiles(120) // three pages at the default page size
	_, c := startCatalog(t, want)

	got, err := c.ListFiles(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestListFilesEmpty(t *testing.T) {
	_, c := startCatalog(t, nil)

	got, err := c.ListFiles(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveFileExplicit(t *testing.T) {
	_, c := startCatalog(t, manyFiles(3))

	url, err := c.ResolveFile(context.Background(), 10, 101)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v1/mods/10/files/101/download-url", url)
}

func TestResolveFileLatest(t *testing.T) {
	_, c := startCatalog(t, manyFiles(3)) // highest id is 102

	url, err := c.ResolveFile(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v1/mods/10/files/102/download-url", url)
}

func TestResolveFileNoFiles(t *testing.T) {
	_, c := startCatalog(t, nil)

	_, err := c.ResolveFile(context.Background(), 10, 0)
	assert.ErrorContains(t, err, "has no files")
}

func TestRejectedAPIKey(t *testing.T) {
	srv, _ := startCatalog(t, manyFiles(1))
	c := NewClient(srv.URL, "wrong")

	_, err := c.ListFiles(context.Background(), 10)
	assert.Error(t, err)
}
