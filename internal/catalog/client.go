// Package catalog pages through a remote mod-catalog API to resolve
// mod files to concrete download URLs.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultPageSize = 50

// File is one downloadable file attached to a catalog entry.
type File struct {
	ID   int64  `json:"id"`
	Name string `json:"fileName"`
}

type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	pageSize int
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		pageSize: defaultPageSize,
	}
}

type filesPage struct {
	Data       []File `json:"data"`
	Pagination struct {
		Index       int `json:"index"`
		PageSize    int `json:"pageSize"`
		ResultCount int `json:"resultCount"`
		TotalCount  int `json:"totalCount"`
	} `json:"pagination"`
}

// ListFiles returns every file listing for the given catalog id,
// following pagination until the reported total is reached.
func (c *Client) ListFiles(ctx context.Context, modID int64) ([]File, error) {
	var all []File
	index := 0
	for {
		var page filesPage
		endpoint := fmt.Sprintf("%s/v1/mods/%d/files?index=%d&pageSize=%d",
			c.baseURL, modID, index, c.pageSize)
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("list files for mod %d: %w", modID, err)
		}
		all = append(all, page.Data...)
		index += len(page.Data)
		if len(page.Data) == 0 || index >= page.Pagination.TotalCount {
			return all, nil
		}
	}
}

// ResolveFile returns the download URL for a specific file of a catalog
// entry, or for its latest file when fileID is zero.
func (c *Client) ResolveFile(ctx context.Context, modID, fileID int64) (string, error) {
	if fileID == 0 {
		files, err := c.ListFiles(ctx, modID)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			return "", fmt.Errorf("mod %d has no files", modID)
		}
		for _, f := range files {
			if f.ID > fileID {
				fileID = f.ID
			}
		}
	}

	var resp struct {
		Data string `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/v1/mods/%d/files/%d/download-url", c.baseURL, modID, fileID)
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", fmt.Errorf("resolve file %d of mod %d: %w", fileID, modID, err)
	}
	if _, err := url.Parse(resp.Data); err != nil || resp.Data == "" {
		return "", fmt.Errorf("resolve file %d of mod %d: bad download url %q", fileID, modID, resp.Data)
	}
	return resp.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
