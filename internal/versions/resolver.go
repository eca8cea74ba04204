// Package versions resolves symbolic or explicit Minecraft versions to
// concrete server artifact downloads via the launcher version manifest.
package versions

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest_v2.json"

// Version is a resolved server artifact.
type Version struct {
	ID   string
	URL  string
	SHA1 string
}

type Resolver struct {
	client      *http.Client
	manifestURL string
}

func NewResolver() *Resolver {
	return &Resolver{
		client:      &http.Client{Timeout: 30 * time.Second},
		manifestURL: defaultManifestURL,
	}
}

type manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"versions"`
}

type versionMeta struct {
	Downloads struct {
		Server struct {
			URL  string `json:"url"`
			SHA1 string `json:"sha1"`
		} `json:"server"`
	} `json:"downloads"`
}

// Resolve maps "latest", "latest-snapshot", or an explicit id to a
// concrete version with its server jar URL and checksum.
func (r *Resolver) Resolve(ctx context.Context, version string) (*Version, error) {
	var m manifest
	if err := r.getJSON(ctx, r.manifestURL, &m); err != nil {
		return nil, fmt.Errorf("fetch version manifest: %w", err)
	}

	switch version {
	case "", "latest":
		version = m.Latest.Release
	case "latest-snapshot":
		version = m.Latest.Snapshot
	}

	for _, v := range m.Versions {
		if v.ID != version {
			continue
		}
		var meta versionMeta
		if err := r.getJSON(ctx, v.URL, &meta); err != nil {
			return nil, fmt.Errorf("fetch version %s: %w", version, err)
		}
		if meta.Downloads.Server.URL == "" {
			return nil, fmt.Errorf("version %s has no server artifact", version)
		}
		return &Version{
			ID:   v.ID,
			URL:  meta.Downloads.Server.URL,
			SHA1: meta.Downloads.Server.SHA1,
		}, nil
	}
	return nil, fmt.Errorf("unknown version %q", version)
}

// Download fetches the server artifact to dest, verifying the checksum
// when one is available.
func (r *Resolver) Download(ctx context.Context, v *Version, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", v.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", v.ID, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		os.Remove(dest)
		return fmt.Errorf("download %s: %w", v.ID, err)
	}
	if v.SHA1 != "" && hex.EncodeToString(h.Sum(nil)) != v.SHA1 {
		os.Remove(dest)
		return fmt.Errorf("download %s: checksum mismatch", v.ID)
	}
	return nil
}

func (r *Resolver) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
