// Package archive stores capture results under content-addressed keys.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"snapshot-stitcher/internal/capture"
	"snapshot-stitcher/internal/storage"
)

const timestampLayout = "20060102150405"

// Entry is where a capture ended up.
type Entry struct {
	ImageURL    string           `json:"imageURL"`
	ManifestURL string           `json:"manifestURL,omitempty"`
	Manifest    capture.Manifest `json:"manifest"`
}

// Key returns "Snapshot/capture/<first 16 hex chars of sha256(url)>/<yyyymmddhhmmss>".
func Key(url string, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(url))
	urlHash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	return fmt.Sprintf("Snapshot/capture/%s/%s", urlHash, at.UTC().Format(timestampLayout))
}

type Archiver struct {
	Storage storage.Storage
	// SkipManifest stores only the image.
	SkipManifest bool
}

// Save writes the image and its manifest concurrently.
func (a *Archiver) Save(ctx context.Context, result *capture.Result) (*Entry, error) {
	baseKey := Key(result.URL, result.CapturedAt)
	manifest := result.Manifest()

	entry := &Entry{Manifest: manifest}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		imageKey := fmt.Sprintf("%s.%s", baseKey, result.Format.Extension())
		path, err := a.Storage.Put(ctx, imageKey, result.Image)
		if err != nil {
			return fmt.Errorf("failed to store image: %w", err)
		}
		entry.ImageURL = path
		return nil
	})

	if !a.SkipManifest {
		eg.Go(func() error {
			data, err := json.Marshal(manifest)
			if err != nil {
				return fmt.Errorf("failed to marshal manifest: %w", err)
			}
			path, err := a.Storage.Put(ctx, baseKey+".json", data)
			if err != nil {
				return fmt.Errorf("failed to store manifest: %w", err)
			}
			entry.ManifestURL = path
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return entry, nil
}
