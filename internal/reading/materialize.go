package reading

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// PhotoSource resolves a photo path into its raw bytes
type PhotoSource interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// AssetPart is a photo registered with the AI service, ready for inclusion
// in a generation request
type AssetPart struct {
	Name     string // remote handle, used to release the staged copy
	URI      string
	MIMEType string
}

// Materialized is the outcome of materializing a reading's photo list.
// Parts may be empty: a reading whose photos all fail to materialize
// degrades to a text-only request.
type Materialized struct {
	Parts     []AssetPart
	TempPaths []string // local staging files, owed to the cleanup pass
	TempDir   string   // invocation-scoped staging directory
	Skipped   int
}

// MaterializePhotos turns each photo path into a registered asset part.
// Per path: download from the photo bucket, stage to a local file named
// uniquely by invocation id plus the original base name, and register the
// staged file with the AI service. Any failure on one path is logged and
// that path is skipped; the loop always continues. Staging files that were
// created before a later sub-step failed are still reported in TempPaths so
// cleanup can remove them.
func MaterializePhotos(ctx context.Context, photos PhotoSource, generator Generator, tempDir, mimeType, invocationID string, paths []string) Materialized {
	m := Materialized{}
	if len(paths) == 0 {
		return m
	}

	m.TempDir = filepath.Join(tempDir, "fortuna-"+invocationID)

	for _, path := range paths {
		part, tempPath, err := materializeOne(ctx, photos, generator, m.TempDir, mimeType, path)
		if tempPath != "" {
			m.TempPaths = append(m.TempPaths, tempPath)
		}
		if err != nil {
			log.Printf("⚠️ [MATERIALIZE] Skipping photo %s: %v", path, err)
			m.Skipped++
			continue
		}
		m.Parts = append(m.Parts, part)
	}

	return m
}

// materializeOne handles a single photo path. The returned tempPath is
// non-empty as soon as the staging file exists, even when a later step
// failed.
func materializeOne(ctx context.Context, photos PhotoSource, generator Generator, stageDir, mimeType, path string) (AssetPart, string, error) {
	data, err := photos.Download(ctx, path)
	if err != nil {
		return AssetPart{}, "", fmt.Errorf("download failed: %w", err)
	}

	if err := os.MkdirAll(stageDir, 0o700); err != nil {
		return AssetPart{}, "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	tempPath := filepath.Join(stageDir, filepath.Base(path))
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return AssetPart{}, "", fmt.Errorf("failed to stage photo: %w", err)
	}

	part, err := generator.RegisterFile(ctx, tempPath, mimeType)
	if err != nil {
		return AssetPart{}, tempPath, fmt.Errorf("failed to register with AI service: %w", err)
	}

	return part, tempPath, nil
}
