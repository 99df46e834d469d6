// Package publisher renders validated snapshots and writes them to disk.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"top_criteria_generator/schema"
)

// Artifact file names written by Publish.
const (
	SnapshotJSON     = "snapshot.json"
	SnapshotMarkdown = "snapshot.md"
	SnapshotHTML     = "snapshot.html"
)

// Artifacts lists the files written by one Publish call.
type Artifacts struct {
	JSON     string
	Markdown string
	HTML     string
}

// Publisher writes rendered snapshots. Only snapshots that passed validation
// should reach it; Publish re-checks with its registry.
type Publisher struct {
	brands   Brands
	registry *schema.Registry
	opts     RenderOptions
	logger   *zap.Logger
}

// New creates a Publisher. A nil registry uses the default one; a nil logger
// discards output.
func New(brands Brands, registry *schema.Registry, opts RenderOptions, logger *zap.Logger) *Publisher {
	if registry == nil {
		registry = schema.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{brands: brands, registry: registry, opts: opts, logger: logger}
}

// Publish writes snap as JSON, Markdown and HTML into dir, creating it if
// needed. Existing artifacts are replaced.
func (p *Publisher) Publish(ctx context.Context, snap *schema.Snapshot, dir string) (Artifacts, error) {
	if snap == nil {
		return Artifacts{}, errors.New("snapshot is required")
	}
	if dir == "" {
		return Artifacts{}, errors.New("output directory is required")
	}
	if err := p.registry.ValidateSnapshot(snap); err != nil {
		return Artifacts{}, fmt.Errorf("refusing to publish invalid snapshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, err
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Artifacts{}, err
	}
	markdown := RenderMarkdown(snap, p.brands)
	html, err := mdToHTML(markdown)
	if err != nil {
		return Artifacts{}, err
	}
	if p.opts.Embed {
		html = normalizeForEmbed(html)
	}

	out := Artifacts{
		JSON:     filepath.Join(dir, SnapshotJSON),
		Markdown: filepath.Join(dir, SnapshotMarkdown),
		HTML:     filepath.Join(dir, SnapshotHTML),
	}
	files := []struct {
		path string
		data []byte
	}{
		{out.JSON, append(raw, '\n')},
		{out.Markdown, []byte(markdown)},
		{out.HTML, []byte(html)},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Artifacts{}, err
		}
		if err := writeAtomic(f.path, f.data); err != nil {
			return Artifacts{}, err
		}
		p.logger.Debug("artifact written", zap.String("path", f.path), zap.Int("bytes", len(f.data)))
	}
	p.logger.Info("snapshot published", zap.String("dir", dir), zap.String("updated_at", snap.UpdatedAt))
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
