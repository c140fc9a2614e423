// Package archive streams a jar through a Transformer in bounded batches and
// writes the surviving entries, in their original order, to a new jar.
package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"unmerge/internal/distmarker"
)

// ErrInvalidOptions is returned by Run before any I/O when Options are
// incomplete.
var ErrInvalidOptions = errors.New("invalid archive options")

// Options configures one run.
type Options struct {
	Input        string
	Output       string
	Distribution distmarker.Distribution
	BatchSize    int

	// TargetClasses, when set, receives the sorted list of entries that were
	// removed or altered.
	TargetClasses string

	// Transformer defaults to a ClassTransformer for Distribution.
	Transformer Transformer

	// ExtraExclusions are added to the names read from the embedded manifest.
	ExtraExclusions []string

	Logger *zap.Logger
}

// Stats summarizes a run.
type Stats struct {
	EntriesRead       int
	EntriesWritten    int
	Copied            int
	Rewritten         int
	Removed           int
	Excluded          int
	MembersRemoved    int
	InterfacesRemoved int
	Targets           int
	Duration          time.Duration
}

type entryResult struct {
	outcome Outcome
	raw     bool
}

type pipeline struct {
	opts     Options
	logger   *zap.Logger
	excluded *ExclusionSet
	report   *TargetReport
	stats    Stats
}

// Run strips Options.Input into Options.Output. The output only appears once
// every entry has been processed and written; on failure nothing is left
// behind at the destination.
func Run(ctx context.Context, opts Options) (*Stats, error) {
	if opts.Input == "" || opts.Output == "" {
		return nil, fmt.Errorf("%w: input and output are required", ErrInvalidOptions)
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOptions, opts.BatchSize)
	}
	p := &pipeline{
		opts:     opts,
		logger:   opts.Logger,
		excluded: NewExclusionSet(opts.ExtraExclusions...),
		report:   NewTargetReport(),
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.opts.Transformer == nil {
		engine := distmarker.NewEngine(opts.Distribution, distmarker.WithLogger(p.logger))
		p.opts.Transformer = NewClassTransformer(engine, p.logger)
	}

	start := time.Now()
	if err := p.run(ctx); err != nil {
		return nil, err
	}
	if opts.TargetClasses != "" {
		if err := p.report.WriteFile(opts.TargetClasses); err != nil {
			return nil, err
		}
	}
	p.stats.Targets = p.report.Len()
	p.stats.Duration = time.Since(start)

	p.logger.Info("Archive written",
		zap.String("output", opts.Output),
		zap.String("distribution", opts.Distribution.Name),
		zap.Int("entries_read", p.stats.EntriesRead),
		zap.Int("entries_written", p.stats.EntriesWritten),
		zap.Int("removed", p.stats.Removed),
		zap.Int("excluded", p.stats.Excluded),
		zap.Int("rewritten", p.stats.Rewritten),
		zap.Duration("duration", p.stats.Duration))
	return &p.stats, nil
}

func (p *pipeline) run(ctx context.Context) (err error) {
	zr, err := zip.OpenReader(p.opts.Input)
	if err != nil {
		return fmt.Errorf("open input %s: %w", p.opts.Input, err)
	}
	defer zr.Close()

	if err := p.scanManifest(zr.File); err != nil {
		return err
	}

	dir := filepath.Dir(p.opts.Output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.opts.Output)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	// CreateTemp opens with 0600; the output takes the input's permissions.
	info, err := os.Stat(p.opts.Input)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("set output mode: %w", err)
	}

	zw := zip.NewWriter(tmp)
	if zr.Comment != "" {
		if err := zw.SetComment(zr.Comment); err != nil {
			return fmt.Errorf("copy archive comment: %w", err)
		}
	}

	files := zr.File
	for start := 0; start < len(files); start += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+p.opts.BatchSize, len(files))
		batch := files[start:end]
		results, err := p.processBatch(ctx, batch)
		if err != nil {
			return err
		}
		for i, f := range batch {
			if err := p.write(zw, f, results[i]); err != nil {
				return fmt.Errorf("write %s: %w", f.Name, err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary output: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.opts.Output); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}

// scanManifest fills the exclusion set from the manifest before any entry is
// processed, wherever the manifest sits in the archive.
func (p *pipeline) scanManifest(files []*zip.File) error {
	for _, f := range files {
		if f.Name != ManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		m, err := ParseManifest(rc)
		rc.Close()
		if err != nil {
			return err
		}
		names := m.Exclusions(p.opts.Distribution)
		p.excluded.Add(names...)
		p.logger.Debug("Manifest exclusions loaded",
			zap.Int("names", len(names)),
			zap.Strings("attributes", p.opts.Distribution.ManifestAttributes))
		return nil
	}
	p.logger.Debug("No manifest in input")
	return nil
}

// processBatch runs the transformer over one batch. Results are stored by
// position so the caller can write them in input order.
func (p *pipeline) processBatch(ctx context.Context, batch []*zip.File) ([]entryResult, error) {
	results := make([]entryResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BatchSize)
	for i, f := range batch {
		i, f := i, f
		g.Go(func() error {
			res, err := p.process(gctx, f)
			if err != nil {
				return fmt.Errorf("process %s: %w", f.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *pipeline) process(ctx context.Context, f *zip.File) (entryResult, error) {
	if p.excluded.Contains(f.Name) {
		return entryResult{outcome: Outcome{Action: Exclude}}, nil
	}
	if f.FileInfo().IsDir() || !p.opts.Transformer.Accepts(f.Name) {
		return entryResult{raw: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return entryResult{}, err
	}

	data, err := readEntry(f)
	if err != nil {
		return entryResult{}, err
	}
	outcome, err := p.opts.Transformer.Transform(ctx, f.Name, data, p.excluded)
	if err != nil {
		return entryResult{}, err
	}
	switch outcome.Action {
	case Rewrite, Remove:
		if !outcome.ManifestOnly {
			p.report.Add(f.Name)
		}
	}
	return entryResult{outcome: outcome, raw: outcome.Action == Keep}, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (p *pipeline) write(zw *zip.Writer, f *zip.File, res entryResult) error {
	p.stats.EntriesRead++
	switch {
	case res.outcome.Action == Exclude:
		p.stats.Excluded++
		p.logger.Debug("Excluded by manifest", zap.String("entry", f.Name))
		return nil
	case res.outcome.Action == Remove:
		p.stats.Removed++
		p.logger.Debug("Removed entry", zap.String("entry", f.Name))
		return nil
	case res.raw:
		p.stats.Copied++
		p.stats.EntriesWritten++
		return zw.Copy(f)
	}

	// Keep the stored header, including the DOS timestamp and extra fields.
	// A zero Modified stops the writer from appending a second timestamp
	// field to Extra.
	fh := f.FileHeader
	fh.Modified = time.Time{}
	fh.Extra = stripExtra(fh.Extra, zip64ExtraID)
	w, err := zw.CreateHeader(&fh)
	if err != nil {
		return err
	}
	if _, err := w.Write(res.outcome.Data); err != nil {
		return err
	}
	p.stats.Rewritten++
	p.stats.EntriesWritten++
	p.stats.MembersRemoved += res.outcome.MembersRemoved
	p.stats.InterfacesRemoved += res.outcome.InterfacesRemoved
	return nil
}

// zip64ExtraID is the zip64 extended information field. The writer emits its
// own when an entry needs it.
const zip64ExtraID = 0x0001

// stripExtra returns extra without the fields tagged id. A malformed tail is
// dropped.
func stripExtra(extra []byte, id uint16) []byte {
	var out []byte
	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if 4+size > len(extra) {
			break
		}
		if tag != id {
			out = append(out, extra[:4+size]...)
		}
		extra = extra[4+size:]
	}
	return out
}
