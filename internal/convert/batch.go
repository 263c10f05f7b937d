package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Failure records a document that could not be converted.
type Failure struct {
	Path string
	Err  error
}

// BatchResult summarizes a Batch run. Results and Failures are sorted by
// source path.
type BatchResult struct {
	RunID    string
	Results  []Result
	Failures []Failure
	Skipped  []string
	Elapsed  time.Duration
}

// Batch converts every .stb and .xml file directly inside srcDir into outDir
// using format to, running up to Options.Workers documents at once. Each
// document is all-or-nothing; a failing document is recorded in Failures and
// does not stop the others.
//
// Precondition: srcDir must be a readable directory.
// Postcondition: returns a summary, or a non-nil error if srcDir cannot be
// listed or ctx is cancelled.
func (c *Converter) Batch(ctx context.Context, srcDir, outDir string, to Format) (*BatchResult, error) {
	if to == FormatUnknown {
		return nil, fmt.Errorf("batch: %w", ErrUnknownFormat)
	}
	t0 := time.Now()
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory %s: %w", srcDir, err)
	}

	res := &BatchResult{RunID: uuid.NewString()}
	logger := c.logger.With(zap.String("run_id", res.RunID))
	logger.Info("batch started",
		zap.String("src", srcDir),
		zap.String("out", outDir),
		zap.Stringer("to", to),
		zap.Int("workers", c.opts.Workers),
	)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.opts.Workers)
	for _, e := range entries {
		if e.IsDir() || FormatForPath(e.Name()) == FormatUnknown {
			continue
		}
		src := filepath.Join(srcDir, e.Name())
		dst := DestPath(src, outDir, to)
		if samePath(src, dst) {
			logger.Warn("skipping file that would overwrite itself", zap.String("path", src))
			res.Skipped = append(res.Skipped, src)
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := c.convert(src, dst, to, c.opts.Overwrite)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("conversion failed", zap.String("path", src), zap.Error(err))
				res.Failures = append(res.Failures, Failure{Path: src, Err: err})
				return nil
			}
			res.Results = append(res.Results, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", res.RunID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", res.RunID, err)
	}

	sort.Slice(res.Results, func(i, j int) bool { return res.Results[i].Src < res.Results[j].Src })
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Path < res.Failures[j].Path })
	res.Elapsed = time.Since(t0)
	logger.Info("batch finished",
		zap.Int("converted", len(res.Results)),
		zap.Int("failed", len(res.Failures)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("elapsed", res.Elapsed.Round(time.Millisecond)),
	)
	return res, nil
}
