// Package convert computes the mel spectrogram of whole recordings and
// stores one file per recording.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/satindergrewal/mel2samp/internal/audio"
	"github.com/satindergrewal/mel2samp/internal/config"
	"github.com/satindergrewal/mel2samp/internal/logger"
	"github.com/satindergrewal/mel2samp/internal/mel"
)

// ErrDuplicateOutput is returned by Run when two recordings would be written
// to the same output file.
var ErrDuplicateOutput = errors.New("convert: duplicate output name")

// Ext is appended to the recording's base name to form the output name.
const Ext = ".mel"

// DirMode is applied to the output directory after it is created.
const DirMode os.FileMode = 0o775

// ProgressEvent reports one finished recording.
type ProgressEvent struct {
	Source string
	Output string
	Done   int
	Total  int
}

// Options configures a Converter. Config is required.
type Options struct {
	Config     *config.Data
	Loader     audio.Loader  // defaults to audio.FileLoader
	Extractor  mel.Extractor // defaults to a mel.Spectrogram built from Config
	Workers    int           // defaults to runtime.NumCPU()
	Logger     logger.Logger
	OnProgress func(ProgressEvent)
}

// Converter writes <outDir>/<basename>.mel for every recording it is given.
type Converter struct {
	rate       int
	loader     audio.Loader
	ext        mel.Extractor
	workers    int
	log        logger.Logger
	onProgress func(ProgressEvent)
}

// New creates a Converter.
func New(opts Options) (*Converter, error) {
	if opts.Config == nil {
		return nil, &config.Error{Field: "data_config", Reason: "missing"}
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	c := &Converter{
		rate:       opts.Config.SamplingRate,
		loader:     opts.Loader,
		ext:        opts.Extractor,
		workers:    opts.Workers,
		log:        opts.Logger,
		onProgress: opts.OnProgress,
	}
	if c.loader == nil {
		c.loader = audio.FileLoader{}
	}
	if c.ext == nil {
		s, err := mel.New(mel.ParamsFromConfig(opts.Config))
		if err != nil {
			return nil, &config.Error{Field: "data_config", Reason: "spectrogram parameters", Err: err}
		}
		c.ext = s
	}
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c, nil
}

// OutputPath returns where the spectrogram of src is written.
func OutputPath(outDir, src string) string {
	return filepath.Join(outDir, filepath.Base(src)+Ext)
}

// Run converts files concurrently and returns the written paths in input
// order. It stops at the first error or when ctx is cancelled. Two inputs
// that share a base name are rejected before anything is written.
func (c *Converter) Run(ctx context.Context, files []string, outDir string) ([]string, error) {
	if err := checkCollisions(files, outDir); err != nil {
		return nil, err
	}
	if err := prepareDir(outDir); err != nil {
		return nil, err
	}

	outputs := make([]string, len(files))
	var done atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, src := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := OutputPath(outDir, src)
			if err := c.convert(src, dst); err != nil {
				return err
			}
			outputs[i] = dst
			c.progress(ProgressEvent{Source: src, Output: dst, Done: int(done.Add(1)), Total: len(files)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.log.Infof("convert: wrote %d spectrograms to %s", len(files), outDir)
	return outputs, nil
}

func (c *Converter) convert(src, dst string) error {
	rec, err := c.loader.Load(src)
	if err != nil {
		return err
	}
	if err := audio.CheckSampleRate(rec, c.rate); err != nil {
		return err
	}

	m, err := c.ext.Extract(audio.Normalize(rec.Samples))
	if err != nil {
		return fmt.Errorf("extract mel %s: %w", src, err)
	}

	f := FromDense(src, c.rate, m)
	if err := f.Save(dst); err != nil {
		return err
	}
	c.log.Debugf("convert: %s -> %s (%dx%d, log-mel range [%.3f, %.3f])",
		src, dst, f.Rows, f.Cols, floats.Min(f.Data), floats.Max(f.Data))
	return nil
}

func (c *Converter) progress(e ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(e)
	}
}

func checkCollisions(files []string, outDir string) error {
	seen := make(map[string]string, len(files))
	for _, src := range files {
		dst := OutputPath(outDir, src)
		if prev, ok := seen[dst]; ok {
			return fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateOutput, prev, src, dst)
		}
		seen[dst] = src
	}
	return nil
}

func prepareDir(dir string) error {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("output %s is not a directory", dir)
		}
		return nil
	}
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return os.Chmod(dir, DirMode)
}
