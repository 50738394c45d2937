package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/satindergrewal/mel2samp/internal/audio"
	"github.com/satindergrewal/mel2samp/internal/config"
	"github.com/satindergrewal/mel2samp/internal/convert"
	"github.com/satindergrewal/mel2samp/internal/dataset"
	"github.com/satindergrewal/mel2samp/internal/logger"
)

const (
	modeConvert = "convert"
	modePlan    = "plan"
)

func main() {
	var (
		listFlag     = flag.String("f", "", "Recording list, one path per line (defaults to training_files from the config)")
		configFlag   = flag.String("c", "", "JSON file for configuration")
		outputFlag   = flag.String("o", "", "Output directory (convert mode)")
		modeFlag     = flag.String("mode", modeConvert, "convert | plan")
		strategyFlag = flag.String("strategy", dataset.StrategyBinPack, "Dataset strategy for plan mode: crop | greedy | binpack")
	)
	flag.Parse()

	if *configFlag == "" {
		fmt.Fprintln(os.Stderr, "mel2samp - prepare mel spectrogram / waveform training data")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  mel2samp -f files.txt -c config.json -o mels/")
		fmt.Fprintln(os.Stderr, "  mel2samp -mode plan -strategy binpack -f files.txt -c config.json")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
		os.Exit(2)
	}

	rt := config.LoadRuntime()
	log := logger.New(rt.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, rt, *modeFlag, *strategyFlag, *listFlag, *configFlag, *outputFlag); err != nil {
		log.Errorf("mel2samp: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log logger.Logger, rt config.Runtime, mode, strategy, list, cfgPath, outDir string) error {
	cfg, err := config.LoadData(cfgPath)
	if err != nil {
		return err
	}
	if list == "" {
		list = cfg.TrainingFiles
	}
	if list == "" {
		return &config.Error{Field: "training_files", Reason: "no recording list given with -f or in the config"}
	}
	files, err := audio.ReadFileList(list)
	if err != nil {
		return err
	}
	log.Infof("loaded %d recordings from %s", len(files), list)

	switch mode {
	case modeConvert:
		if outDir == "" {
			return fmt.Errorf("convert mode needs an output directory (-o)")
		}
		return runConvert(ctx, log, rt, cfg, files, outDir)
	case modePlan:
		return runPlan(log, cfg, strategy, files)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func runConvert(ctx context.Context, log logger.Logger, rt config.Runtime, cfg *config.Data, files []string, outDir string) error {
	opts := convert.Options{Config: cfg, Workers: rt.Workers, Logger: log}

	var (
		p   *mpb.Progress
		bar *mpb.Bar
	)
	if rt.Progress {
		p = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
		bar = p.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("Converting: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
		opts.OnProgress = func(convert.ProgressEvent) {
			bar.Increment()
		}
	} else {
		opts.OnProgress = func(e convert.ProgressEvent) {
			log.Infof("[%d/%d] %s", e.Done, e.Total, e.Output)
		}
	}

	c, err := convert.New(opts)
	if err != nil {
		return err
	}
	_, err = c.Run(ctx, files, outDir)
	if p != nil {
		if err != nil {
			bar.Abort(false)
		}
		p.Wait()
	}
	return err
}

func runPlan(log logger.Logger, cfg *config.Data, strategy string, files []string) error {
	ds, err := dataset.New(strategy, files, dataset.Options{Config: cfg, Logger: log})
	if err != nil {
		return err
	}

	switch d := ds.(type) {
	case *dataset.BinPacker:
		log.Infof("plan %s: %d bins, capacity %d samples, utilization %.4f, digest %016x",
			strategy, d.Len(), d.Capacity(), d.Utilization(), d.Fingerprint())
	case *dataset.Greedy:
		log.Infof("plan %s: %d segments of %d samples, digest %016x",
			strategy, d.Len(), d.Table().SegmentLength, d.Fingerprint())
	case *dataset.RandomCrop:
		log.Infof("plan %s: %d examples of %d samples, digest %016x",
			strategy, d.Len(), cfg.SegmentLength, d.Fingerprint())
	default:
		log.Infof("plan %s: %d examples", strategy, ds.Len())
	}
	return nil
}
