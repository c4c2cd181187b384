// Command shadow-remove removes shadows from document photos and scores
// results against ground truth.
//
//	shadow-remove remove [flags] IMAGE...
//	shadow-remove detect IMAGE
//	shadow-remove metrics [flags] RESULTS.lst TRUTHS.lst [REGIONS.lst]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ironsheep/shadow-tools-mcp/internal/config"
	"github.com/ironsheep/shadow-tools-mcp/internal/detection"
	"github.com/ironsheep/shadow-tools-mcp/internal/evaluate"
	"github.com/ironsheep/shadow-tools-mcp/internal/imaging"
	"github.com/ironsheep/shadow-tools-mcp/internal/server"
	"github.com/ironsheep/shadow-tools-mcp/internal/waterfill"
)

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		mainUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "remove":
		err = runRemove(ctx, os.Args[2:])
	case "detect":
		err = runDetect(os.Args[2:])
	case "metrics":
		err = runMetrics(ctx, os.Args[2:])
	case "--version", "-v", "version":
		fmt.Printf("shadow-remove %s\n", server.Version)
		return
	case "--help", "-h", "help":
		mainUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		mainUsage()
		os.Exit(2)
	}

	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadow-remove: %v\n", err)
		os.Exit(1)
	}
}

func mainUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  shadow-remove remove [flags] IMAGE...")
	fmt.Fprintln(os.Stderr, "  shadow-remove detect IMAGE")
	fmt.Fprintln(os.Stderr, "  shadow-remove metrics [flags] RESULTS.lst TRUTHS.lst [REGIONS.lst]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run a command with -h for its flags.")
}

// loadConfig reads path and returns it with a console logger on stderr.
func loadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg.Log.Human = true
	return cfg, cfg.Logger(os.Stderr), nil
}

func runRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	output := fs.String("o", "", "output file (single input only)")
	outDir := fs.String("outdir", "", "output directory; defaults to each input's directory")
	roiPath := fs.String("roi", "", "rectangle or polygon JSON file")
	detectPage := fs.Bool("detect-page", false, "find and unwarp the page outline")
	rate := fs.Float64("rate", 0, "downsample factor in (0, 1] (default from config)")
	flood := fs.Int("flood", -1, "flood iterations (default from config)")
	refine := fs.Int("refine", -1, "refine iterations (default from config)")
	workers := fs.Int("workers", 0, "goroutines per sweep (default from config)")
	diag := fs.String("diag", "", "diagnostics prefix, e.g. out/page1_")
	heatmap := fs.Bool("heatmap", false, "render diagnostics in false colour")
	if err := fs.Parse(args); err != nil {
		return err
	}
	inputs := fs.Args()
	if len(inputs) == 0 {
		fs.Usage()
		return errUsage
	}
	if *output != "" && len(inputs) > 1 {
		return errors.New("-o needs exactly one input; use -outdir")
	}
	if *roiPath != "" && *detectPage {
		return errors.New("-roi and -detect-page are mutually exclusive")
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts := cfg.Options(logger)
	if *rate != 0 {
		opts.Rate = *rate
	}
	if *flood >= 0 {
		opts.FloodIterations = *flood
	}
	if *refine >= 0 {
		opts.RefineIterations = *refine
	}
	if *workers > 0 {
		opts.Workers = *workers
	}
	if *diag != "" {
		opts.Sink = waterfill.FileSink{Prefix: *diag, Heatmap: *heatmap}
	}

	var region imaging.Region
	if *roiPath != "" {
		if region, err = imaging.LoadRegion(*roiPath); err != nil {
			return err
		}
	}

	cache := imaging.NewImageCache()
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := *output
		if out == "" {
			out = cleanName(in, *outDir)
		}
		if err := removeOne(cache, in, out, region, *detectPage, opts, logger); err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		cache.Evict(in)
	}
	return nil
}

func removeOne(cache *imaging.ImageCache, in, out string, region imaging.Region, detect bool, opts waterfill.Options, logger zerolog.Logger) error {
	img, err := cache.Load(in)
	if err != nil {
		return err
	}
	if detect {
		page, err := detection.DetectPage(img, detection.PageOptions{})
		if err != nil {
			return err
		}
		region = page.Quad
	}
	if region != nil {
		if img, err = region.Extract(img); err != nil {
			return err
		}
	}

	res, err := waterfill.RemoveShadow(img, opts)
	if err != nil {
		return err
	}
	if err := imaging.Save(out, res.Image); err != nil {
		return err
	}
	logger.Info().
		Str("input", in).
		Str("output", out).
		Int("floored", res.FlooredPixels).
		Bool("degenerate", res.Degenerate).
		Dur("time", res.Duration).
		Msgf("time: %.3f sec", res.Duration.Seconds())
	return nil
}

// cleanName derives the default output path for in.
func cleanName(in, dir string) string {
	base := filepath.Base(in)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, stem+"_shadowfree.png")
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	threshold := fs.Uint("threshold", uint(detection.DefaultEdgeThreshold), "edge threshold (1-255)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *threshold < 1 || *threshold > 255 {
		fs.Usage()
		return errUsage
	}

	img, err := imaging.NewImageCache().Load(fs.Arg(0))
	if err != nil {
		return err
	}
	page, err := detection.DetectPage(img, detection.PageOptions{EdgeThreshold: uint8(*threshold)})
	if err != nil {
		return err
	}
	// Same layout imaging.LoadRegion reads, so the output can be fed to -roi.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(page.Quad)
}

func runMetrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file (logging only)")
	csvPath := fs.String("csv", "metrics.csv", "CSV output file; - for stdout")
	plotPath := fs.String("plot", "", "optional PNG or JPEG bar chart")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		fs.Usage()
		return errUsage
	}

	_, logger, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	job, err := evaluate.LoadJob(fs.Arg(0), fs.Arg(1), fs.Arg(2))
	if err != nil {
		return err
	}
	ev := &evaluate.Evaluator{Cache: imaging.NewImageCache(), Logger: logger}
	rows, err := ev.Run(ctx, job)
	if err != nil {
		return err
	}

	if *csvPath == "-" {
		err = evaluate.WriteCSV(os.Stdout, rows)
	} else {
		err = evaluate.SaveCSV(*csvPath, rows)
	}
	if err != nil {
		return err
	}
	if *plotPath != "" {
		if err := evaluate.PlotScores(rows, *plotPath); err != nil {
			return err
		}
	}
	logger.Info().Int("pairs", len(rows)).Str("csv", *csvPath).Msg("metrics written")
	return nil
}
