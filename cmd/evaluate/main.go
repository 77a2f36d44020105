// Package main is the evaluation CLI: AP under IoU and IoP for COCO-style detection results.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-eval/config"
	"github.com/nvr-ai/go-eval/dataset"
	"github.com/nvr-ai/go-eval/evaluation"
	"github.com/nvr-ai/go-eval/logging"
	"github.com/nvr-ai/go-eval/metrics"
	"github.com/nvr-ai/go-eval/report"
)

const (
	// Flags.
	flagConfig          = "config"
	flagDebug           = "debug"
	flagGroundTruth     = "gt"
	flagPredictions     = "preds"
	flagThreshold       = "threshold"
	flagWorkers         = "workers"
	flagOutput          = "output"
	flagIncludeDeclared = "include-declared"
	flagCategory        = "category"
	flagMetric          = "metric"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	inputFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  flagGroundTruth,
			Usage: "COCO-style ground-truth `FILE`",
		},
		&cli.StringFlag{
			Name:  flagPredictions,
			Usage: "detection results `FILE` (flat JSON array)",
		},
		&cli.Float64Flag{
			Name:  flagThreshold,
			Usage: "overlap a prediction must exceed to match",
			Value: evaluation.DefaultThreshold,
		},
		&cli.BoolFlag{
			Name:  flagIncludeDeclared,
			Usage: "also evaluate declared categories that have no annotations",
		},
	}

	return &cli.App{
		Name:  "evaluate",
		Usage: "compare detection AP under IoU and IoP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "evaluate",
				Usage: "per-category AP@IoU and AP@IoP with mean AP and deltas",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  flagWorkers,
						Usage: "number of category runs evaluated concurrently",
					},
					&cli.StringFlag{
						Name:  flagOutput,
						Usage: "report format: table or json",
						Value: string(report.FormatTable),
					},
				}, inputFlags...),
				Action: runEvaluate,
			},
			{
				Name:  "curve",
				Usage: "envelope-adjusted precision-recall curve of one category",
				Flags: append([]cli.Flag{
					&cli.Int64Flag{
						Name:     flagCategory,
						Usage:    "category `ID`",
						Required: true,
					},
					&cli.StringFlag{
						Name:  flagMetric,
						Usage: "overlap metric: iou or iop",
						Value: string(metrics.IoU),
					},
				}, inputFlags...),
				Action: runCurve,
			},
		},
	}
}

// loadConfig merges the optional config file with the flags that were set explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(flagDebug) {
		cfg.Debug = c.Bool(flagDebug)
	}
	if c.IsSet(flagGroundTruth) {
		cfg.GroundTruth = c.String(flagGroundTruth)
	}
	if c.IsSet(flagPredictions) {
		cfg.Predictions = c.String(flagPredictions)
	}
	if c.IsSet(flagThreshold) {
		cfg.Threshold = c.Float64(flagThreshold)
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagOutput) {
		format, err := report.ParseFormat(c.String(flagOutput))
		if err != nil {
			return nil, err
		}
		cfg.Output = format
	}
	if c.IsSet(flagIncludeDeclared) {
		cfg.IncludeDeclaredCategories = c.Bool(flagIncludeDeclared)
	}

	if cfg.GroundTruth == "" {
		return nil, errors.New("ground truth path is required (--gt or ground_truth)")
	}
	if cfg.Predictions == "" {
		return nil, errors.New("predictions path is required (--preds or predictions)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type inputs struct {
	gt         *dataset.GroundTruth
	collection evaluation.GroundTruthCollection
	preds      evaluation.PredictionCollection
}

func loadInputs(cfg *config.Config, logger *zap.SugaredLogger) (*inputs, error) {
	gt, err := dataset.LoadGroundTruth(cfg.GroundTruth)
	if err != nil {
		return nil, err
	}
	preds, err := dataset.LoadPredictions(cfg.Predictions)
	if err != nil {
		return nil, err
	}

	collection := gt.Collection
	if cfg.IncludeDeclaredCategories {
		collection = gt.WithDeclaredCategories()
	}

	logger.Infow("loaded inputs",
		"annotations", gt.Annotations,
		"crowd_dropped", gt.Crowd,
		"categories", len(collection),
		"prediction_categories", len(preds),
	)

	return &inputs{gt: gt, collection: collection, preds: preds}, nil
}

func setup(c *cli.Context) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger("evaluate", cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runEvaluate(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	in, err := loadInputs(cfg, logger)
	if err != nil {
		return err
	}

	ev, err := evaluation.NewEvaluator(cfg.EvaluatorOptions(), logger)
	if err != nil {
		return err
	}

	summary, err := ev.Evaluate(c.Context, in.collection, in.preds)
	if err != nil {
		return err
	}
	ev.Profiler().Report(logger)

	var names report.Namer
	if len(in.gt.Categories) > 0 {
		names = in.gt.CategoryName
	}
	return report.Write(c.App.Writer, cfg.Output, summary, names)
}

func runCurve(c *cli.Context) error {
	// The metric is resolved before any file is read.
	metric, err := metrics.ParseName(c.String(flagMetric))
	if err != nil {
		return err
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	in, err := loadInputs(cfg, logger)
	if err != nil {
		return err
	}

	category := evaluation.CategoryID(c.Int64(flagCategory))
	set, ok := in.collection[category]
	if !ok {
		return errors.Errorf("category %d has no ground truth", category)
	}

	ev, err := evaluation.NewEvaluator(cfg.EvaluatorOptions(), logger)
	if err != nil {
		return err
	}

	curve, ap, err := ev.Curve(set, in.preds[category], string(metric))
	if err != nil {
		return err
	}
	return report.WriteCurve(c.App.Writer, curve, ap)
}
