package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"

	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1/datasource"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/sweep"
	"github.com/lotaxgizmo/bnbscalper-sub002/internal/logger"
)

// sweepAction expands a sweep config into run combinations and writes one
// CSV row per combination.
func sweepAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	outputPath := cmd.String("output")

	content, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg sweep.SweepConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return err
	}

	cfg.Base.ApplyDefaults()

	if err := cfg.Base.Validate(); err != nil {
		return err
	}

	cfg.Workers = int(cmd.Int("workers"))

	log, err := logger.NewLogger()
	if err != nil {
		return err
	}

	source, err := datasource.NewDataSource(":memory:", log)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := source.Initialize(dataPath); err != nil {
		return err
	}

	baseBars, err := source.ReadAll()
	if err != nil {
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return sweep.Run(ctx, &cfg, baseBars, sweep.NewCSVResultWriter(out), log)
}

func main() {
	cmd := &cli.Command{
		Name:  "sweep",
		Usage: "Run a parameter sweep of backtests and collect results as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML sweep configuration",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the one-minute bar file (CSV or Parquet)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output CSV path",
				Value:   "sweep.csv",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Worker pool size (default: NumCPU-1)",
			},
		},
		Action: sweepAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
