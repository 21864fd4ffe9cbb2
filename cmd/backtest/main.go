package main

import (
	"context"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	backtestengine "github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine"
	engine "github.com/lotaxgizmo/bnbscalper-sub002/internal/backtest/engine/engine_v1"
)

// backtestAction runs one backtest from a config file and a bar file.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	resultsFolder := cmd.String("output")

	e := engine.NewBacktestEngineV1()

	if err := e.SetConfigPath(configPath); err != nil {
		return err
	}

	if err := e.SetDataPath(dataPath); err != nil {
		return err
	}

	if err := e.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onProgress := backtestengine.OnProcessDataCallback(func(current, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "backtesting")
		}

		bar.Set(current)
	})

	return e.Run(ctx, onProgress)
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run a pivot cascade backtest over a one-minute bar file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML run configuration",
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
				Usage:   "Results folder",
				Value:   "results",
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
