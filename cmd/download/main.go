package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/lotaxgizmo/bnbscalper-sub002/pkg/marketdata"
)

// downloadAction fetches one-minute bars from the selected provider and
// writes them as the canonical CSV the backtester reads.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	symbol := cmd.String("symbol")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	providerFlag := cmd.String("provider")
	outputPath := cmd.String("output")

	clientConfig := marketdata.ClientConfig{
		Provider: marketdata.ProviderName(providerFlag),
		APIKey:   os.Getenv("POLYGON_API_KEY"),
	}

	provider, err := marketdata.NewProvider(clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create market data provider: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	writer := marketdata.NewCSVBarWriter(out)

	log.Printf("Downloading %s from %s to %s via %s...",
		symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), providerFlag)

	count, err := provider.Download(ctx, symbol, start, end, writer)
	if err != nil {
		writer.Close()

		return fmt.Errorf("download failed: %w", err)
	}

	if err := writer.Close(); err != nil {
		return err
	}

	log.Printf("Downloaded %d bars to %s", count, outputPath)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "download",
		Usage: "Download historical one-minute bars",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Symbol to download, e.g. BNBUSDT",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:  "end",
				Usage: "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value: time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s, %s)", marketdata.ProviderBinance, marketdata.ProviderPolygon),
				Value:   string(marketdata.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output CSV path",
				Value:   "bars.csv",
			},
		},
		Action: downloadAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
