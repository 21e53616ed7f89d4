package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/telemetrix/esp32-backend/internal/tools/common"
	"github.com/telemetrix/esp32-backend/internal/tools/loadgen"
	"github.com/telemetrix/esp32-backend/internal/tools/ui"
)

type options struct {
	baseURL     string
	profile     string
	devices     int
	duration    time.Duration
	rps         int
	concurrency int
	seed        int64
	ci          bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "esp32sim",
		Short: "Simulate ESP32 devices sending traffic at a running backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "esp32sim", func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, loadgen.Config{
					BaseURL:     opts.baseURL,
					Profile:     opts.profile,
					Devices:     opts.devices,
					Duration:    opts.duration,
					RPS:         opts.rps,
					Concurrency: opts.concurrency,
					Seed:        opts.seed,
				})
				if err != nil {
					return nil, err
				}
				return summarize(res), nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "esp32sim", details, err)
			} else {
				for _, d := range details {
					fmt.Println(d)
				}
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:3001", "API base URL")
	cmd.Flags().StringVar(&opts.profile, "profile", "mixed", "traffic profile: ingest, read or mixed")
	cmd.Flags().IntVar(&opts.devices, "devices", 3, "number of simulated devices")
	cmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "how long to run")
	cmd.Flags().IntVar(&opts.rps, "rps", 10, "target requests per second")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "worker count")
	cmd.Flags().Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed for reproducible runs")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	return cmd
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.duration+time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func summarize(res *loadgen.Result) []string {
	details := []string{
		fmt.Sprintf("requests total=%d failures=%d", res.TotalRequests, res.Failures),
	}
	classes := make([]string, 0, len(res.StatusClasses))
	for class := range res.StatusClasses {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		details = append(details, fmt.Sprintf("status %s: %d", class, res.StatusClasses[class]))
	}
	return details
}
