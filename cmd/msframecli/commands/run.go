package commands

import (
	"context"
	"fmt"

	"github.com/ruslano69/mssqlframe/pkg/pipeline"
)

// RunPipeline executes a YAML pipeline config and prints the run stats.
func RunPipeline(ctx context.Context, configPath string) error {
	stats, err := pipeline.Run(ctx, configPath)
	if stats != nil {
		for _, a := range stats.Adjustments {
			fmt.Printf("Adjusted: %s\n", a)
		}
		fmt.Printf("Pipeline finished: %d row(s) in %d batch(es), %d attempt(s), %s\n",
			stats.RowsWritten, stats.Batches, stats.Attempts, stats.Duration.Round(timePrecision))
	}
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	return nil
}
