package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/newswire/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan the source landing page and store new articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		inserted, err := env.Pipeline.Ingest(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("inserted %d new articles\n", inserted)
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Fetch and translate all articles still in crawled status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		processed, err := env.Pipeline.ProcessPending(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("processed %d articles\n", processed)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [article-id]",
	Short: "Run the full pipeline: ingest, then fetch and translate",
	Long:  "Ingests the latest listing, then fetches and translates the given article, or the most recently crawled one when no ID is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		if err := env.Pipeline.Run(cmd.Context(), id); err != nil {
			if errors.Is(err, pipeline.ErrNothingIngested) {
				fmt.Println("nothing to process")
				return nil
			}
			return err
		}
		fmt.Println("pipeline run complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(runCmd)
}
