package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/newswire/internal/pipeline"
	"github.com/sells-group/newswire/internal/store"
)

// stageCommand builds a cobra command that runs one pipeline stage against a
// single article ID.
func stageCommand(use, short string, stage func(*pipeline.Pipeline) func(context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <article-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := initPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			err = stage(env.Pipeline)(cmd.Context(), args[0])
			switch {
			case errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("article %s not found", args[0])
			case errors.Is(err, pipeline.ErrNotReady):
				return fmt.Errorf("article %s is not ready: run the prerequisite stage first", args[0])
			case err != nil:
				return err
			}

			fmt.Printf("%s complete for %s\n", use, args[0])
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(stageCommand("fetch", "Fetch and extract an article's full content",
		func(p *pipeline.Pipeline) func(context.Context, string) error { return p.FetchContent }))
	rootCmd.AddCommand(stageCommand("translate", "Translate an article's title and body",
		func(p *pipeline.Pipeline) func(context.Context, string) error { return p.Translate }))
	rootCmd.AddCommand(stageCommand("polish", "Rewrite an article's translated body",
		func(p *pipeline.Pipeline) func(context.Context, string) error { return p.Polish }))
}
