package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/newswire/internal/model"
)

var addCmd = &cobra.Command{
	Use:   "add <title> <url>",
	Short: "Store a single article by hand",
	Long:  "Inserts one article directly, bypassing the listing scan. A URL already stored is a no-op.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := env.Store.Insert(cmd.Context(), model.Candidate{Title: args[0], URL: args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("stored %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
