package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/newswire/internal/model"
)

var (
	articlesStatus  string
	articlesKeyword string
	articlesLimit   int
)

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List stored articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var articles []model.Article
		if articlesKeyword != "" {
			articles, err = env.Store.Search(cmd.Context(), articlesKeyword)
		} else {
			articles, err = env.Store.List(cmd.Context(), model.ArticleFilter{
				Status: model.Status(articlesStatus),
				Limit:  articlesLimit,
			})
		}
		if err != nil {
			return err
		}

		for _, a := range articles {
			title := a.TitleTranslated
			if title == "" {
				title = a.TitleSource
			}
			fmt.Printf("%s  [%s]  %s\n", a.ID, a.Status, title)
		}
		fmt.Printf("%d articles\n", len(articles))
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored articles, optionally by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.Count(cmd.Context(), model.Status(articlesStatus))
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	articlesCmd.Flags().StringVar(&articlesStatus, "status", "", "filter by status (crawled|translated|polished)")
	articlesCmd.Flags().StringVar(&articlesKeyword, "keyword", "", "search both title fields")
	articlesCmd.Flags().IntVar(&articlesLimit, "limit", 100, "max articles to list")
	countCmd.Flags().StringVar(&articlesStatus, "status", "", "filter by status")
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(countCmd)
}
