package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/scoutlabs/pinecone-scout/internal/app/bootstrap"
	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/internal/recommend"
	"github.com/scoutlabs/pinecone-scout/internal/suggest"
)

type appBuilder func(ctx context.Context) (*bootstrap.App, error)

func newRootCmd(build appBuilder) *cobra.Command {
	var timeout time.Duration
	root := &cobra.Command{
		Use:          "scoutctl",
		Short:        "Pinecone Scout operator CLI",
		Long:         "Seed the items and users indexes and exercise recommendations and predictive suggestions from the command line.",
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall command timeout")

	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		app, err := build(ctx)
		if err != nil {
			return fmt.Errorf("build app: %w", err)
		}
		defer func() { _ = app.Close() }()
		return fn(ctx, app)
	}

	root.AddCommand(newSeedCmd(withApp), newRecommendCmd(withApp), newSuggestCmd(withApp), newLLMCheckCmd(withApp))
	return root
}

type appRunner func(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error

func newSeedCmd(withApp appRunner) *cobra.Command {
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Embed and upsert catalog or persona files",
	}
	seed.AddCommand(&cobra.Command{
		Use:   "items <file|s3://bucket/key>",
		Short: "Seed the items index from a JSON array of products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				products, err := app.Source.LoadProducts(ctx, args[0])
				if err != nil {
					return err
				}
				return reportImport(cmd.OutOrStdout(), "items", app.Importer.ImportProducts(ctx, products))
			})
		},
	})
	seed.AddCommand(&cobra.Command{
		Use:   "users <file|s3://bucket/key>",
		Short: "Seed the users index from a JSON array of personas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				personas, err := app.Source.LoadPersonas(ctx, args[0])
				if err != nil {
					return err
				}
				return reportImport(cmd.OutOrStdout(), "users", app.Importer.ImportPersonas(ctx, personas))
			})
		},
	})
	return seed
}

func reportImport(w io.Writer, kind string, res catalog.Result) error {
	fmt.Fprintf(w, "seeded %s: %d succeeded, %d failed\n", kind, res.Succeeded, res.Failed)
	for _, err := range res.Errors {
		fmt.Fprintf(w, "  %v\n", err)
	}
	if res.Succeeded == 0 && res.Failed > 0 {
		return fmt.Errorf("seed %s: every record failed", kind)
	}
	return nil
}

func newRecommendCmd(withApp appRunner) *cobra.Command {
	var userID, query string
	var topK int
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print recommendations for a user and query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				resp, err := app.Recommender.Recommend(ctx, userID, query, topK)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "free-text query (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", recommend.DefaultTopK, "number of recommendations")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func newSuggestCmd(withApp appRunner) *cobra.Command {
	var req suggest.Request
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Run the predictive suggestion pipeline on a conversation snippet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				resp, err := app.Suggester.Suggest(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVarP(&req.UserID, "user", "u", "", "user id (required)")
	cmd.Flags().StringVarP(&req.Context, "context", "c", "", "conversation text (required)")
	cmd.Flags().StringVarP(&req.DetectedTopic, "topic", "t", "", "topic already detected by the caller")
	cmd.Flags().StringSliceVarP(&req.PreviousTopics, "previous", "p", nil, "earlier topics or messages, oldest first")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

func newLLMCheckCmd(withApp appRunner) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "llm-check",
		Short: "Send one topic-detection prompt through the configured LLM chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				start := time.Now()
				req := llm.UserPrompt("You classify shopping conversations. Reply with the single best topic label.", text)
				req.MaxTokens = 20
				resp, err := app.LLM.Complete(ctx, req)
				elapsed := time.Since(start).Round(time.Millisecond)
				if err != nil {
					return fmt.Errorf("llm check failed after %s: %w", elapsed, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "latency=%s tokens_in=%d tokens_out=%d\n%s\n",
					elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "I need a TV for my Xbox and PS5", "conversation text to classify")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
