package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ragdesk/internal/app"
	"github.com/markdave123-py/ragdesk/internal/services"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Index files into a collection",
	Long: `Copies the files into the upload directory, indexes them into the
collection and prints one JSON progress event per line. With --summarize the
command waits until every background summary has finished.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var (
	ingestCollection string
	ingestSummarize  bool
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "Target collection (required)")
	ingestCmd.Flags().BoolVar(&ingestSummarize, "summarize", false, "Generate a summary for each file")
	_ = ingestCmd.MarkFlagRequired("collection")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	uploads := make([]services.Upload, 0, len(args))
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		uploads = append(uploads, services.Upload{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Body:        f,
		})
	}

	collection := services.SanitizeCollectionName(ingestCollection)
	if collection == "" {
		return fmt.Errorf("invalid collection name %q", ingestCollection)
	}

	saved, err := application.Documents.Save(ctx, collection, uploads)
	if err != nil {
		return fmt.Errorf("save files: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for ev := range application.Documents.Ingest(ctx, collection, saved, ingestSummarize) {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}

	// Close cancels the runner, so drain it first
	application.Summaries.Wait()
	return nil
}
