// Command storage-cleanup lists and deletes evidence files left on the
// Gemini Files API by interrupted runs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ischool-ai/session-auditor/internal/auth"
	"github.com/ischool-ai/session-auditor/internal/gemini"
	"github.com/ischool-ai/session-auditor/internal/logging"
)

// CLI flags
var (
	deleteFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "storage-cleanup",
	Short: "List or purge uploaded evidence on the Gemini Files API",
	Long: `Storage Cleanup lists every file currently stored under the configured
API key. Completed runs delete their uploads; anything listed here was left
behind by an interrupted run. Files expire on their own after 48 hours, but
they count against the storage quota until then.

Examples:
  storage-cleanup
  storage-cleanup --delete`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().BoolVar(&deleteFlag, "delete", false, "Delete the listed files instead of just printing them")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to retrieve API key")
	}

	ctx := context.Background()
	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	files, err := gemini.ListStoredFiles(ctx, client)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list stored files")
	}
	if len(files) == 0 {
		fmt.Println("No files stored.")
		return
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Name", "MIME type", "Size", "State", "Expires"})

	var totalBytes int64
	for _, f := range files {
		size := int64(0)
		if f.SizeBytes != nil {
			size = *f.SizeBytes
		}
		totalBytes += size
		expires := ""
		if !f.ExpirationTime.IsZero() {
			expires = f.ExpirationTime.Format("2006-01-02 15:04")
		}
		tw.AppendRow(table.Row{f.Name, f.MIMEType, formatBytes(size), string(f.State), expires})
	}
	fmt.Println(tw.Render())
	fmt.Printf("%d files, %s total\n", len(files), formatBytes(totalBytes))

	if !deleteFlag {
		fmt.Println("Run again with --delete to remove them.")
		return
	}

	deleted := 0
	for _, f := range files {
		if err := gemini.DeleteStoredFile(ctx, client, f.Name); err != nil {
			log.Error().Err(err).Str("name", f.Name).Msg("Delete failed")
			continue
		}
		deleted++
	}
	log.Info().Int("deleted", deleted).Int("total", len(files)).Msg("Cleanup finished")
	if deleted < len(files) {
		os.Exit(1)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
