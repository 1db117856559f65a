package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
	api "github.com/kailas-cloud/hybridex/internal/transport/chi"
)

var (
	addID       string
	addTitle    string
	addFile     string
	addMetadata string
)

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "Document id (generated when empty)")
	addCmd.Flags().StringVar(&addTitle, "title", "", "Document title")
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "Read content from a file ('-' for stdin)")
	addCmd.Flags().StringVar(&addMetadata, "metadata", "", `Flat JSON object, e.g. '{"category":"db"}'`)
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a document",
	Long: `Add one document. Content comes from the argument or from --file.

Examples:
  hybridexctl add "Goroutines are lightweight threads" --title "Go concurrency"
  hybridexctl add -f notes.md --id notes --metadata '{"source":"wiki"}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	content, err := addContent(cmd, args)
	if err != nil {
		return err
	}

	req := api.DocumentRequest{ID: addID, Title: addTitle, Content: content}
	if addMetadata != "" {
		var md metadata.Map
		if err := json.Unmarshal([]byte(addMetadata), &md); err != nil {
			return fmt.Errorf("parsing --metadata: %w", err)
		}
		req.Metadata = md
	}

	doc, err := newClient().AddDocument(cmd.Context(), req)
	if err != nil {
		return err
	}
	if humanOutput {
		fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", doc.ID)
		return nil
	}
	return outputJSON(cmd.OutOrStdout(), doc)
}

func addContent(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case addFile != "" && len(args) > 0:
		return "", fmt.Errorf("pass content as an argument or with --file, not both")
	case addFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case addFile != "":
		data, err := os.ReadFile(addFile)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", addFile, err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("content is required")
	}
}
