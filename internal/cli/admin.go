package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every indexed chunk and document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(GetConfig(), GetRootDir())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.schema.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Schema created/reset.")
		return nil
	},
}

var (
	docsDelete string
	docsJSON   bool
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents or delete one",
	Long: `Examples:
  docqa documents
  docqa documents --delete 3f2b...`,
	Args: cobra.NoArgs,
	RunE: runDocuments,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.Flags().StringVar(&docsDelete, "delete", "", "delete the document with this id")
	documentsCmd.Flags().BoolVar(&docsJSON, "json", false, "output as JSON")
}

func runDocuments(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	if docsDelete != "" {
		if err := a.schema.DeleteDocument(cmd.Context(), docsDelete); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", docsDelete)
		return nil
	}

	docs, err := a.schema.Documents()
	if err != nil {
		return err
	}
	if docsJSON {
		output, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		return nil
	}

	chunks, manifest, err := a.schema.Stats(cmd.Context())
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Printf("%s  %-30s %4s %3d pages %4d chunks  %s\n",
			d.ID, d.Filename, d.FileType, d.PageCount, d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\n%d documents, %d chunks", len(docs), chunks)
	if manifest != nil {
		fmt.Printf(", embedded with %s (dim %d)", manifest.Provider, manifest.Dimension)
	}
	fmt.Println()
	return nil
}
