package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/domain"
)

var (
	askQuery string
	askTopK  int
	askModel string
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question about the ingested documents",
	Long: `Retrieve the most relevant chunks, assemble a cited context and ask the LLM.

Examples:
  docqa ask -q "What datasets were used?"
  docqa ask -q "Summarise chapter 2" -k 10 -m llama-3.3-70b-versatile --json`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "LLM model (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	_ = askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	ans, err := a.ask.Ask(cmd.Context(), domain.AskRequest{
		Query: askQuery,
		TopK:  askTopK,
		Model: askModel,
	})
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(ans, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(ans.Answer)
	if len(ans.Sources) == 0 {
		return nil
	}
	fmt.Printf("\nSources:\n")
	for i, s := range ans.Sources {
		fmt.Printf("--- [%d] %s page %d ---\n", i+1, s.DocID, s.Page)
		fmt.Println(s.TextSnippet)
		fmt.Println()
	}
	return nil
}
