package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/extractor"
	"github.com/aqlanhadi/fatura/importer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	extractOutput   string
	extractPassword string
	extractCloseDay int
	extractDueDay   int
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extracts transactions from a statement",
	Long: `Extracts the transactions of a statement without touching any database.

The format (PDF, text, OFX, XLSX or CSV) is detected from the content and
the file name. Pass --close-day and --due-day to also see the billing
cycle each transaction would fall into on a credit card.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// extractOutputDoc is what extract prints.
type extractOutputDoc struct {
	extractor.Result `yaml:",inline"`
	Cycles           []billing.Cycle `json:"cycles,omitempty" yaml:"cycles,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}

	result, err := extractor.ProcessFile(args[0], extractor.Options{
		Password: extractPassword,
		Table:    table,
	})
	if err != nil {
		if extractor.NeedsPassword(err) {
			return fmt.Errorf("%w (use --password)", err)
		}
		return err
	}

	doc := extractOutputDoc{Result: result}
	if extractCloseDay != 0 || extractDueDay != 0 {
		cfg := billing.CycleConfig{CloseDay: extractCloseDay, DueDay: extractDueDay}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if doc.Cycles, err = importer.Cycles(cfg, result.Candidates); err != nil {
			return err
		}
	}

	return writeDocument(cmd.OutOrStdout(), extractOutput, doc)
}

func writeDocument(w io.Writer, format string, v any) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func init() {
	rootCmd.AddCommand(extractCmd)

	for _, cmd := range []*cobra.Command{rootCmd, extractCmd} {
		flags := cmd.Flags()
		flags.StringVarP(&extractOutput, "output", "o", "json", "output format: json or yaml")
		flags.StringVarP(&extractPassword, "password", "p", "", "password for encrypted PDFs")
		flags.IntVar(&extractCloseDay, "close-day", 0, "card closing day, to preview billing cycles")
		flags.IntVar(&extractDueDay, "due-day", 0, "card due day, to preview billing cycles")
	}
}
