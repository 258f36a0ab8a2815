package cmd

import (
	"fmt"
	"time"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/extractor/common"
	"github.com/spf13/cobra"
)

var (
	cycleClose int
	cycleDue   int
	cycleDate  string
	cycleCount int
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Show the billing cycle a date falls into",
	Long: `Shows the credit card statement that a purchase on --date (default today)
is billed on, given the card's closing and due days. --count lists the
following statements too.`,
	Example: `  fatura cycle --close 1 --due 5 --date 2025-11-30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := billing.CycleConfig{CloseDay: cycleClose, DueDay: cycleDue}

		date := time.Now()
		if cycleDate != "" {
			var err error
			if date, err = common.ParseISODate(cycleDate); err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
		}

		cycle, err := billing.Compute(cfg, date)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i := 0; i < max(cycleCount, 1); i++ {
			fmt.Fprintf(out, "%s  %s → %s  due %s\n", cycle.Key(),
				common.FormatISODate(cycle.Start), common.FormatISODate(cycle.End), common.FormatISODate(cycle.Due))
			cycle = cycle.Next(cfg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cycleCmd)

	cycleCmd.Flags().IntVar(&cycleClose, "close", 0, "Closing day, 1-31")
	cycleCmd.Flags().IntVar(&cycleDue, "due", 0, "Due day, 1-31")
	cycleCmd.Flags().StringVar(&cycleDate, "date", "", "Purchase date, YYYY-MM-DD")
	cycleCmd.Flags().IntVar(&cycleCount, "count", 1, "Number of statements to list")
	cycleCmd.MarkFlagRequired("close")
	cycleCmd.MarkFlagRequired("due")
}
