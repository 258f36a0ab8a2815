package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountBank string
	cardAccount string
	cardName    string
	cardClose   int
	cardDue     int
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage bank accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a bank account",
	Long: `Creates a bank account and prints its id. The bank code (e.g. 260 for
Nubank, 341 for Itaú) is what OFX imports are checked against.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadTable()
		if err != nil {
			return err
		}
		if accountBank != "" {
			bank, ok := table.BankByCode(accountBank)
			if !ok {
				bank, ok = table.BankBySlug(accountBank)
			}
			if !ok {
				return fmt.Errorf("unknown bank %q", accountBank)
			}
			accountBank = bank.Code
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		db, closeDB, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		id, err := db.CreateAccount(ctx, accountName, accountBank)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Manage credit cards",
}

var cardAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a credit card under an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := billing.CycleConfig{CloseDay: cardClose, DueDay: cardDue}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		db, closeDB, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		id, err := db.CreateCard(ctx, cardAccount, cardName, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountCmd, cardCmd)
	accountCmd.AddCommand(accountAddCmd)
	cardCmd.AddCommand(cardAddCmd)

	accountAddCmd.Flags().StringVar(&accountName, "name", "", "Account name (required)")
	accountAddCmd.Flags().StringVar(&accountBank, "bank", "", "Bank code or slug, e.g. 260 or nubank")
	accountAddCmd.MarkFlagRequired("name")

	cardAddCmd.Flags().StringVar(&cardAccount, "account", "", "Account the card belongs to (required)")
	cardAddCmd.Flags().StringVar(&cardName, "name", "", "Card name (required)")
	cardAddCmd.Flags().IntVar(&cardClose, "close", 0, "Closing day, 1-31 (required)")
	cardAddCmd.Flags().IntVar(&cardDue, "due", 0, "Due day, 1-31 (required)")
	for _, name := range []string{"account", "name", "close", "due"} {
		cardAddCmd.MarkFlagRequired(name)
	}
}
