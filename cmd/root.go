package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aqlanhadi/fatura/reference"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Embedded default configuration, used when no .fatura.yaml is found
const defaultConfigYAML = `
statement_text:
  min_description_length: 4
  lookahead: 2
reference_file: ""
database:
  driver: sqlite
  url: fatura.db
server:
  port: 8080`

var (
	cfgFile string
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "fatura [file]",
		Short: "Brazilian bank statement and credit card bill importer",
		Long: `fatura reads bank statements and credit card bills (PDF, text, OFX,
XLSX and CSV), normalizes them into transactions, flags duplicates and
assigns card purchases to their billing cycle.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runExtract(cmd, args)
			}
			return cmd.Help()
		},
		SilenceUsage: true,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default is ./.fatura.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().String("driver", "", "database driver: sqlite or postgres")
	rootCmd.PersistentFlags().String("db-url", "", "database URL or sqlite file path (or set DATABASE_URL env)")

	viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("db-url"))
}

func initLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory and home directory
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".fatura")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FATURA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
		// No config file found, use embedded default configuration
		viper.SetConfigType("yaml")
		if err := viper.ReadConfig(bytes.NewBufferString(defaultConfigYAML)); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading embedded configuration: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadTable returns the reference table named by reference_file, or the
// embedded one.
func loadTable() (*reference.Table, error) {
	path := viper.GetString("reference_file")
	if path == "" {
		return reference.Default(), nil
	}
	table, err := reference.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading reference table: %w", err)
	}
	logrus.WithField("path", path).Debug("using custom reference table")
	return table, nil
}
