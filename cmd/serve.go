package cmd

import (
	"github.com/aqlanhadi/fatura/api"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long:  `Starts the HTTP API server that accepts statement files and returns extracted transactions as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Server logs are useful without --verbose
		if !verbose {
			logrus.SetLevel(logrus.InfoLevel)
		}

		table, err := loadTable()
		if err != nil {
			return err
		}

		cfg := api.DefaultConfig()
		if port := viper.GetString("server.port"); port != "" {
			cfg.Port = ":" + port
		}
		cfg.Table = table
		cfg.Logger = logrus.StandardLogger()

		return api.New(cfg).Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "8080", "Port to run the API server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
