package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Admission gateway for the password-protected photo gallery",
	Long: `Serves the gallery API (password login, photo listing and upload) and puts
the session gate and rate limiter in front of the gallery UI.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
}
