package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "inauctl",
	Short: "CLI for the INAU installation tracking server",
	Long: `inauctl talks to an INAU server: the reference catalog of hosts,
repositories and facilities, the build records fed by the CI pipeline, and
the temporal ledger of what is installed where.

Flags can also be set through INAU_* environment variables, for example
INAU_SERVER or INAU_USER.`,
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "INAU server URL")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().String("user", "", "Caller identity, sent as the X-User header")
	rootCmd.PersistentFlags().String("token", "", "Bearer token for JWT-authenticated servers")

	viper.SetEnvPrefix("INAU")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(buildsCmd)
	rootCmd.AddCommand(installationsCmd)
	rootCmd.AddCommand(reportCmd)
}

func serverURL() string { return viper.GetString("server") }
func outputFmt() string { return viper.GetString("output") }
