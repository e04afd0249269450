package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduler - shared resource bookings and household duties",
	Long: `Scheduler books a shared resource for date ranges without overlaps and
tracks recurring duties assigned to members.`,
	Example: `  # Run the API server
  scheduler serve --port 8080

  # Bootstrap an administrator and seed the duty catalog
  scheduler admin create alice --email alice@example.com
  scheduler duties import duties.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./config.yaml or /etc/scheduler/config.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	serveCmd.GroupID = "server"
	migrateCmd.GroupID = "server"
	adminCmd.GroupID = "admin"
	dutiesCmd.GroupID = "admin"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(dutiesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
