package main

import (
	"github.com/lakehouse-dev/scheduler/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

// @title Scheduler API
// @version 1.0
// @description Reservations and duty assignments
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler API server",
	Long: `Start the scheduler HTTP API.

Examples:
  scheduler serve                    # Use config defaults
  scheduler serve --port 9090        # Override port

Environment variables:
  SCHEDULER_SERVER_PORT                  Server port (default: 8080)
  SCHEDULER_DATABASE_DRIVER              Database driver: sqlite, postgres
  SCHEDULER_DATABASE_DSN                 Database connection string
  SCHEDULER_EVENTS_TYPE                  Event fan-out: memory, valkey
  SCHEDULER_AUTH_JWT_SECRET              JWT signing secret
  SCHEDULER_SCHEDULER_OVERDUE_AFTER_DAYS Days before an assignment is overdue
  SCHEDULER_ADMIN_USERNAME               Bootstrap admin username
  SCHEDULER_ADMIN_PASSWORD               Bootstrap admin password`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.RunWithSignalHandling(server.Config{
			ConfigFile: configFile,
			Port:       servePort,
			Version:    Version,
		})
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}
