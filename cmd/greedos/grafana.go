package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"greedos/internal/dashboard"
)

var grafanaOutDir string

var grafanaCmd = &cobra.Command{
	Use:   "grafana",
	Short: "Render Grafana dashboards for the GreptimeDB event table",
	Long:  "grafana writes dashboard JSON using GREPTIMEDB_DATASOURCE_UID and GREPTIMEDB_TABLE from the environment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := dashboard.RenderGrafana(grafanaOutDir, dashboard.GrafanaParams{Table: os.Getenv("GREPTIMEDB_TABLE")})
		if err != nil {
			return err
		}
		for _, p := range written {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	grafanaCmd.Flags().StringVar(&grafanaOutDir, "out", "build", "Directory to write dashboards to")
}
