package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/rings/internal/daily"
	"github.com/robalobadob/rings/internal/grid"
)

var dailyDate string

func init() {
	dailyCmd := &cobra.Command{
		Use:   "daily",
		Short: "Print the daily layout for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			date := time.Now().UTC()
			if dailyDate != "" {
				t, err := time.Parse("2006-01-02", dailyDate)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				date = t
			}
			rings, err := daily.Layout(date, cfg.Daily.Salt, cfg.Dims, cfg.Daily.Markers)
			if err != nil {
				return err
			}
			g, err := grid.Decode(cfg.Dims, rings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n%s\n", daily.DateKey(date), rings, g.Format())
			return nil
		},
	}
	dailyCmd.Flags().StringVar(&dailyDate, "date", "", "UTC date, YYYY-MM-DD (default today)")
	rootCmd.AddCommand(dailyCmd)
}
