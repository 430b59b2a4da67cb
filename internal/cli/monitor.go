package cli

import (
	"time"

	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func MonitorCmd(configPath *string) *cobra.Command {
	var intervalFlag time.Duration

	cmd := &cobra.Command{
		Use:   "monitor <environment>",
		Short: "Poll environment status until interrupted",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			client, err := clientForTarget(target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			ticker := time.NewTicker(intervalFlag)
			defer ticker.Stop()

			for {
				report, err := client.Status(ctx, environment)
				if err != nil {
					ui.Warn("Status poll failed: %v", err)
				} else {
					renderStatus(report)
				}

				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&intervalFlag, "interval", 15*time.Second, "Poll interval")

	return cmd
}
