package cli

import (
	"fmt"

	"github.com/eskildsen/stevedore/internal/apitypes"
	"github.com/eskildsen/stevedore/internal/helpers"
	"github.com/eskildsen/stevedore/internal/orchestrator"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func StatusCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <environment>",
		Short: "Show service, database, cache, and queue status",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
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

			report, err := client.Status(cmd.Context(), environment)
			if err != nil {
				ui.Error("Status request failed: %v", err)
				return
			}
			renderStatus(report)
		},
	}
	return cmd
}

func renderStatus(report *apitypes.StatusResponse) {
	lines := []string{
		fmt.Sprintf("App:      %s", ui.StateStyle(report.AppStatus)),
		fmt.Sprintf("Tasks:    %d/%d running, %d pending", report.Service.Running, report.Service.Desired, report.Service.Pending),
	}
	if report.Service.RolloutState != "" {
		lines = append(lines, fmt.Sprintf("Rollout:  %s", ui.StateStyle(report.Service.RolloutState)))
	}
	if report.Service.TaskDefinition != "" {
		lines = append(lines, fmt.Sprintf("Task def: %s", helpers.ShortARN(report.Service.TaskDefinition)))
	}
	lines = append(lines, resourceLine("Database", report.Database))
	lines = append(lines, resourceLine("Cache", report.Cache))
	lines = append(lines, fmt.Sprintf("Queue:    %d pending, %d running, %d failed",
		report.Queue.Pending, report.Queue.Running, report.Queue.Failed))
	if report.Targets.Total > 0 {
		lines = append(lines, fmt.Sprintf("Targets:  %d/%d healthy", report.Targets.Healthy, report.Targets.Total))
	}
	if last := report.LastDeployment; last != nil {
		deployed := fmt.Sprintf("Deployed: %s (%s)", last.ID, helpers.FormatRelativeTime(last.CreatedAt))
		if last.RolledBackFrom != nil {
			deployed += fmt.Sprintf(", rolled back from %s", *last.RolledBackFrom)
		}
		lines = append(lines, deployed)
	}
	ui.Section(fmt.Sprintf("Status for %s", report.Environment), lines)
}

func resourceLine(label string, res orchestrator.ResourceStatus) string {
	line := fmt.Sprintf("%-9s %s", label+":", ui.StateStyle(res.Status))
	if res.Endpoint != "" {
		line += fmt.Sprintf(" (%s)", res.Endpoint)
	}
	return line
}
