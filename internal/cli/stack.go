package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/eskildsen/stevedore/internal/stack"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

const (
	stackWaitInterval = 10 * time.Second
	stackWaitAttempts = 120
)

func StackCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the CloudFormation infrastructure stack",
	}
	cmd.AddCommand(stackUpCmd(configPath))
	cmd.AddCommand(stackDownCmd(configPath))
	cmd.AddCommand(stackStatusCmd(configPath))
	return cmd
}

func stackUpCmd(configPath *string) *cobra.Command {
	var templateFlag string
	var paramFlags []string

	cmd := &cobra.Command{
		Use:   "up <environment>",
		Short: "Create or update the stack and wait for completion",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			if target.Stack == "" {
				ui.Error("No stack configured for %s", environment)
				return
			}
			body, err := os.ReadFile(templateFlag)
			if err != nil {
				ui.Error("Failed to read template: %v", err)
				return
			}
			parameters, err := parseStackParams(paramFlags)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			clients, err := awsClientsForTarget(ctx, target)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			stacks := stackManager(clients)

			changed, err := stacks.Up(ctx, target.Stack, string(body), parameters)
			if err != nil {
				ui.Error("Stack operation failed: %v", err)
				return
			}
			if !changed {
				ui.Info("Stack %s is already up to date", target.Stack)
				return
			}

			ui.Info("Waiting for stack %s...", target.Stack)
			info, err := stacks.Wait(ctx, target.Stack, stackWaitInterval, stackWaitAttempts)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			ui.Success("Stack %s: %s", info.Name, ui.StateStyle(info.Status))
			printStackOutputs(info)
		},
	}

	cmd.Flags().StringVar(&templateFlag, "template", "stack.yaml", "CloudFormation template file")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Stack parameter as key=value (repeatable)")

	return cmd
}

func stackDownCmd(configPath *string) *cobra.Command {
	var yesFlag bool

	cmd := &cobra.Command{
		Use:   "down <environment>",
		Short: "Delete the stack and wait for completion",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			if target.Stack == "" {
				ui.Error("No stack configured for %s", environment)
				return
			}
			if !confirmProduction(target, environment, "stack deletion", yesFlag) {
				return
			}

			clients, err := awsClientsForTarget(ctx, target)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			stacks := stackManager(clients)

			if err := stacks.Down(ctx, target.Stack); err != nil {
				ui.Error("Stack deletion failed: %v", err)
				return
			}
			ui.Info("Waiting for stack %s to delete...", target.Stack)
			if _, err := stacks.Wait(ctx, target.Stack, stackWaitInterval, stackWaitAttempts); err != nil {
				ui.Error("%v", err)
				return
			}
			ui.Success("Stack %s deleted", target.Stack)
		},
	}

	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Skip the production confirmation prompt")

	return cmd
}

func stackStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <environment>",
		Short: "Show stack status and outputs",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			if target.Stack == "" {
				ui.Error("No stack configured for %s", environment)
				return
			}
			clients, err := awsClientsForTarget(ctx, target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			info, err := stackManager(clients).Describe(ctx, target.Stack)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			ui.Section(fmt.Sprintf("Stack %s", info.Name), []string{
				fmt.Sprintf("Status: %s", ui.StateStyle(info.Status)),
			})
			printStackOutputs(info)
		},
	}
}

func parseStackParams(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	parameters := make(map[string]string, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		parameters[key] = value
	}
	return parameters, nil
}

func printStackOutputs(info stack.Info) {
	if len(info.Outputs) == 0 {
		return
	}
	keys := make([]string, 0, len(info.Outputs))
	for key := range info.Outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", key, info.Outputs[key]))
	}
	ui.Section("Outputs", lines)
}
