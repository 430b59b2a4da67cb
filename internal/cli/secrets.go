package cli

import (
	"github.com/eskildsen/stevedore/internal/apiclient"
	"github.com/eskildsen/stevedore/internal/helpers"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func SecretsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage local secrets on the daemon",
		Long: `Manage the daemon's encrypted local secret store. Secrets with the
"local" provider in the config are resolved from this store at deploy
time; "awssm" secrets live in AWS Secrets Manager and are not managed
here.`,
	}
	cmd.AddCommand(secretsListCmd(configPath))
	cmd.AddCommand(secretsSetCmd(configPath))
	cmd.AddCommand(secretsDeleteCmd(configPath))
	return cmd
}

func secretsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <environment>",
		Short: "List secret names (never values)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client, ok := secretsClient(*configPath, args[0])
			if !ok {
				return
			}

			resp, err := client.SecretsList(cmd.Context())
			if err != nil {
				ui.Error("Failed to list secrets: %v", err)
				return
			}
			if len(resp.Secrets) == 0 {
				ui.Info("No secrets stored")
				return
			}
			lines := make([]string, 0, len(resp.Secrets))
			for _, secret := range resp.Secrets {
				lines = append(lines, secret.Name+"  (updated "+helpers.FormatRelativeTime(secret.UpdatedAt)+")")
			}
			ui.Section("Secrets", lines)
		},
	}
}

func secretsSetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <environment> <name> <value>",
		Short: "Store a secret",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			client, ok := secretsClient(*configPath, args[0])
			if !ok {
				return
			}
			if err := client.SetSecret(cmd.Context(), args[1], args[2]); err != nil {
				ui.Error("Failed to set secret: %v", err)
				return
			}
			ui.Success("Secret %s stored", args[1])
		},
	}
}

func secretsDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <environment> <name>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			client, ok := secretsClient(*configPath, args[0])
			if !ok {
				return
			}
			if err := client.DeleteSecret(cmd.Context(), args[1]); err != nil {
				ui.Error("Failed to delete secret: %v", err)
				return
			}
			ui.Success("Secret %s deleted", args[1])
		},
	}
}

func secretsClient(configPath, environment string) (*apiclient.APIClient, bool) {
	_, target, err := loadTarget(configPath, environment)
	if err != nil {
		ui.Error("%v", err)
		return nil, false
	}
	client, err := clientForTarget(target)
	if err != nil {
		ui.Error("%v", err)
		return nil, false
	}
	return client, true
}
