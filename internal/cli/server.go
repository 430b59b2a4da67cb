package cli

import (
	"fmt"
	"sort"

	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/helpers"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func ServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage stevedored server entries",
		Long: `Register stevedored servers in the client config. Each entry names
the environment variable holding that server's API token; tokens are
never written to disk.`,
	}
	cmd.AddCommand(serverAddCmd())
	cmd.AddCommand(serverListCmd())
	cmd.AddCommand(serverRemoveCmd())
	return cmd
}

func serverAddCmd() *cobra.Command {
	var tokenEnvFlag string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Register a server and its token env var",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			serverURL, err := helpers.NormalizeServerURL(args[0])
			if err != nil {
				ui.Error("%v", err)
				return
			}

			cfg, err := config.LoadClientConfig()
			if err != nil {
				ui.Error("%v", err)
				return
			}
			if cfg == nil {
				cfg = &config.ClientConfig{}
			}
			if cfg.Servers == nil {
				cfg.Servers = map[string]config.ServerEntry{}
			}
			cfg.Servers[serverURL] = config.ServerEntry{TokenEnv: tokenEnvFlag}

			if err := config.SaveClientConfig(cfg); err != nil {
				ui.Error("%v", err)
				return
			}
			ui.Success("Registered %s (token from %s)", serverURL, tokenEnvFlag)
		},
	}

	cmd.Flags().StringVar(&tokenEnvFlag, "token-env", constants.EnvVarAPIToken, "Env var holding the API token for this server")

	return cmd
}

func serverListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered servers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				ui.Error("%v", err)
				return
			}
			if cfg == nil || len(cfg.Servers) == 0 {
				ui.Info("No servers registered")
				return
			}

			urls := make([]string, 0, len(cfg.Servers))
			for url := range cfg.Servers {
				urls = append(urls, url)
			}
			sort.Strings(urls)
			lines := make([]string, 0, len(urls))
			for _, url := range urls {
				lines = append(lines, fmt.Sprintf("%s  (token from %s)", url, cfg.Servers[url].TokenEnv))
			}
			ui.Section("Servers", lines)
		},
	}
}

func serverRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <url>",
		Short: "Remove a registered server",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			serverURL, err := helpers.NormalizeServerURL(args[0])
			if err != nil {
				ui.Error("%v", err)
				return
			}

			cfg, err := config.LoadClientConfig()
			if err != nil {
				ui.Error("%v", err)
				return
			}
			if cfg == nil || cfg.Servers == nil {
				ui.Info("No servers registered")
				return
			}
			if _, ok := cfg.Servers[serverURL]; !ok {
				ui.Error("Server %s is not registered", serverURL)
				return
			}
			delete(cfg.Servers, serverURL)

			if err := config.SaveClientConfig(cfg); err != nil {
				ui.Error("%v", err)
				return
			}
			ui.Success("Removed %s", serverURL)
		},
	}
}
