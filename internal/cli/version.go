package cli

import (
	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func VersionCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version [environment]",
		Short: "Show client and server versions",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ui.Info("stevedore %s", constants.Version)

			if len(args) == 0 {
				return
			}
			_, target, err := loadTarget(*configPath, args[0])
			if err != nil {
				ui.Error("%v", err)
				return
			}
			client, err := clientForTarget(target)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			resp, err := client.Version(cmd.Context())
			if err != nil {
				ui.Warn("Server version unavailable: %v", err)
				return
			}
			ui.Info("stevedored %s", resp.Version)
		},
	}
}
