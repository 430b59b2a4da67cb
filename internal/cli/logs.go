package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/eskildsen/stevedore/internal/awsutil"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func LogsCmd(configPath *string) *cobra.Command {
	var followFlag bool
	var daemonFlag bool
	var sinceFlag time.Duration

	cmd := &cobra.Command{
		Use:   "logs <environment>",
		Short: "Show application logs from CloudWatch",
		Long: `Tail the application's CloudWatch log group. With --daemon the
command streams stevedored's own log over the API instead.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			if daemonFlag {
				client, err := clientForTarget(target)
				if err != nil {
					ui.Error("%v", err)
					return
				}
				if err := client.StreamLogs(ctx); err != nil {
					ui.Error("%v", err)
				}
				return
			}

			if target.LogGroup == "" {
				ui.Error("No log group configured for %s", environment)
				return
			}
			clients, err := awsClientsForTarget(ctx, target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			if err := tailLogGroup(ctx, clients, target.LogGroup, sinceFlag, followFlag); err != nil {
				ui.Error("%v", err)
				return
			}
		},
	}

	cmd.Flags().BoolVarP(&followFlag, "follow", "f", false, "Keep polling for new log events")
	cmd.Flags().BoolVar(&daemonFlag, "daemon", false, "Stream stevedored's log instead of CloudWatch")
	cmd.Flags().DurationVar(&sinceFlag, "since", 15*time.Minute, "How far back to start")

	return cmd
}

// tailLogGroup prints log events from startTime onward. With follow it
// keeps polling from the last seen event.
func tailLogGroup(ctx context.Context, clients *awsutil.Clients, logGroup string, since time.Duration, follow bool) error {
	startTime := time.Now().Add(-since).UnixMilli()

	for {
		var nextToken *string
		for {
			out, err := clients.Logs.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
				LogGroupName: aws.String(logGroup),
				StartTime:    aws.Int64(startTime),
				NextToken:    nextToken,
			})
			if err != nil {
				return fmt.Errorf("failed to fetch log events: %w", err)
			}
			for _, event := range out.Events {
				ts := time.UnixMilli(aws.ToInt64(event.Timestamp)).Format(time.RFC3339)
				fmt.Printf("%s  %s\n", ts, aws.ToString(event.Message))
				if aws.ToInt64(event.Timestamp) >= startTime {
					startTime = aws.ToInt64(event.Timestamp) + 1
				}
			}
			if out.NextToken == nil {
				break
			}
			nextToken = out.NextToken
		}

		if !follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(3 * time.Second):
		}
	}
}
