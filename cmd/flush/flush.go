package flush

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sthembisoo/raygun4go/raygun/store"
	"github.com/sthembisoo/raygun4go/raygun/transport"
)

var (
	queueDir    string
	apiKey      string
	endpoint    string
	maxAttempts int
)

func NewCmdFlush() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Send queued crash reports to Raygun",
		Long: `Send queued crash reports to Raygun.

Reports are queued by "raygun4go report --queue-dir" when they could not
be delivered. Sent reports are removed from the queue; a report that keeps
failing is dropped after --max-attempts tries.

Examples:
  raygun4go flush --queue-dir ~/.raygun4go/queue --api-key YOUR_API_KEY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&queueDir, "queue-dir", "", "Directory of the report queue")
	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "Raygun application API key (or set RAYGUN_APIKEY env var)")
	cmd.Flags().StringVar(&endpoint, "endpoint", transport.DefaultEndpoint, "Raygun entries endpoint")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", store.DefaultMaxAttempts, "Drop a report after this many failed sends")
	_ = cmd.MarkFlagRequired("queue-dir")

	return cmd
}

func start(ctx context.Context, out io.Writer) error {
	cfg := transport.ConfigFromEnv()
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	client, err := transport.New(cfg)
	if err != nil {
		return err
	}

	s, err := store.Open(queueDir, store.WithMaxAttempts(maxAttempts))
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.Flush(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to flush queue: %w", err)
	}

	fmt.Fprintf(out, "Sent %d, failed %d, dropped %d\n", res.Sent, res.Failed, res.Dropped)
	return nil
}
