package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sthembisoo/raygun4go/raygun/builder"
	"github.com/sthembisoo/raygun4go/raygun/exception"
	"github.com/sthembisoo/raygun4go/raygun/memory"
	"github.com/sthembisoo/raygun4go/raygun/messages"
	"github.com/sthembisoo/raygun4go/raygun/pe"
	"github.com/sthembisoo/raygun4go/raygun/store"
	"github.com/sthembisoo/raygun4go/raygun/transport"
)

var (
	message   string
	imagePath string
	tags      []string
	send      bool
	apiKey    string
	endpoint  string
	queueDir  string
)

func NewCmdReport() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a crash report and optionally send it to Raygun",
		Long: `Build a crash report and optionally send it to Raygun.

The report is built from an error raised inside this command, so it
carries a real Go stack trace. With --image, a native frame of the given
PE image is put on top of the stack and annotated with its symbol locator.

Examples:
  # Print the report that would be sent
  raygun4go report --message "something broke"

  # Include a native frame from a Windows binary
  raygun4go report --message "crash in native code" --image ./bin/engine.dll

  # Send it
  raygun4go report --message "something broke" --send --api-key YOUR_API_KEY

  # Send it, keeping it for "raygun4go flush" if Raygun cannot be reached
  raygun4go report --message "something broke" --send --queue-dir ~/.raygun4go/queue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "raygun4go test report", "Error message")
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "PE image to add as a native frame (optional)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to attach to the report (repeatable)")
	cmd.Flags().BoolVar(&send, "send", false, "Send the report to Raygun")
	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "Raygun application API key (or set RAYGUN_APIKEY env var)")
	cmd.Flags().StringVar(&endpoint, "endpoint", transport.DefaultEndpoint, "Raygun entries endpoint")
	cmd.Flags().StringVar(&queueDir, "queue-dir", "", "Queue the report here when it is not sent (optional)")

	return cmd
}

func start(ctx context.Context, out io.Writer) error {
	report, err := buildReport(exception.WithStack(errors.New(message)))
	if err != nil {
		return err
	}

	msg := messages.NewMessage(report)
	msg.Details.Tags = tags

	raw, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	fmt.Fprintln(out, string(raw))

	if !send {
		return queue(out, msg)
	}

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
	if err := client.Send(ctx, msg); err != nil {
		if queueDir == "" {
			return err
		}
		fmt.Fprintf(out, "Failed to send report: %v\n", err)
		return queue(out, msg)
	}

	fmt.Fprintln(out, "Report sent to Raygun")
	return nil
}

func queue(out io.Writer, msg *messages.Message) error {
	if queueDir == "" {
		return nil
	}

	s, err := store.Open(queueDir)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.Save(msg)
	if err != nil {
		return fmt.Errorf("failed to queue report: %w", err)
	}
	fmt.Fprintf(out, "Report queued as %s\n", id)
	return nil
}

func buildReport(err error) (*messages.ErrorMessage, error) {
	if imagePath == "" {
		return builder.BuildError(err), nil
	}

	seg, mapErr := pe.OpenImage(imagePath)
	if mapErr != nil {
		return nil, mapErr
	}
	space, mapErr := memory.NewSpace(seg)
	if mapErr != nil {
		return nil, fmt.Errorf("failed to load image: %w", mapErr)
	}

	locator := pe.NewLocator(space)
	offsets, mapErr := locator.Offsets(seg.Addr)
	if mapErr != nil {
		return nil, fmt.Errorf("failed to read PE headers: %w", mapErr)
	}

	ex := exception.FromError(err)
	native := exception.StackFrame{
		Native:    true,
		IP:        seg.Addr + uint64(offsets.BaseOfCode),
		ImageBase: seg.Addr,
	}
	snapshot := &exception.Snapshot{
		Text:      ex.Message(),
		Trace:     ex.StackTrace(),
		Captured:  append([]exception.StackFrame{native}, ex.Frames()...),
		ErrorType: ex.Type(),
		Payload:   ex.Data(),
		Cause:     ex.InnerException(),
	}

	b := builder.New(builder.WithLocator(locator), builder.WithLogger(logrus.StandardLogger()))
	return b.Build(snapshot), nil
}
