package browse

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/sthembisoo/raygun4go/raygun/messages"
	"github.com/sthembisoo/raygun4go/raygun/transport"
)

const maxApplications = 20

var (
	raygunProject string
	raygunToken   string
	errorGroup    string
	apiBase       string
)

func NewCmdErrors() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Browse crash reports stored in Raygun",
		Long: `Browse crash reports stored in Raygun.

This command will:
1. List your Raygun projects when no project is given
2. List the active error groups of the selected project
3. Print the latest crash report of an error group, native frames
   included with their PDB symbol locators

Examples:
  # List projects
  raygun4go errors --token YOUR_RAYGUN_TOKEN

  # List active error groups
  raygun4go errors --token YOUR_RAYGUN_TOKEN --raygun-project "MyApp-prod"

  # Show the latest crash of a group
  raygun4go errors --raygun-project "MyApp-prod" --group GROUP_ID`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&raygunProject, "raygun-project", "p", "", "Raygun project name")
	cmd.Flags().StringVarP(&raygunToken, "token", "t", "", "Raygun API access token (or set RAYGUN_TOKEN env var)")
	cmd.Flags().StringVarP(&errorGroup, "group", "g", "", "Error group identifier (optional)")
	cmd.Flags().StringVar(&apiBase, "api-base", transport.DefaultAPIBase, "Raygun API base URL")
	_ = cmd.Flags().MarkHidden("api-base")

	return cmd
}

func start(ctx context.Context, out io.Writer) error {
	token := raygunToken
	if token == "" {
		token = os.Getenv(transport.TokenEnv)
	}

	client, err := transport.NewAPIClient(token, apiBase)
	if err != nil {
		return err
	}

	applications, err := client.Applications(ctx, maxApplications)
	if err != nil {
		return err
	}
	if len(applications) == 0 {
		return fmt.Errorf("no applications found")
	}

	if raygunProject == "" {
		fmt.Fprintln(out, "Available Raygun projects:")
		for i, app := range applications {
			fmt.Fprintf(out, "  %d. %s\n", i+1, app.Name)
		}
		return nil
	}

	app, exists := lo.Find(applications, func(app transport.Application) bool {
		return app.Name == raygunProject
	})
	if !exists {
		return fmt.Errorf("raygun project '%s' not found", raygunProject)
	}

	if errorGroup != "" {
		report, err := client.LatestCrashReport(ctx, app.Identifier, errorGroup)
		if err != nil {
			return fmt.Errorf("error fetching crash details: %w", err)
		}
		printCrashReport(out, report)
		return nil
	}

	errorGroups, err := client.ErrorGroups(ctx, app.Identifier)
	if err != nil {
		return fmt.Errorf("error fetching crash reports: %w", err)
	}

	// Show only error groups that have a status of active
	activeErrorGroups := lo.Filter(errorGroups, func(eg transport.ErrorGroup, _ int) bool {
		return eg.IsActive()
	})
	if len(activeErrorGroups) == 0 {
		fmt.Fprintln(out, "No active crash reports found for this project.")
		return nil
	}

	fmt.Fprintln(out, "Active error groups:")
	for i, eg := range activeErrorGroups {
		// Truncate message if too long
		msg := eg.Message
		if len(msg) > 80 {
			msg = msg[:77] + "..."
		}
		fmt.Fprintf(out, "  %d. %s [%d occurrences] %s\n", i+1, eg.Identifier, eg.Count, msg)
	}
	return nil
}

func printCrashReport(out io.Writer, report *transport.CrashReport) {
	if report.Request.URL != "" {
		fmt.Fprintf(out, "Request: %s %s\n", report.Request.Method, report.Request.URL)
	}
	printError(out, &report.Error, 0)
}

// printError prints e and its causes, each level indented one step further.
func printError(out io.Writer, e *messages.ErrorMessage, depth int) {
	if e == nil {
		return
	}

	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(out, "%s%s: %s\n", indent, e.ClassName, e.Message)
	for _, line := range e.StackTrace {
		fmt.Fprintf(out, "%s  at %s\n", indent, formatLine(line))
	}

	printError(out, e.InnerError, depth+1)
	for _, inner := range e.InnerErrors {
		printError(out, inner, depth+1)
	}
}

func formatLine(line messages.StackTraceLine) string {
	if !line.IsNative() {
		if line.MethodName == "" {
			return "<unknown frame>"
		}
		return fmt.Sprintf("%s.%s in %s:%d", line.ClassName, line.MethodName, line.FileName, line.LineNumber)
	}
	if line.Locator == nil {
		return fmt.Sprintf("native %s (image %s)", line.NativeIP, line.NativeImageBase)
	}
	return fmt.Sprintf("native %s (image %s, %s %s)",
		line.NativeIP, line.NativeImageBase, line.Locator.FileName, line.Locator.DebugID())
}
