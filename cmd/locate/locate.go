package locate

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sthembisoo/raygun4go/raygun/builder"
	"github.com/sthembisoo/raygun4go/raygun/pe"
)

var filePath string

// locatorOutput is the symbol locator plus the key symbol servers use.
type locatorOutput struct {
	Signature  int32  `json:"signature"`
	GUID       string `json:"guid"`
	Age        int32  `json:"age"`
	FileName   string `json:"fileName"`
	DebugID    string `json:"debugId"`
	SizeOfCode uint32 `json:"sizeOfCode"`
	BaseOfCode uint32 `json:"baseOfCode"`
}

func NewCmdLocate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Print the PDB symbol locator of a PE image",
		Long: `Print the PDB symbol locator of a PE image.

The image is laid out the way the Windows loader maps it, then its
CodeView debug record is read the same way crash reports read the
modules of a running process.

Examples:
  # Show which PDB matches a build
  raygun4go locate --file ./bin/app.exe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the PE image (exe or dll)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func start(out io.Writer) error {
	seg, err := pe.OpenImage(filePath)
	if err != nil {
		return err
	}

	locator := pe.NewLocator(seg)
	offsets, err := locator.Offsets(seg.Addr)
	if err != nil {
		return fmt.Errorf("failed to read PE headers: %w", err)
	}

	cv, err := locator.Locate(seg.Addr)
	if err != nil {
		return fmt.Errorf("failed to locate debug information: %w", err)
	}
	if cv == nil {
		fmt.Fprintf(out, "No CodeView debug information found in %s\n", filePath)
		return nil
	}

	sl := builder.SymbolLocatorOf(cv)
	raw, err := json.MarshalIndent(locatorOutput{
		Signature:  sl.Signature,
		GUID:       sl.GUID.String(),
		Age:        sl.Age,
		FileName:   sl.FileName,
		DebugID:    sl.DebugID(),
		SizeOfCode: offsets.SizeOfCode,
		BaseOfCode: offsets.BaseOfCode,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal symbol locator: %w", err)
	}

	fmt.Fprintln(out, string(raw))
	return nil
}
