package locate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sthembisoo/raygun4go/raygun/pe/petest"
)

func runLocate(t *testing.T, image []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.dll")
	require.NoError(t, os.WriteFile(path, image, 0o600))

	var out bytes.Buffer
	cmd := NewCmdLocate()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--file", path})
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestLocate(t *testing.T) {
	out := runLocate(t, petest.Build())

	var got locatorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, locatorOutput{
		Signature:  0x53445352,
		GUID:       "0403020106050807090A0B0C0D0E0F10",
		Age:        3,
		FileName:   `C:\build\app.pdb`,
		DebugID:    "0403020106050807090A0B0C0D0E0F103",
		SizeOfCode: 0x200,
		BaseOfCode: petest.SectionRVA,
	}, got)
}

func TestLocateWithoutDebugDirectory(t *testing.T) {
	out := runLocate(t, petest.Build(petest.PE64(), petest.WithoutDebugDirectory()))
	assert.Contains(t, out, "No CodeView debug information found")
}

func TestLocateMissingFile(t *testing.T) {
	cmd := NewCmdLocate()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--file", filepath.Join(t.TempDir(), "missing.exe")})
	assert.Error(t, cmd.Execute())
}
