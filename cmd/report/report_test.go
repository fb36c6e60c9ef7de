package report

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sthembisoo/raygun4go/raygun/messages"
	"github.com/sthembisoo/raygun4go/raygun/pe/petest"
	"github.com/sthembisoo/raygun4go/raygun/store"
)

func runReport(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewCmdReport()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeReport(t *testing.T, out string) messages.Message {
	t.Helper()

	var msg messages.Message
	dec := json.NewDecoder(strings.NewReader(out))
	require.NoError(t, dec.Decode(&msg))
	require.NotNil(t, msg.Details.Error)
	return msg
}

func TestReport(t *testing.T) {
	out, err := runReport(t, "--message", "disk on fire", "--tag", "cli", "--tag", "test")
	require.NoError(t, err)

	msg := decodeReport(t, out)
	assert.Equal(t, "disk on fire", msg.Details.Error.Message)
	assert.Equal(t, "errors.errorString", msg.Details.Error.ClassName)
	assert.Equal(t, []string{"cli", "test"}, msg.Details.Tags)
	assert.Equal(t, messages.ClientName, msg.Details.Client.Name)
	require.NotEmpty(t, msg.Details.Error.StackTrace)
	assert.Equal(t, "start()", msg.Details.Error.StackTrace[0].MethodName)
}

func TestReportWithImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.dll")
	require.NoError(t, os.WriteFile(path, petest.Build(petest.PE64()), 0o600))

	out, err := runReport(t, "--message", "native crash", "--image", path)
	require.NoError(t, err)

	msg := decodeReport(t, out)
	require.NotEmpty(t, msg.Details.Error.StackTrace)
	top := msg.Details.Error.StackTrace[0]
	assert.True(t, top.IsNative())
	assert.Equal(t, "5368713216", top.NativeIP)
	assert.Equal(t, "5368709120", top.NativeImageBase)
	require.NotNil(t, top.Locator)
	assert.Equal(t, `C:\build\app.pdb`, top.Locator.FileName)
	assert.False(t, msg.Details.Error.StackTrace[1].IsNative())
}

func TestReportSend(t *testing.T) {
	var received messages.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-ApiKey"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out, err := runReport(t, "--message", "sent", "--send", "--api-key", "secret", "--endpoint", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Report sent to Raygun")
	require.NotNil(t, received.Details.Error)
	assert.Equal(t, "sent", received.Details.Error.Message)
}

func TestReportSendWithoutAPIKey(t *testing.T) {
	t.Setenv("RAYGUN_APIKEY", "")

	_, err := runReport(t, "--send", "--api-key", "")
	assert.ErrorContains(t, err, "RAYGUN_APIKEY")
}

func TestReportQueuedWhenSendFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out, err := runReport(t, "--message", "offline", "--send", "--api-key", "secret", "--endpoint", srv.URL, "--queue-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Failed to send report: raygun API returned status 503")
	assert.Contains(t, out, "Report queued as ")

	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()
	ids, err := s.IDs()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	e, err := s.Load(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "offline", e.Message.Details.Error.Message)
}
