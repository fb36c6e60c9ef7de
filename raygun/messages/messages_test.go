package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageJSON(t *testing.T) {
	t.Parallel()

	msg := &ErrorMessage{
		ClassName: "System.InvalidOperationException",
		Message:   "boom",
		Data:      Data{1: "one", "key": []int{1, 2}, "fn": func() {}},
		StackTrace: []StackTraceLine{
			{ClassName: "App.Worker", MethodName: "Run()", FileName: "worker.cs", LineNumber: 12},
			{
				NativeIP:        "140702388146176",
				NativeImageBase: "140702388142080",
				Locator: &SymbolLocator{
					Signature: 0x53445352,
					GUID:      GUID{0x78, 0x56, 0x34, 0x12, 0xbc, 0x9a, 0xf0, 0xde, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef},
					Age:       2,
					FileName:  "app.pdb",
				},
			},
		},
		InnerError: &ErrorMessage{ClassName: "System.Exception", Message: "cause"},
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "boom", decoded["message"])
	assert.NotContains(t, decoded, "innerErrors")
	assert.Equal(t, map[string]any{"className": "System.Exception", "message": "cause"}, decoded["innerError"])

	data := decoded["data"].(map[string]any)
	assert.Equal(t, "one", data["1"])
	assert.Equal(t, []any{float64(1), float64(2)}, data["key"])
	assert.IsType(t, "", data["fn"])

	lines := decoded["stackTrace"].([]any)
	require.Len(t, lines, 2)
	native := lines[1].(map[string]any)
	assert.Equal(t, "140702388146176", native["nativeIP"])
	locator := native["symbolLocator"].(map[string]any)
	assert.Equal(t, "123456789ABCDEF00123456789ABCDEF", locator["guid"])
	assert.Equal(t, "app.pdb", locator["fileName"])
}

func TestDataCollidingKeys(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		raw, err := json.Marshal(Data{1: "int", "1": "string", int64(1): "int64", 2: "two"})
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, map[string]any{
			"1":         "string",
			"1 (int)":   "int",
			"1 (int64)": "int64",
			"2":         "two",
		}, decoded)
	}
}

func TestStackTraceLineIsNative(t *testing.T) {
	t.Parallel()

	assert.False(t, StackTraceLine{ClassName: "A", MethodName: "B()"}.IsNative())
	assert.True(t, StackTraceLine{NativeIP: "1", NativeImageBase: "0"}.IsNative())
}

func TestSymbolLocatorDebugID(t *testing.T) {
	t.Parallel()

	l := &SymbolLocator{
		GUID: GUID{0x78, 0x56, 0x34, 0x12, 0xbc, 0x9a, 0xf0, 0xde, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef},
		Age:  0x1a,
	}
	assert.Equal(t, "123456789ABCDEF00123456789ABCDEF1A", l.DebugID())
}

func TestNewMessage(t *testing.T) {
	t.Parallel()

	errMsg := &ErrorMessage{ClassName: "E", Message: "m"}
	msg := NewMessage(errMsg)

	assert.Same(t, errMsg, msg.Details.Error)
	assert.False(t, msg.OccurredOn.IsZero())
	assert.Equal(t, ClientInfo{Name: ClientName, Version: ClientVersion, ClientURL: ClientURL}, msg.Details.Client)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"occurredOn"`)
	assert.Contains(t, string(raw), `"className":"E"`)
}

func TestErrorMessageDecode(t *testing.T) {
	t.Parallel()

	raw := `{
		"className": "System.Exception",
		"message": "boom",
		"data": {"user": "42"},
		"stackTrace": [{
			"lineNumber": 0,
			"nativeIP": "10",
			"nativeImageBase": "0",
			"symbolLocator": {"signature": 1396986706, "guid": "12345678-9ABC-DEF0-0123-456789ABCDEF", "age": 2, "fileName": "app.pdb"}
		}]
	}`

	var msg ErrorMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, Data{"user": "42"}, msg.Data)
	require.Len(t, msg.StackTrace, 1)
	locator := msg.StackTrace[0].Locator
	require.NotNil(t, locator)
	assert.Equal(t, GUID{0x78, 0x56, 0x34, 0x12, 0xbc, 0x9a, 0xf0, 0xde, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}, locator.GUID)
	assert.Equal(t, "123456789ABCDEF00123456789ABCDEF2", locator.DebugID())

	var bad GUID
	assert.Error(t, bad.UnmarshalText([]byte("1234")))
}
