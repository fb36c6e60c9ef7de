// Package messages defines the Raygun crash report payload.
package messages

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorMessage is the report built for one exception. Exactly one of
// InnerError and InnerErrors is set when the exception had causes.
type ErrorMessage struct {
	InnerError  *ErrorMessage    `json:"innerError,omitempty"`
	InnerErrors []*ErrorMessage  `json:"innerErrors,omitempty"`
	Data        Data             `json:"data,omitempty"`
	ClassName   string           `json:"className"`
	Message     string           `json:"message"`
	StackTrace  []StackTraceLine `json:"stackTrace,omitempty"`
}

// StackTraceLine is either a managed line (class, method, file, line) or a
// native line (instruction pointer, image base and the symbol locator of
// the image).
type StackTraceLine struct {
	LineNumber      int            `json:"lineNumber"`
	ClassName       string         `json:"className,omitempty"`
	FileName        string         `json:"fileName,omitempty"`
	MethodName      string         `json:"methodName,omitempty"`
	NativeIP        string         `json:"nativeIP,omitempty"`
	NativeImageBase string         `json:"nativeImageBase,omitempty"`
	Locator         *SymbolLocator `json:"symbolLocator,omitempty"`
}

// IsNative reports whether the line describes a frame of a native image.
func (l StackTraceLine) IsNative() bool {
	return l.NativeIP != ""
}

// SymbolLocator identifies the PDB matching a build of a native image.
type SymbolLocator struct {
	Signature int32  `json:"signature"`
	GUID      GUID   `json:"guid"`
	Age       int32  `json:"age"`
	FileName  string `json:"fileName"`
}

// DebugID is the symbol server key of the PDB: GUID followed by the age.
func (l *SymbolLocator) DebugID() string {
	return fmt.Sprintf("%s%X", l.GUID, uint32(l.Age))
}

// GUID is stored in its on-disk byte order.
type GUID [16]byte

func (g GUID) String() string {
	return fmt.Sprintf("%08X%04X%04X%02X%02X%02X%02X%02X%02X%02X%02X",
		binary.LittleEndian.Uint32(g[0:4]),
		binary.LittleEndian.Uint16(g[4:6]),
		binary.LittleEndian.Uint16(g[6:8]),
		g[8], g[9], g[10], g[11],
		g[12], g[13], g[14], g[15])
}

func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText accepts the String form, with or without dashes.
func (g *GUID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(strings.ReplaceAll(string(text), "-", ""))
	if err != nil {
		return fmt.Errorf("invalid guid %q: %w", text, err)
	}
	if len(raw) != len(g) {
		return fmt.Errorf("invalid guid %q: want %d bytes, got %d", text, len(g), len(raw))
	}
	binary.LittleEndian.PutUint32(g[0:4], binary.BigEndian.Uint32(raw[0:4]))
	binary.LittleEndian.PutUint16(g[4:6], binary.BigEndian.Uint16(raw[4:6]))
	binary.LittleEndian.PutUint16(g[6:8], binary.BigEndian.Uint16(raw[6:8]))
	copy(g[8:], raw[8:])
	return nil
}

// Data carries the exception payload untouched. Keys of any type, and
// values JSON cannot represent, are rendered with fmt when encoded. When a
// non-string key renders like another key, such as 1 and "1", its type is
// appended ("1 (int)") so no entry is lost.
type Data map[any]any

func (d Data) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}

	rendered := make(map[string]int, len(d))
	for k := range d {
		rendered[fmt.Sprint(k)]++
	}

	out := make(map[string]any, len(d))
	for k, v := range d {
		if _, err := json.Marshal(v); err != nil {
			v = fmt.Sprint(v)
		}
		name := fmt.Sprint(k)
		if _, ok := k.(string); !ok && rendered[name] > 1 {
			name = fmt.Sprintf("%s (%T)", name, k)
		}
		out[name] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a payload read back from the API; keys are strings.
func (d *Data) UnmarshalJSON(b []byte) error {
	var in map[string]any
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in == nil {
		*d = nil
		return nil
	}
	out := make(Data, len(in))
	for k, v := range in {
		out[k] = v
	}
	*d = out
	return nil
}
