package exception

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/samber/lo"
)

const maxStackDepth = 64

// StackTracer is implemented by errors that carry the program counters of
// the stack they were created on.
type StackTracer interface {
	StackTrace() []uintptr
}

// DataCarrier is implemented by errors with a free-form payload.
type DataCarrier interface {
	Data() map[any]any
}

type stackError struct {
	err error
	pcs []uintptr
}

func (e *stackError) Error() string         { return e.err.Error() }
func (e *stackError) Unwrap() error         { return e.err }
func (e *stackError) StackTrace() []uintptr { return e.pcs }

// WithStack annotates err with the stack of its caller. FromError reports
// the annotated error under its own type and message.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	return &stackError{err: err, pcs: pcs[:n]}
}

// goError adapts a Go error to Exception.
type goError struct {
	err    error
	frames []StackFrame
	trace  string
}

var _ Aggregate = (*goError)(nil)

// FromError adapts err. Frames are taken from the first StackTracer found
// while peeling WithStack annotations, or from err itself.
func FromError(err error) Exception {
	if err == nil {
		return nil
	}

	var pcs []uintptr
	for {
		se, ok := err.(*stackError)
		if !ok {
			break
		}
		if pcs == nil {
			pcs = se.pcs
		}
		err = se.err
	}
	if pcs == nil {
		if st, ok := err.(StackTracer); ok {
			pcs = st.StackTrace()
		}
	}

	e := &goError{err: err}
	e.frames, e.trace = framesOf(pcs)
	return e
}

func (e *goError) Message() string      { return e.err.Error() }
func (e *goError) StackTrace() string   { return e.trace }
func (e *goError) Frames() []StackFrame { return e.frames }
func (e *goError) Type() TypeInfo       { return typeInfoOf(reflect.TypeOf(e.err)) }

func (e *goError) Data() map[any]any {
	if dc, ok := e.err.(DataCarrier); ok {
		return dc.Data()
	}
	return nil
}

func (e *goError) InnerException() Exception {
	return FromError(errors.Unwrap(e.err))
}

func (e *goError) InnerExceptions() []Exception {
	u, ok := e.err.(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	causes := lo.FilterMap(u.Unwrap(), func(err error, _ int) (Exception, bool) {
		return FromError(err), err != nil
	})
	if causes == nil {
		causes = []Exception{}
	}
	return causes
}

// Identity is the wrapped error when it is a pointer, so that a cause graph
// looping back on itself is recognised.
func (e *goError) Identity() any {
	if reflect.TypeOf(e.err).Kind() == reflect.Pointer {
		return e.err
	}
	return e
}

func framesOf(pcs []uintptr) ([]StackFrame, string) {
	if len(pcs) == 0 {
		return nil, ""
	}

	var out []StackFrame
	var trace strings.Builder
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		sf := StackFrame{
			File:   f.File,
			Line:   f.Line,
			Method: methodOf(f.Function),
		}
		if f.Entry != 0 && f.PC >= f.Entry {
			sf.ILOffset = int(f.PC - f.Entry)
		}
		out = append(out, sf)
		fmt.Fprintf(&trace, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return out, trace.String()
}

// methodOf splits a runtime function name such as
// "example.com/pkg.(*Server).Serve.func1" into a method and its owner.
func methodOf(function string) *Method {
	if function == "" {
		return nil
	}
	function = strings.ReplaceAll(function, "[...]", "")

	pkgEnd := strings.LastIndex(function, "/") + 1
	dot := strings.Index(function[pkgEnd:], ".")
	if dot < 0 {
		return &Method{Name: function}
	}
	pkg := function[:pkgEnd+dot]
	sym := function[pkgEnd+dot+1:]

	owner, name := pkg, sym
	if i := strings.LastIndex(sym, "."); i >= 0 {
		owner = pkg + "." + strings.Trim(sym[:i], "(*)")
		name = sym[i+1:]
	}
	return &Method{
		Name:          name,
		DeclaringType: &TypeInfo{FullName: owner, Name: simpleName(owner)},
	}
}

func typeInfoOf(t reflect.Type) TypeInfo {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	info := parseTypeName(name)
	if pkg := t.PkgPath(); pkg != "" {
		info.FullName = pkg + "." + name
	}
	return info
}

// parseTypeName turns "pkg.Pair[int,example.com/x.Key]" into a TypeInfo
// with one argument per top level type argument.
func parseTypeName(name string) TypeInfo {
	base, args := splitTypeArgs(name)
	info := TypeInfo{FullName: name, Name: simpleName(base)}
	if len(args) > 0 {
		info.GenericArguments = lo.Map(args, func(arg string, _ int) TypeInfo {
			return parseTypeName(arg)
		})
	}
	return info
}

func splitTypeArgs(name string) (string, []string) {
	open := strings.IndexByte(name, '[')
	if open <= 0 || !strings.HasSuffix(name, "]") {
		return name, nil
	}

	var args []string
	depth, start := 0, open+1
	inner := name[:len(name)-1]
	for i := open + 1; i < len(inner); i++ {
		switch inner[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, inner[start:])
	return name[:open], args
}

func simpleName(qualified string) string {
	if i := strings.LastIndex(qualified, "/"); i >= 0 {
		qualified = qualified[i+1:]
	}
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		qualified = qualified[i+1:]
	}
	return qualified
}
