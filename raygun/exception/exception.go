// Package exception describes the exceptions a crash report is built from.
// Hosts either implement Exception themselves, fill in a Snapshot, or adapt
// a Go error with FromError.
package exception

// Exception is one exception object as observed by the reporting hook.
type Exception interface {
	// Message is the exception's own message text.
	Message() string
	// StackTrace is the raw captured stack trace text, empty if the
	// exception was never thrown.
	StackTrace() string
	// Frames are the captured frames, innermost first.
	Frames() []StackFrame
	Type() TypeInfo
	// Data is the free-form payload attached to the exception.
	Data() map[any]any
	// InnerException is the single cause, or nil.
	InnerException() Exception
}

// Aggregate is an exception with several concurrent causes. A nil result
// from InnerExceptions means the exception is not used as an aggregate.
type Aggregate interface {
	Exception
	InnerExceptions() []Exception
}

// Identifier lets an Exception choose the identity used to detect cycles
// in the cause graph. Comparable pointer values are used otherwise.
type Identifier interface {
	Identity() any
}

// StackFrame is one captured frame.
type StackFrame struct {
	// Native is set for frames of natively compiled images. A frame with an
	// address but no Method is treated as native too.
	Native    bool
	IP        uint64
	ImageBase uint64

	// Method is nil when no method metadata is available.
	Method   *Method
	File     string
	Line     int
	ILOffset int
}

// Method is the metadata of the method owning a managed frame.
type Method struct {
	Name string
	// DeclaringType is nil for dynamically generated methods.
	DeclaringType    *TypeInfo
	GenericArguments []TypeInfo
	Parameters       []Parameter
}

// IsGeneric reports whether the method has generic arguments.
func (m *Method) IsGeneric() bool {
	return len(m.GenericArguments) > 0
}

type Parameter struct {
	Name string
	// Type is nil when the parameter type cannot be resolved.
	Type *TypeInfo
}

// TypeInfo names a type. FullName is qualified and may carry an arity
// marker ("List`1") or Go type arguments ("Set[int]"); Name is the simple
// name.
type TypeInfo struct {
	FullName         string
	Name             string
	GenericArguments []TypeInfo
}
