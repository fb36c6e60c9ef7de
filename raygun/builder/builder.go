// Package builder turns exceptions into Raygun error messages. Native frames
// are annotated with the CodeView record of their image so the report can
// be symbolicated later.
//
// Building a report never panics and never returns an error: a part that
// cannot be produced is replaced by a placeholder and logged.
package builder

import (
	"reflect"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/sthembisoo/raygun4go/raygun/exception"
	"github.com/sthembisoo/raygun4go/raygun/memory"
	"github.com/sthembisoo/raygun4go/raygun/messages"
	"github.com/sthembisoo/raygun4go/raygun/pe"
)

const (
	// NoStackTraceMessage replaces the message of exceptions that were
	// never thrown, even when they carry a message of their own.
	NoStackTraceMessage = "StackTrace is null"

	CycleMessage         = "Exception cycle detected, inner errors truncated"
	DepthLimitMessage    = "Maximum inner error depth reached, inner errors truncated"
	NullExceptionMessage = "Exception is null"
	UnavailableMessage   = "(message unavailable)"

	DefaultMaxDepth = 64
)

// DebugLocator finds the CodeView record of the native image at imageBase.
type DebugLocator interface {
	Locate(imageBase uint64) (*pe.CodeView, error)
}

// Builder builds error messages. The zero value builds reports without
// native symbol locators; use New for a fully configured builder.
type Builder struct {
	log      logrus.FieldLogger
	locator  DebugLocator
	maxDepth int
}

type Option func(*Builder)

// WithLogger sets the sink for diagnostics about degraded reports.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Builder) { b.log = l }
}

// WithMemory reads native images through r instead of the live process.
func WithMemory(r memory.Reader) Option {
	return func(b *Builder) { b.locator = pe.NewLocator(r) }
}

func WithLocator(l DebugLocator) Option {
	return func(b *Builder) { b.locator = l }
}

// WithMaxDepth bounds how many levels of inner errors are reported.
func WithMaxDepth(n int) Option {
	return func(b *Builder) { b.maxDepth = n }
}

// New creates a Builder. By default native images are read from the memory
// of the current process and diagnostics go to the standard logrus logger.
func New(opts ...Option) *Builder {
	b := &Builder{
		log:      logrus.StandardLogger(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.locator == nil {
		b.locator = pe.NewLocator(memory.Live{})
	}
	return b
}

var defaultBuilder = sync.OnceValue(func() *Builder { return New() })

// Build builds ex with the default builder.
func Build(ex exception.Exception) *messages.ErrorMessage {
	return defaultBuilder().Build(ex)
}

// BuildError builds err with the default builder.
func BuildError(err error) *messages.ErrorMessage {
	return defaultBuilder().BuildError(err)
}

func (b *Builder) logger() logrus.FieldLogger {
	if b.log == nil {
		return logrus.StandardLogger()
	}
	return b.log
}

// Build converts ex and its causes into an error message. It returns nil
// only when ex is nil.
func (b *Builder) Build(ex exception.Exception) *messages.ErrorMessage {
	if isNil(ex) {
		return nil
	}
	return b.build(ex, make(map[any]struct{}), 0)
}

// BuildError adapts err with exception.FromError and builds it.
func (b *Builder) BuildError(err error) *messages.ErrorMessage {
	return b.Build(exception.FromError(err))
}

func (b *Builder) build(ex exception.Exception, visiting map[any]struct{}, depth int) *messages.ErrorMessage {
	if isNil(ex) {
		return &messages.ErrorMessage{ClassName: unknownClassName, Message: NullExceptionMessage}
	}

	maxDepth := b.maxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if depth >= maxDepth {
		b.logger().WithField("depth", depth).Debugf("Truncating inner errors")
		return b.truncated(ex, DepthLimitMessage)
	}
	if id, ok := identityOf(ex); ok {
		if _, seen := visiting[id]; seen {
			b.logger().WithField("depth", depth).Debugf("Exception cycle detected")
			return b.truncated(ex, CycleMessage)
		}
		// Only the current path counts: one cause may appear twice in an aggregate.
		visiting[id] = struct{}{}
		defer delete(visiting, id)
	}

	msg := &messages.ErrorMessage{}

	if !b.guard("message", func() { msg.Message = messageOf(ex) }) {
		msg.Message = UnavailableMessage
	}
	if !b.guard("className", func() { msg.ClassName = FormatTypeName(ex.Type(), true) }) {
		msg.ClassName = unknownClassName
	}
	b.guard("stackTrace", func() { msg.StackTrace = b.buildStackTrace(ex) })
	b.guard("data", func() {
		if data := ex.Data(); data != nil {
			msg.Data = messages.Data(data)
		}
	})
	b.guard("innerErrors", func() { b.buildInner(msg, ex, visiting, depth) })

	return msg
}

func messageOf(ex exception.Exception) string {
	if strings.TrimSpace(ex.StackTrace()) == "" {
		return NoStackTraceMessage
	}
	return ex.Message()
}

func (b *Builder) buildStackTrace(ex exception.Exception) []messages.StackTraceLine {
	frames := ex.Frames()
	if len(frames) == 0 {
		return []messages.StackTraceLine{placeholderLine()}
	}
	return lo.Map(frames, func(frame exception.StackFrame, _ int) messages.StackTraceLine {
		return b.DescribeFrame(frame)
	})
}

func (b *Builder) buildInner(msg *messages.ErrorMessage, ex exception.Exception, visiting map[any]struct{}, depth int) {
	if agg, ok := ex.(exception.Aggregate); ok {
		if causes := agg.InnerExceptions(); causes != nil {
			msg.InnerErrors = lo.Map(causes, func(cause exception.Exception, _ int) *messages.ErrorMessage {
				return b.build(cause, visiting, depth+1)
			})
			return
		}
	}
	if inner := ex.InnerException(); !isNil(inner) {
		msg.InnerError = b.build(inner, visiting, depth+1)
	}
}

// truncated is the report of an exception whose causes are not followed.
func (b *Builder) truncated(ex exception.Exception, message string) *messages.ErrorMessage {
	msg := &messages.ErrorMessage{ClassName: unknownClassName, Message: message}
	b.guard("className", func() { msg.ClassName = FormatTypeName(ex.Type(), true) })
	return msg
}

// guard runs one stage of the build, reporting whether it completed.
func (b *Builder) guard(stage string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger().WithField("stage", stage).Warnf("Failed to build error report: %v", r)
			ok = false
		}
	}()
	fn()
	return true
}

func isNil(ex exception.Exception) bool {
	if ex == nil {
		return true
	}
	v := reflect.ValueOf(ex)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func identityOf(ex exception.Exception) (any, bool) {
	var id any = ex
	if ider, ok := ex.(exception.Identifier); ok {
		id = ider.Identity()
	}
	if id == nil || reflect.TypeOf(id).Kind() != reflect.Pointer {
		return nil, false
	}
	return id, true
}
