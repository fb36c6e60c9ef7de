package builder

import (
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sthembisoo/raygun4go/raygun/exception"
	"github.com/sthembisoo/raygun4go/raygun/memory"
	"github.com/sthembisoo/raygun4go/raygun/messages"
	"github.com/sthembisoo/raygun4go/raygun/pe"
)

// placeholderLine stands in for a frame that could not be described.
func placeholderLine() messages.StackTraceLine {
	return messages.StackTraceLine{FileName: "none", LineNumber: 0}
}

// DescribeFrame converts one frame into a stack trace line. Frames without
// method metadata are described as native. A native frame whose image cannot
// be read becomes the placeholder line, as does a frame with neither method
// nor address.
func (b *Builder) DescribeFrame(frame exception.StackFrame) (line messages.StackTraceLine) {
	defer func() {
		if r := recover(); r != nil {
			b.frameLogger(frame).Debugf("Failed to describe stack frame: %v", r)
			line = placeholderLine()
		}
	}()

	if isNative(frame) {
		return b.describeNative(frame)
	}
	return describeManaged(frame)
}

func isNative(frame exception.StackFrame) bool {
	if frame.Native {
		return true
	}
	return frame.Method == nil && (frame.IP != 0 || frame.ImageBase != 0)
}

func (b *Builder) frameLogger(frame exception.StackFrame) logrus.FieldLogger {
	return b.logger().WithFields(logrus.Fields{
		"ip":         strconv.FormatUint(frame.IP, 16),
		"image_base": strconv.FormatUint(frame.ImageBase, 16),
	})
}

func (b *Builder) describeNative(frame exception.StackFrame) messages.StackTraceLine {
	line := messages.StackTraceLine{
		NativeIP:        strconv.FormatUint(frame.IP, 10),
		NativeImageBase: strconv.FormatUint(frame.ImageBase, 10),
	}
	if b.locator == nil || frame.ImageBase == 0 {
		return line
	}

	cv, err := b.locator.Locate(frame.ImageBase)
	switch {
	case errors.Is(err, memory.ErrAccessViolation):
		b.frameLogger(frame).Debugf("Failed to read native image: %v", err)
		return placeholderLine()
	case errors.Is(err, pe.ErrMalformedHeader):
		b.frameLogger(frame).Debugf("Ignoring native image: %v", err)
		return line
	case err != nil:
		b.frameLogger(frame).Warnf("Failed to locate debug information: %v", err)
		return line
	}

	line.Locator = SymbolLocatorOf(cv)
	return line
}

// SymbolLocatorOf converts a decoded CodeView record. It returns nil for nil.
func SymbolLocatorOf(cv *pe.CodeView) *messages.SymbolLocator {
	if cv == nil {
		return nil
	}
	return &messages.SymbolLocator{
		Signature: int32(cv.Signature),
		GUID:      messages.GUID(cv.GUID),
		Age:       int32(cv.Age),
		FileName:  cv.PDBFileName,
	}
}

func describeManaged(frame exception.StackFrame) messages.StackTraceLine {
	m := frame.Method
	if m == nil {
		return placeholderLine()
	}

	lineNumber := frame.Line
	if lineNumber == 0 {
		lineNumber = frame.ILOffset
	}
	return messages.StackTraceLine{
		LineNumber: lineNumber,
		ClassName:  declaringTypeName(m),
		FileName:   frame.File,
		MethodName: FormatMethodName(m),
	}
}
