package builder

import (
	"strings"

	"github.com/samber/lo"

	"github.com/sthembisoo/raygun4go/raygun/exception"
)

const (
	unknownClassName     = "(unknown)"
	unknownParameterType = "<UnknownType>"
)

// FormatTypeName renders a type as "Namespace.Type<Arg1,Arg2>", dropping
// the arity marker or Go type argument list of generic types.
func FormatTypeName(t exception.TypeInfo, fullName bool) string {
	name := t.Name
	if fullName && t.FullName != "" {
		name = t.FullName
	}
	if len(t.GenericArguments) == 0 {
		return name
	}

	if i := strings.IndexAny(name, "`["); i >= 0 {
		name = name[:i]
	}
	args := lo.Map(t.GenericArguments, func(arg exception.TypeInfo, _ int) string {
		return FormatTypeName(arg, false)
	})
	return name + "<" + strings.Join(args, ",") + ">"
}

// FormatMethodName renders "Name[T1,T2](Type1 name1, Type2 name2)".
func FormatMethodName(m *exception.Method) string {
	var sb strings.Builder
	sb.WriteString(m.Name)

	if m.IsGeneric() {
		sb.WriteString("[")
		sb.WriteString(strings.Join(lo.Map(m.GenericArguments, func(arg exception.TypeInfo, _ int) string {
			return arg.Name
		}), ","))
		sb.WriteString("]")
	}

	sb.WriteString("(")
	for i, p := range m.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		typ := unknownParameterType
		if p.Type != nil {
			typ = p.Type.Name
		}
		sb.WriteString(typ + " " + p.Name)
	}
	sb.WriteString(")")
	return sb.String()
}

// declaringTypeName is the full name of the method's owner.
func declaringTypeName(m *exception.Method) string {
	if m.DeclaringType == nil {
		return unknownClassName
	}
	return m.DeclaringType.FullName
}
