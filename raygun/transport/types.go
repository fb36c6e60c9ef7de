package transport

import "github.com/sthembisoo/raygun4go/raygun/messages"

// Application is a Raygun application (project).
type Application struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// ErrorGroup is a group of similar errors in an application.
type ErrorGroup struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
}

// IsActive reports whether the group still needs attention.
func (g ErrorGroup) IsActive() bool {
	return g.Status == "active"
}

// CrashReport is one stored occurrence of an error group.
type CrashReport struct {
	Error   messages.ErrorMessage `json:"error"`
	Request RequestInfo           `json:"request"`
}

// RequestInfo is the HTTP request a crash occurred in, if any.
type RequestInfo struct {
	URL    string `json:"url"`
	Method string `json:"httpMethod"`
}
