package messages

import (
	"os"
	"runtime"
	"time"
)

const (
	ClientName = "raygun4go"
	ClientURL  = "https://github.com/sthembisoo/raygun4go"
	// ClientVersion is reported in every entry.
	ClientVersion = "0.3.0"
)

// Message is the entry accepted by the Raygun ingestion API.
type Message struct {
	OccurredOn time.Time      `json:"occurredOn"`
	Details    MessageDetails `json:"details"`
}

// MessageDetails holds everything known about the occurrence.
type MessageDetails struct {
	MachineName    string         `json:"machineName,omitempty"`
	Version        string         `json:"version,omitempty"`
	Error          *ErrorMessage  `json:"error"`
	Environment    Environment    `json:"environment"`
	Client         ClientInfo     `json:"client"`
	Tags           []string       `json:"tags,omitempty"`
	UserCustomData map[string]any `json:"userCustomData,omitempty"`
}

// Environment describes the host the report was created on.
type Environment struct {
	OSVersion      string `json:"osVersion,omitempty"`
	Architecture   string `json:"architecture,omitempty"`
	ProcessorCount int    `json:"processorCount,omitempty"`
}

// ClientInfo identifies the library that produced the entry.
type ClientInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	ClientURL string `json:"clientUrl"`
}

// NewMessage wraps err in an entry stamped with the current time and host.
func NewMessage(err *ErrorMessage) *Message {
	hostname, _ := os.Hostname()
	return &Message{
		OccurredOn: time.Now().UTC(),
		Details: MessageDetails{
			MachineName: hostname,
			Error:       err,
			Environment: Environment{
				OSVersion:      runtime.GOOS,
				Architecture:   runtime.GOARCH,
				ProcessorCount: runtime.NumCPU(),
			},
			Client: ClientInfo{
				Name:      ClientName,
				Version:   ClientVersion,
				ClientURL: ClientURL,
			},
		},
	}
}
