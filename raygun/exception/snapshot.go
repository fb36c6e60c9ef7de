package exception

// Snapshot is an Exception captured as plain values.
type Snapshot struct {
	Text      string
	Trace     string
	Captured  []StackFrame
	ErrorType TypeInfo
	Payload   map[any]any
	Cause     Exception
	// Causes makes the snapshot an aggregate when non-nil.
	Causes []Exception
}

var _ Aggregate = (*Snapshot)(nil)

func (s *Snapshot) Message() string              { return s.Text }
func (s *Snapshot) StackTrace() string           { return s.Trace }
func (s *Snapshot) Frames() []StackFrame         { return s.Captured }
func (s *Snapshot) Type() TypeInfo               { return s.ErrorType }
func (s *Snapshot) Data() map[any]any            { return s.Payload }
func (s *Snapshot) InnerException() Exception    { return s.Cause }
func (s *Snapshot) InnerExceptions() []Exception { return s.Causes }
