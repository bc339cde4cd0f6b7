package reasoning

import "github.com/google/uuid"

// IDGenerator generates tool-call ids for vendors that do not return any
type IDGenerator interface {
	Generate() string
}

// defaultIDGenerator generates ids of the form call_<uuid>
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return "call_" + uuid.NewString()
}

// NewIDGenerator returns the call_<uuid> generator the adapters use
func NewIDGenerator() IDGenerator {
	return &defaultIDGenerator{}
}

// EnsureIDs fills in missing tool-call ids so tool results can be paired.
func EnsureIDs(calls []ToolCall, ids IDGenerator) []ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = ids.Generate()
		}
	}
	return calls
}
