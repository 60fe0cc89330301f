package domain

// ReplyKind discriminates the two shapes a model response can take.
type ReplyKind int

const (
	// ReplyFinalAnswer carries plain answer text in ModelReply.Text.
	ReplyFinalAnswer ReplyKind = iota
	// ReplyToolRequest carries one or more requested tool invocations in
	// ModelReply.ToolCalls.
	ReplyToolRequest
)

// ToolCall is a structured invocation request produced by the model for the
// current turn only. It is never persisted.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ModelReply is the tagged result returned by the model invocation
// collaborator: either a final answer or a set of tool invocation requests.
type ModelReply struct {
	Kind      ReplyKind
	Text      string
	ToolCalls []ToolCall
}

// FinalAnswer wraps plain answer text.
func FinalAnswer(text string) ModelReply {
	return ModelReply{Kind: ReplyFinalAnswer, Text: text}
}

// ToolRequest wraps the model's requested invocations.
func ToolRequest(calls []ToolCall) ModelReply {
	return ModelReply{Kind: ReplyToolRequest, ToolCalls: calls}
}

// ToolSpec declares a capability to the model: its name, purpose and
// argument schema. The model client translates these into its provider's
// function-declaration wire format.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  ParameterSpec
}

// ParameterSpec is a minimal JSON-schema-shaped argument description.
type ParameterSpec struct {
	Required   []string
	Properties map[string]PropertySpec
}

// PropertySpec describes a single tool argument.
type PropertySpec struct {
	Type        string
	Description string
	Enum        []string
}
