package model

import "encoding/json"

// Decision is the router's output: exactly one of RetrieveRequest,
// ToolRequest or FinalizeRequest per step. The sealed interface keeps the
// engine's transition switch exhaustive.
type Decision interface {
	isDecision()
}

// RetrieveRequest asks the graph to query the corpus.
type RetrieveRequest struct {
	Query string
	TopK  int
}

// ToolRequest asks the graph to invoke a registered tool. Confirm must be
// set for side-effecting tools or the invocation is rejected.
type ToolRequest struct {
	Name    string
	Input   json.RawMessage
	Confirm bool
}

// FinalizeRequest carries the draft answer and the citations the model
// claims back it. Claims are reconciled against the scratchpad before the
// answer is released.
type FinalizeRequest struct {
	Draft     string
	Citations []Citation
}

func (RetrieveRequest) isDecision() {}
func (ToolRequest) isDecision()     {}
func (FinalizeRequest) isDecision() {}
