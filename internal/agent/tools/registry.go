// Package tools implements the agent's closed tool set: calculator,
// calendar, sandboxed file access and web search. The set is enumerated at
// compile time; there is no dynamic registration surface.
package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/grounded-agent/server/internal/agent/model"
)

// RiskClass declares whether invoking a tool changes external state.
type RiskClass string

const (
	RiskReadOnly      RiskClass = "read_only"
	RiskSideEffecting RiskClass = "side_effecting"
)

// Tool is the contract every registered capability satisfies. Validate is
// called before Invoke; an input that fails validation is never executed.
type Tool interface {
	Info() *schema.ToolInfo
	Risk() RiskClass
	Validate(input json.RawMessage) error
	Invoke(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry holds the fixed tool set keyed by name.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds the full capability set from config. The calendar
// store is shared between the three calendar tools so side-effecting
// operations serialize on one lock.
func NewRegistry(cfg model.ToolsConfig) *Registry {
	cal := newCalendarStore(cfg.CalendarPath)
	return newRegistry(
		NewCalculator(),
		NewCalendarList(cal),
		NewCalendarCreate(cal),
		NewCalendarClear(cal),
		NewFileRead(cfg.SandboxDir),
		NewFileWrite(cfg.SandboxDir),
		NewWebSearch(cfg.SearchEndpoint),
	)
}

func newRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Info().Name
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	sort.Strings(r.order)
	return r
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Infos returns the declared schemas of every tool in name order, for
// handing to the planner.
func (r *Registry) Infos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Info())
	}
	return out
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
