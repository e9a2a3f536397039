package model

import "strings"

// ================ Config ================

type ConversationConfig struct {
	TTL     string `envconfig:"CONVERSATION_TTL" default:"15m"`
	Context struct {
		MaxTurns int `envconfig:"CONVERSATION_CONTEXT_MAX_TURNS" default:"5"`
	}
}

type PlannerModelConfig struct {
	Model       string  `envconfig:"PLANNER_MODEL" default:"gpt-4o-mini"`
	MaxTokens   int     `envconfig:"PLANNER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"PLANNER_TEMPERATURE" default:"0.0"`
	// Attempts bounds planner call retries. The safe default is a single
	// attempt; transient-failure retry is opt-in, never assumed.
	Attempts int `envconfig:"PLANNER_ATTEMPTS" default:"1"`
}

type RetrievalConfig struct {
	IndexPath      string  `envconfig:"RETRIEVAL_INDEX_PATH" default:"data/index/index.json"`
	EmbeddingModel string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	TopK           int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	MinScore       float64 `envconfig:"RETRIEVAL_MIN_SCORE" default:"0.25"`
}

type AgentConfig struct {
	MaxSteps    int `envconfig:"AGENT_MAX_STEPS" default:"10"`
	ToolTimeout int `envconfig:"AGENT_TOOL_TIMEOUT_SECONDS" default:"30"`
	TurnTimeout int `envconfig:"AGENT_TURN_TIMEOUT_SECONDS" default:"120"`
}

type GuardConfig struct {
	AllowedDomains string `envconfig:"GUARD_ALLOWED_DOMAINS" default:"en.wikipedia.org, www.irs.gov"`
}

// Domains returns the parsed URL allowlist.
func (g GuardConfig) Domains() []string {
	parts := strings.Split(g.AllowedDomains, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

type ToolsConfig struct {
	SandboxDir     string `envconfig:"TOOLS_SANDBOX_DIR" default:"data/sandbox"`
	CalendarPath   string `envconfig:"TOOLS_CALENDAR_PATH" default:"data/calendar.json"`
	SearchEndpoint string `envconfig:"TOOLS_SEARCH_ENDPOINT"`
}
