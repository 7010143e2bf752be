package models

// PlanStep is a single analysis the planner wants answered from the data.
type PlanStep struct {
	Title    string `json:"title"`
	Question string `json:"question"`
	Chart    string `json:"chart,omitempty"`
}

type Plan struct {
	Goal  string     `json:"goal"`
	Steps []PlanStep `json:"steps"`
}

// Finding is the executed result of a plan step.
type Finding struct {
	Step    PlanStep `json:"step"`
	SQL     string   `json:"sql,omitempty"`
	Preview any      `json:"preview,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Critique is the reviewer verdict in the reflection loop.
type Critique struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
}
