package harness

// TraceEvent is one learned association, with identifiers in alias form.
type TraceEvent struct {
	Step     int    `json:"step"`
	Aci      string `json:"aci"`
	OldPhone string `json:"old_phone"`
	NewPhone string `json:"new_phone"`
	Created  bool   `json:"created"`
	Local    bool   `json:"local"`
}

// Snapshot is the final state of a scenario, with identifiers in alias form.
type Snapshot struct {
	Recipients   []string `json:"recipients"`
	Threads      []string `json:"threads"`
	Interactions []string `json:"interactions"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held and every step applied.
	Pass bool `json:"pass"`

	// Trace lists learned associations in emission order.
	Trace []TraceEvent `json:"trace"`

	// Final is the state after the last step.
	Final Snapshot `json:"final"`

	// Errors contains step failures and assertion messages.
	Errors []string `json:"errors,omitempty"`

	members map[string][]string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		members: map[string][]string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
