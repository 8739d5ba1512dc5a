package types

// Decision is the four-way result of a validation call.
type Decision string

const (
	AllowEntry Decision = "ALLOW_ENTRY"
	DenyEntry  Decision = "DENY_ENTRY"
	AllowExit  Decision = "ALLOW_EXIT"
	DenyExit   Decision = "DENY_EXIT"
)

// Direction distinguishes check-ins from check-outs.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// Outcome is returned for every well-formed validation.  A refusal is an
// Outcome with Allowed=false, never an error.
type Outcome struct {
	Allowed  bool     `json:"allowed"`
	Decision Decision `json:"decision"`
	Message  string   `json:"message"`
}

type ScanRequest struct {
	CPF     string `json:"cpf"`
	Segment string `json:"segment"`
	GateID  string `json:"gate_id,omitempty"` // optional scanner identifier
}

type ScanResponse struct {
	Message    string   `json:"message"`
	Allowed    bool     `json:"allowed"`
	Decision   Decision `json:"decision,omitempty"`
	ServerTime string   `json:"server_time"`
}
