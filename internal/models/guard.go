package models

import "encoding/json"

// GuardOutcome is the discriminated result of a barcode-used check.
type GuardOutcome string

const (
	GuardOK       GuardOutcome = "OK"
	GuardConflict GuardOutcome = "CONFLICT"
	GuardFailure  GuardOutcome = "FAILURE"
)

// GuardResult reports whether a barcode may be staged. Status mirrors the
// console's wire convention where true means the barcode is already used.
type GuardResult struct {
	Outcome       GuardOutcome `json:"outcome"`
	Status        bool         `json:"status"`
	Title         string       `json:"title,omitempty"`
	Message       string       `json:"message,omitempty"`
	ConflictBatch string       `json:"conflict_batch,omitempty"`
}

// NewGuardResult builds a result keeping Status consistent with Outcome.
func NewGuardResult(outcome GuardOutcome, title, message string) GuardResult {
	return GuardResult{Outcome: outcome, Status: outcome == GuardConflict, Title: title, Message: message}
}

// UnmarshalJSON accepts replies that carry only status, deriving the outcome
// from it: true is a conflict, false is clear.
func (g *GuardResult) UnmarshalJSON(data []byte) error {
	type plain GuardResult
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*g = GuardResult(decoded)
	if g.Outcome == "" {
		g.Outcome = GuardOK
		if g.Status {
			g.Outcome = GuardConflict
		}
	}
	return nil
}
