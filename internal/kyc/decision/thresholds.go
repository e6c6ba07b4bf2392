package decision

import (
	dErrors "vericore/pkg/domain-errors"
)

// Thresholds are the named score boundaries used by the liveness gate and the decision rules.
// All values are on the 0–100 scale.
type Thresholds struct {
	// Approve: a score strictly above this (with liveness and no mismatches) approves.
	Approve int `json:"approve" yaml:"approve"`
	// Reject: a score strictly below this rejects.
	Reject int `json:"reject" yaml:"reject"`
	// AutoRejectFloor: a liveness score strictly below this finalizes immediately as rejected.
	AutoRejectFloor int `json:"auto_reject_floor" yaml:"auto_reject_floor"`
	// PassGate and StrictPassGate are the minimum scores to leave the liveness step.
	PassGate       int `json:"pass_gate" yaml:"pass_gate"`
	StrictPassGate int `json:"strict_pass_gate" yaml:"strict_pass_gate"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Approve:         90,
		Reject:          70,
		AutoRejectFloor: 50,
		PassGate:        70,
		StrictPassGate:  90,
	}
}

// Validate enforces 0 ≤ floor ≤ reject ≤ approve ≤ 100 and gates within range.
func (t Thresholds) Validate() error {
	if t.AutoRejectFloor < 0 || t.Approve > 100 {
		return dErrors.New(dErrors.CodeValidation, "thresholds must be within 0-100")
	}
	if t.AutoRejectFloor > t.Reject || t.Reject > t.Approve {
		return dErrors.New(dErrors.CodeValidation, "thresholds must satisfy auto_reject_floor <= reject <= approve")
	}
	if t.PassGate < t.AutoRejectFloor || t.PassGate > 100 || t.StrictPassGate < t.PassGate || t.StrictPassGate > 100 {
		return dErrors.New(dErrors.CodeValidation, "pass gates must satisfy auto_reject_floor <= pass_gate <= strict_pass_gate <= 100")
	}
	return nil
}

// Gate returns the liveness pass gate for the face-match mode.
func (t Thresholds) Gate(strict bool) int {
	if strict {
		return t.StrictPassGate
	}
	return t.PassGate
}
