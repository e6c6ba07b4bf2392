package capture

import (
	"time"

	"vericore/internal/kyc/decision"
	"vericore/internal/kyc/models"
	"vericore/internal/kyc/recognition"
)

// Effect is work the reducer asks the Orchestrator to perform.
type Effect interface {
	effect()
}

type AcquireCamera struct {
	Facing Facing
}

type ReleaseCamera struct{}

// ExtractDocument issues one extraction call; its result must come back as
// DocumentChecked with the same Attempt.
type ExtractDocument struct {
	Attempt uint64
	Request recognition.ExtractionRequest
}

// MatchFace issues one face-match call; its result must come back as
// LivenessChecked with the same Attempt.
type MatchFace struct {
	Attempt uint64
	Request recognition.FaceMatchRequest
}

// StartCooldown schedules a Tick at Until.
type StartCooldown struct {
	Until time.Time
}

// SessionCompleted hands the finalized session to the review side.
type SessionCompleted struct {
	Session *models.Session
	Outcome decision.Outcome
}

func (AcquireCamera) effect()    {}
func (ReleaseCamera) effect()    {}
func (ExtractDocument) effect()  {}
func (MatchFace) effect()        {}
func (StartCooldown) effect()    {}
func (SessionCompleted) effect() {}
