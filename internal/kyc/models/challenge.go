package models

import (
	"fmt"
	"math/rand/v2"
)

type ChallengeKind string

const (
	ChallengeCode    ChallengeKind = "code"
	ChallengeGesture ChallengeKind = "gesture"
)

// Gestures the customer may be asked to perform in the selfie.
var Gestures = []string{
	"thumbs up",
	"peace sign",
	"open palm facing the camera",
	"index finger pointing up",
	"OK sign",
}

// Challenge is chosen once per session and shown for every liveness attempt.
type Challenge struct {
	Kind    ChallengeKind `json:"kind"`
	Code    string        `json:"code"`
	Gesture string        `json:"gesture,omitempty"`
}

// NewChallenge draws a 4-digit code and, when asked, a hand gesture.
func NewChallenge(r *rand.Rand, withGesture bool) Challenge {
	c := Challenge{Kind: ChallengeCode, Code: fmt.Sprintf("%04d", 1000+r.IntN(9000))}
	if withGesture {
		c.Kind = ChallengeGesture
		c.Gesture = Gestures[r.IntN(len(Gestures))]
	}
	return c
}

// Instruction is the sentence shown to the customer and passed to the model.
func (c Challenge) Instruction() string {
	if c.Kind == ChallengeGesture {
		return fmt.Sprintf("hold up the code %s and make a %s", c.Code, c.Gesture)
	}
	return fmt.Sprintf("hold up the code %s", c.Code)
}
