package decision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"vericore/internal/kyc/models"
	dErrors "vericore/pkg/domain-errors"
)

func TestDefaultThresholdsArePinned(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, 90, th.Approve)
	assert.Equal(t, 70, th.Reject)
	assert.Equal(t, 50, th.AutoRejectFloor)
	assert.Equal(t, 70, th.Gate(false))
	assert.Equal(t, 90, th.Gate(true))
	assert.NoError(t, th.Validate())
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name   string
		in     Input
		status models.Status
		risk   models.RiskLevel
		reason Reason
	}{
		{"clean high score approves", Input{Score: 95, LivenessConfirmed: true}, models.StatusApproved, models.RiskLow, ReasonAllChecksPassed},
		{"low score rejects", Input{Score: 65, LivenessConfirmed: true}, models.StatusRejected, models.RiskHigh, ReasonLowFaceMatch},
		{"middle score flags", Input{Score: 80, LivenessConfirmed: true}, models.StatusFlagged, models.RiskMedium, ReasonBorderlineScore},
		{"approve boundary is exclusive", Input{Score: 90, LivenessConfirmed: true}, models.StatusFlagged, models.RiskMedium, ReasonBorderlineScore},
		{"reject boundary is exclusive", Input{Score: 70, LivenessConfirmed: true}, models.StatusFlagged, models.RiskMedium, ReasonBorderlineScore},
		{"mismatch blocks approval", Input{Score: 99, LivenessConfirmed: true, Mismatches: 1}, models.StatusFlagged, models.RiskMedium, ReasonMismatches},
		{"unconfirmed liveness blocks approval", Input{Score: 99}, models.StatusFlagged, models.RiskMedium, ReasonLivenessFailed},
		{"low score rejects even with mismatches", Input{Score: 40, Mismatches: 3}, models.StatusRejected, models.RiskHigh, ReasonLowFaceMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Decide(th, tt.in)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.risk, out.Risk)
			assert.Equal(t, tt.reason, out.Reason)
		})
	}
}

func TestDecide_IsPure(t *testing.T) {
	th := DefaultThresholds()
	in := Input{Score: 83, LivenessConfirmed: true, Mismatches: 0}
	first := Decide(th, in)
	for range 100 {
		assert.Equal(t, first, Decide(th, in))
	}
}

func TestDecide_CustomThresholds(t *testing.T) {
	th := Thresholds{Approve: 80, Reject: 60, AutoRejectFloor: 40, PassGate: 60, StrictPassGate: 80}
	assert.Equal(t, models.StatusApproved, Decide(th, Input{Score: 85, LivenessConfirmed: true}).Status)
	assert.Equal(t, models.StatusFlagged, Decide(th, Input{Score: 65, LivenessConfirmed: true}).Status)
}

func TestGate(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name      string
		score     int
		confirmed bool
		strict    bool
		want      Verdict
	}{
		{"passes normal gate", 75, true, false, VerdictPass},
		{"strict gate needs 90", 85, true, true, VerdictRetry},
		{"strict gate inclusive", 90, true, true, VerdictPass},
		{"unconfirmed challenge retries", 99, false, false, VerdictRetry},
		{"below floor auto rejects", 49, true, false, VerdictAutoReject},
		{"floor is exclusive", 50, false, false, VerdictRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Gate(th, tt.score, tt.confirmed, tt.strict))
		})
	}
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{0.92, 92},
		{92, 92},
		{0.5, 50},
		{1, 1},
		{0.999, 100},
		{0, 0},
		{-3, 0},
		{150, 100},
		{87.6, 88},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeScore(tt.raw), "raw=%v", tt.raw)
	}
}

func TestScoreOfOneIsNearZero(t *testing.T) {
	th := DefaultThresholds()
	score := NormalizeScore(1)

	assert.Equal(t, VerdictAutoReject, Gate(th, score, true, true))
	out := Decide(th, Input{Score: score, LivenessConfirmed: true})
	assert.Equal(t, models.StatusRejected, out.Status)
	assert.Equal(t, models.RiskHigh, out.Risk)
}

func TestThresholdsValidate(t *testing.T) {
	bad := []Thresholds{
		{Approve: 60, Reject: 70, AutoRejectFloor: 50, PassGate: 70, StrictPassGate: 90},
		{Approve: 90, Reject: 40, AutoRejectFloor: 50, PassGate: 70, StrictPassGate: 90},
		{Approve: 120, Reject: 70, AutoRejectFloor: 50, PassGate: 70, StrictPassGate: 90},
		{Approve: 90, Reject: 70, AutoRejectFloor: 50, PassGate: 95, StrictPassGate: 90},
	}
	for _, th := range bad {
		err := th.Validate()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "%+v", th)
	}
}
