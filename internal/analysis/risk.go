package analysis

import (
	"fmt"
	"math"
)

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFromScore buckets a score: Low <= 20 < Medium <= 50 < High <= 100
// < Critical.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score > 100:
		return RiskCritical
	case score > 50:
		return RiskHigh
	case score > 20:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskAssessment is the risk profile of one node.
type RiskAssessment struct {
	NodeID               string    `json:"node_id"`
	DirectCallers        int       `json:"direct_callers"`
	TransitiveDependents int       `json:"transitive_dependents"`
	ComplexityDelta      int       `json:"complexity_delta"`
	Score                float64   `json:"risk_score"`
	Level                RiskLevel `json:"risk_level"`
}

// RiskOf scores how risky a change to the target is:
//
//	risk = 2*direct_callers + 0.5*transitive_dependents + 3*|complexity delta|
//
// Direct callers come from incoming calls edges; transitive dependents from
// unrestricted incoming reachability.
func (a *Analyzer) RiskOf(target string, complexityDelta int) (*RiskAssessment, error) {
	id, err := a.ResolveNode(target)
	if err != nil {
		return nil, err
	}

	eng := a.engine.Engine()
	if eng == nil {
		return nil, fmt.Errorf("graph not loaded")
	}

	directCallers := len(eng.Ancestors(id, []string{"calls"}, 1))
	transitive := len(eng.Ancestors(id, nil, 0))

	score := float64(directCallers)*2.0 +
		float64(transitive)*0.5 +
		math.Abs(float64(complexityDelta))*3.0

	return &RiskAssessment{
		NodeID:               id,
		DirectCallers:        directCallers,
		TransitiveDependents: transitive,
		ComplexityDelta:      complexityDelta,
		Score:                score,
		Level:                RiskLevelFromScore(score),
	}, nil
}
