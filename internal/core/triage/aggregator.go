package triage

import "github.com/IANDYI/vitals-service/internal/core/domain"

// Aggregate folds the findings of one intake into a risk assessment.
// Normal findings are dropped. Status is the worst remaining severity and does
// not depend on order; the retained findings keep their input order.
func (p Policy) Aggregate(findings []domain.Finding) *domain.RiskAssessment {
	retained := make([]domain.Finding, 0, len(findings))
	status := domain.SeverityNormal

	for _, f := range findings {
		if f.Severity.Rank() == 0 {
			continue
		}
		retained = append(retained, f)
		if f.Severity.Rank() > status.Rank() {
			status = f.Severity
		}
	}

	return &domain.RiskAssessment{
		Status:    status,
		RiskScore: float64(len(retained)) * p.ScorePerFinding,
		Findings:  retained,
	}
}

// Assess runs the classifiers, the pattern analyzer for kinds that have one,
// and aggregates. recent is ignored for kinds without pattern analysis.
func (p Policy) Assess(r *domain.Reading, recent []*domain.Reading) *domain.RiskAssessment {
	findings := p.Classify(r)
	if r.Kind.SupportsPatternAnalysis() {
		if f := AnalyzePattern(recent, r); f != nil {
			findings = append(findings, *f)
		}
	}
	return p.Aggregate(findings)
}
