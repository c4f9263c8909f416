package analytics

import "careai/internal/domain"

// Advisory messages attached to each risk level.
const (
	MsgRiskUnknown  = "Insufficient data for prediction"
	MsgRiskHigh     = "Potential cognitive decline detected. Consider consulting a healthcare professional."
	MsgRiskModerate = "Some indicators of potential cognitive changes. Continue monitoring."
	MsgRiskLow      = "No significant indicators of cognitive decline."
)

// PredictDecline scores decline risk with the default thresholds.
func PredictDecline(samples []domain.PerformanceSample) domain.RiskAssessment {
	return defaultEngine.PredictDecline(samples)
}

// PredictDecline compares the most recent RiskWindow samples with the
// earliest ones: risk = -(score delta) + (error delta). It is a fixed-threshold
// heuristic, not a trained model.
func (e *Engine) PredictDecline(samples []domain.PerformanceSample) domain.RiskAssessment {
	if len(samples) < e.cfg.MinRiskSamples {
		return domain.RiskAssessment{Level: domain.RiskUnknown, Confidence: 0, Message: MsgRiskUnknown}
	}

	ordered := chronological(samples)
	w := min(e.cfg.RiskWindow, len(ordered))
	first, last := ordered[:w], ordered[len(ordered)-w:]

	scoreTrend := mean(values(last, domain.MetricScore)) - mean(values(first, domain.MetricScore))
	errorTrend := mean(values(last, domain.MetricErrors)) - mean(values(first, domain.MetricErrors))
	score := -scoreTrend + errorTrend

	switch {
	case score > e.cfg.HighRiskThreshold:
		return domain.RiskAssessment{Level: domain.RiskHigh, Confidence: e.cfg.HighRiskConfidence, Message: MsgRiskHigh}
	case score > e.cfg.ModerateRiskThreshold:
		return domain.RiskAssessment{Level: domain.RiskModerate, Confidence: e.cfg.ModerateRiskConfidence, Message: MsgRiskModerate}
	default:
		return domain.RiskAssessment{Level: domain.RiskLow, Confidence: e.cfg.LowRiskConfidence, Message: MsgRiskLow}
	}
}
