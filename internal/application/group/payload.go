package group

// RiskFlagPayload is the wire payload for riskFlagChanged events.
type RiskFlagPayload struct {
	GroupID string `json:"group_id"`
	AtRisk  bool   `json:"at_risk"`
}
