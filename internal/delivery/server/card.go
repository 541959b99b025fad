package server

import "finbench/internal/a2a"

// Agent card identity.
const (
	AgentName    = "finance-multi-task-analyst"
	AgentVersion = "2.0.0"
	ArtifactName = "MultiTaskFinancialEvaluation"
)

// NewAgentCard describes the harness to A2A clients.
func NewAgentCard(url string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:               AgentName,
		Description:        "Multi-task evaluation of 10-K analysis: risk classification, business summary extraction and cross-section consistency, combined into a weighted score.",
		URL:                url,
		Version:            AgentVersion,
		ProtocolVersion:    a2a.ProtocolVersion,
		Capabilities:       a2a.Capabilities{Streaming: true},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text", "data"},
		Skills: []a2a.AgentSkill{{
			ID:          "multi-task-financial-analysis",
			Name:        "10-K Multi-Task Financial Analysis",
			Description: "Sends three analysis tasks drawn from one 10-K filing to the analyst agent and grades the answers against cached reference answers.",
			Tags:        []string{"finance", "multi-task", "risk-analysis", "business-summary", "consistency-check", "10-K", "benchmark"},
			Examples: []string{
				`{"participants": {"analyst": "http://localhost:9019/"}, "config": {"year": 2019}}`,
				`{"participants": {"analyst": "http://localhost:9019/"}, "config": {"year": 2020, "company_id": "320193"}}`,
			},
		}},
	}
}
