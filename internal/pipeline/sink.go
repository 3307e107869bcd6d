package pipeline

// Sink receives progress events as the orchestrator moves through
// stages. The progress tracker implements it; NopSink gives the bare
// variant, which runs identical stage logic without tracking.
type Sink interface {
	AddStep(scenarioID, name, detail, model string)
	CompleteCurrentStep(scenarioID, detail, status string)
	CompleteScenario(scenarioID string)
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) AddStep(string, string, string, string)     {}
func (NopSink) CompleteCurrentStep(string, string, string) {}
func (NopSink) CompleteScenario(string)                    {}
