package enrich

// Status classifies the result of one enrichment call. An empty result can
// mean either "nothing relevant" or "service exhausted retries"; the status
// keeps those apart in logs without changing the newsletter content contract.
type Status string

const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

// Outcome carries the status of one enrichment call alongside its content.
type Outcome struct {
	Status Status
	Reason string
}

func Found() Outcome {
	return Outcome{Status: StatusFound}
}

func NotFound() Outcome {
	return Outcome{Status: StatusNotFound}
}

func Failed(reason string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason}
}
