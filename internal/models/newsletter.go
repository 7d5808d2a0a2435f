package models

// TickerStory is one enrichment-reported story relevant to a ticker.
// Confidence and explanation come straight from the enrichment service and
// are passed through unvalidated.
type TickerStory struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Explanation string `json:"explanation"`
	Confidence  int    `json:"confidence"`
}

// TickerSection groups the stories found for one ticker. Sections with no
// stories are filtered out before rendering.
type TickerSection struct {
	Ticker  string        `json:"ticker"`
	Stories []TickerStory `json:"stories"`
}

// CompiledNewsletter is the terminal artifact handed to rendering. An empty
// body means "no relevant stories" and is a valid outcome, not an error.
type CompiledNewsletter struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// IsEmpty reports whether the newsletter carries no relevant content.
func (n *CompiledNewsletter) IsEmpty() bool {
	return n.Body == ""
}
