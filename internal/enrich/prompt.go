package enrich

import (
	"fmt"
	"strings"
)

// Enrichment mode selects the prompt variant and the response shape.
const (
	ModePerTicker = "per_ticker"
	ModeCompiled  = "compiled"
)

const perTickerPromptTemplate = `You are a financial analyst. Carefully review the following newsletter content and extract every story related to the stock %s.

Newsletter content is given to you in the format of:
Author: <Name of organization>
Story: <Full text of the story>

For each related story, copy the exact wording of the original as much as possible and cite the author (ex//. According to <Author>, <Story>). DO NOT MAKE UP ANYTHING. ONLY USE THE INFORMATION PROVIDED TO YOU. Be conservative and avoid hallucinating connections.

CRITICAL FORMATTING INFORMATION:
Return ONLY a raw JSON array, with no markdown fences and no other text, in the following format:

[
  {
    "title": "short headline for the story",
    "body": "the story text, citing the author",
    "explanation": "one sentence on why this relates to %s",
    "confidence": 0
  }
]

The confidence field is an integer from 0 to 100.
If there are no related stories, YOU MUST RETURN AN EMPTY ARRAY: []

Here is the newsletter content:

%s
`

const compiledPromptTemplate = `You are a financial analyst. Your job is to carefully review the following newsletters, and create a single newsletter only containing information related to the attached stocks.

Newsletters are given to you in the format of:
Author: <Name of organization>
Story: <Full text of the story>

Stocks are given to you in the format of:
[NVDA, TSLA, AAPL]

Within the newsletter, each stock must have its own section of information. Try to copy the exact wording of the original story as much as possible. Cite the author of the original story when adding it to the newsletter (ex//. According to <Author>, <Story>). Make sure the stories flow naturally and are not forced. DO NOT ADD A DUPLICATE STORY TWICE. If a story pertains to multiple stocks create one section for both of the stocks.

The section must be in the format of:

<Stock symbol>
<Story>

DO NOT MAKE UP ANYTHING. ONLY USE THE INFORMATION PROVIDED TO YOU.
If there is no information related to a stock, DO NOT INCLUDE IT IN THE NEWSLETTER.
If there is no information related to any of the stocks, DO NOT INCLUDE ANYTHING IN THE NEWSLETTER BODY.

CRITICAL FORMATTING INFORMATION:
Make up a title for the newsletter based on what the stories are about, and return ONLY a raw JSON object, with no markdown fences and no other text, in the following format:

{
  "title": "title of the newsletter",
  "body": "newsletter body"
}

If there are no related stories, YOU MUST GIVE BACK AN EMPTY BODY:

{
  "title": "title of the newsletter",
  "body": ""
}

Be conservative and avoid hallucinating connections.

Here are the stocks to check against:
[%s]

Here is the newsletter content:

%s
`

// buildPerTickerPrompt renders the per-ticker prompt for a single symbol.
func buildPerTickerPrompt(ticker, stories string) string {
	return fmt.Sprintf(perTickerPromptTemplate, ticker, ticker, stories)
}

// buildCompiledPrompt renders the compiled-newsletter prompt for the full
// deduplicated ticker set.
func buildCompiledPrompt(tickers []string, stories string) string {
	return fmt.Sprintf(compiledPromptTemplate, strings.Join(tickers, ", "), stories)
}
