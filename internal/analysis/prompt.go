package analysis

import (
	"fmt"
	"strings"

	"github.com/kiiskristo/howdoyoufindme/internal/search"
)

func keywordsSystemPrompt() string {
	return strings.TrimSpace(`
You are a market research analyst. Given a company or product name, identify the industry it competes in and the search keywords customers use to find businesses like it. Return a JSON object matching:
{"category":"industry category","keywords":["keyword", "..."],"competitors":["company", "..."]}
Return only the JSON object.`)
}

func keywordsUserPrompt(query string, maxCompetitors int) string {
	return fmt.Sprintf("Company or product: %s\n\nList up to 10 keywords and up to %d direct competitors.", query, maxCompetitors)
}

func rankingSystemPrompt() string {
	return strings.TrimSpace(`
You are a market research analyst. Estimate where a company ranks in its market and how it compares to the leaders. Return a JSON object matching:
{"ranking_position":"e.g. #3 or Top 10","market_context":{"market_size":"...","growth_projections":"..."},"comparison_to_leaders":{"top_competitors":[{"company":"...","rank":1,"market_share":"..."}],"summary":"one or two sentences"}}
Return only the JSON object.`)
}

func rankingUserPrompt(query string, kw search.KeywordResult, maxCompetitors int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company or product: %s\n", query)
	fmt.Fprintf(&b, "Industry: %s\n", kw.Category)
	if len(kw.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(kw.Keywords, ", "))
	}
	if len(kw.Competitors) > 0 {
		fmt.Fprintf(&b, "Known competitors: %s\n", strings.Join(kw.Competitors, ", "))
	}
	fmt.Fprintf(&b, "\nList at most %d top competitors.", maxCompetitors)
	return b.String()
}
