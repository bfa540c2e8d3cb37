package search

// KeywordResult is the payload of the "keywords" task.
type KeywordResult struct {
	Category    string   `json:"category" yaml:"category"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Competitors []string `json:"competitors,omitempty" yaml:"competitors,omitempty"`
}

// RankingResult is the payload of the "ranking" task.
type RankingResult struct {
	RankingPosition     string              `json:"ranking_position" yaml:"ranking_position"`
	MarketContext       MarketContext       `json:"market_context" yaml:"market_context"`
	ComparisonToLeaders ComparisonToLeaders `json:"comparison_to_leaders" yaml:"comparison_to_leaders"`
}

// MarketContext describes the market the queried company competes in.
type MarketContext struct {
	MarketSize        string `json:"market_size" yaml:"market_size"`
	GrowthProjections string `json:"growth_projections" yaml:"growth_projections"`
}

// ComparisonToLeaders lists the market leaders and a short verdict.
type ComparisonToLeaders struct {
	TopCompetitors []TopCompetitor `json:"top_competitors" yaml:"top_competitors"`
	Summary        string          `json:"summary" yaml:"summary"`
}

// TopCompetitor is one ranked market leader.
type TopCompetitor struct {
	Company     string `json:"company" yaml:"company"`
	Rank        int    `json:"rank" yaml:"rank"`
	MarketShare string `json:"market_share" yaml:"market_share"`
}
