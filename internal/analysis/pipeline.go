// Package analysis produces the search-rank event stream for one query by
// asking the configured models for a keyword breakdown and a market ranking.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kiiskristo/howdoyoufindme/internal/config"
	"github.com/kiiskristo/howdoyoufindme/internal/llm"
	"github.com/kiiskristo/howdoyoufindme/internal/logging"
	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc"
	"github.com/kiiskristo/howdoyoufindme/internal/search"
)

// Status messages; the client derives its progress step from their wording.
const (
	MsgStarted   = "Search started."
	MsgAnalyzing = "Analyzing industry keywords..."
	MsgRanking   = "Evaluating market ranking position..."
	MsgComplete  = "Analysis complete."
)

var errNoJSON = errors.New("model output contains no JSON object")

// Pipeline runs the two analysis stages against the models bound to the
// keywords and ranking roles.
type Pipeline struct {
	registry *llm.Registry
	cfg      config.AnalysisConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// New constructs a pipeline. metrics and logger may be nil.
func New(registry *llm.Registry, cfg config.AnalysisConfig, metrics *observability.Metrics, logger *zap.Logger) *Pipeline {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 90 * time.Second
	}
	if cfg.MaxCompetitors <= 0 {
		cfg.MaxCompetitors = 5
	}
	return &Pipeline{
		registry: registry,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logging.OrNop(logger),
	}
}

// Run starts the analysis for query and returns its events. The channel is
// closed after a complete or error event, or when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, query string) (<-chan rpc.Event, error) {
	if p.registry == nil {
		return nil, errors.New("analysis pipeline has no model registry")
	}

	out := make(chan rpc.Event, 8)
	go func() {
		defer close(out)
		start := time.Now()
		outcome := p.run(ctx, strings.TrimSpace(query), out)
		p.metrics.RecordAnalysisRun(outcome, time.Since(start))
		p.logger.Info("analysis finished",
			zap.String("query", query),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, query string, out chan<- rpc.Event) string {
	if query == "" {
		send(ctx, out, rpc.ErrorEvent("query is required"))
		return "invalid"
	}

	if !send(ctx, out, rpc.StatusEvent(MsgStarted)) {
		return "cancelled"
	}

	if !send(ctx, out, rpc.StatusEvent(MsgAnalyzing)) {
		return "cancelled"
	}
	kw, err := p.keywords(ctx, query)
	if err != nil {
		return p.fail(ctx, out, "keyword analysis failed", err)
	}
	ev, err := rpc.TaskEvent(rpc.TaskKeywords, kw)
	if err != nil {
		return p.fail(ctx, out, "encode keywords", err)
	}
	if !send(ctx, out, ev) {
		return "cancelled"
	}

	if !send(ctx, out, rpc.StatusEvent(MsgRanking)) {
		return "cancelled"
	}
	ranking, err := p.ranking(ctx, query, kw)
	if err != nil {
		return p.fail(ctx, out, "ranking analysis failed", err)
	}
	if ev, err = rpc.TaskEvent(rpc.TaskRanking, ranking); err != nil {
		return p.fail(ctx, out, "encode ranking", err)
	}
	if !send(ctx, out, ev) {
		return "cancelled"
	}

	if !send(ctx, out, rpc.CompleteEvent(MsgComplete)) {
		return "cancelled"
	}
	return "complete"
}

func (p *Pipeline) fail(ctx context.Context, out chan<- rpc.Event, prefix string, err error) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	p.logger.Warn(prefix, zap.Error(err))
	send(ctx, out, rpc.ErrorEvent(fmt.Sprintf("%s: %v", prefix, err)))
	return "error"
}

func (p *Pipeline) keywords(ctx context.Context, query string) (search.KeywordResult, error) {
	var kw search.KeywordResult
	err := p.ask(ctx, llm.RoleKeywords, keywordsSystemPrompt(), keywordsUserPrompt(query, p.cfg.MaxCompetitors), &kw)
	if err != nil {
		return search.KeywordResult{}, err
	}

	kw.Category = strings.TrimSpace(kw.Category)
	if kw.Category == "" {
		return search.KeywordResult{}, errors.New("model returned no category")
	}
	kw.Keywords = compact(kw.Keywords)
	if len(kw.Keywords) == 0 {
		return search.KeywordResult{}, errors.New("model returned no keywords")
	}
	kw.Competitors = compact(kw.Competitors)
	if len(kw.Competitors) > p.cfg.MaxCompetitors {
		kw.Competitors = kw.Competitors[:p.cfg.MaxCompetitors]
	}
	return kw, nil
}

func (p *Pipeline) ranking(ctx context.Context, query string, kw search.KeywordResult) (search.RankingResult, error) {
	var r search.RankingResult
	err := p.ask(ctx, llm.RoleRanking, rankingSystemPrompt(), rankingUserPrompt(query, kw, p.cfg.MaxCompetitors), &r)
	if err != nil {
		return search.RankingResult{}, err
	}

	r.RankingPosition = strings.TrimSpace(r.RankingPosition)
	if r.RankingPosition == "" {
		return search.RankingResult{}, errors.New("model returned no ranking position")
	}
	if top := r.ComparisonToLeaders.TopCompetitors; len(top) > p.cfg.MaxCompetitors {
		r.ComparisonToLeaders.TopCompetitors = top[:p.cfg.MaxCompetitors]
	}
	return r, nil
}

// ask sends one JSON-mode request to the model bound to role, bounded by the
// stage timeout, and decodes the first JSON object of the reply into dst.
func (p *Pipeline) ask(ctx context.Context, role, system, prompt string, dst any) error {
	provider, route, err := p.registry.ForRole(role)
	if err != nil {
		return err
	}

	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	p.metrics.RecordModelUsage(role, route.Name)
	resp, err := provider.Complete(stageCtx, llm.Request{
		Model:       route.Model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   route.MaxTokens,
		Temperature: route.Temperature,
		JSON:        true,
	})
	if err != nil {
		p.metrics.RecordModelFailure(role, route.Name)
		return err
	}

	p.logger.Debug("model replied",
		zap.String("role", role),
		zap.String("model", route.Name),
		zap.Int("tokens", resp.Usage.Total()),
	)

	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal(raw, dst)
	}
	if err != nil {
		p.metrics.RecordModelFailure(role, route.Name)
		p.logger.Debug("unparseable model output", zap.String("role", role), zap.String("content", resp.Content))
		return fmt.Errorf("decode %s response: %w", role, err)
	}
	return nil
}

// extractJSON returns the first JSON object in text, skipping code fences and prose.
func extractJSON(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, errNoJSON
	}
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func send(ctx context.Context, out chan<- rpc.Event, ev rpc.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}
