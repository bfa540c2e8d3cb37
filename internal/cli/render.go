package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/search"
)

// renderer writes search output; styles degrade to plain text when out is not a terminal.
type renderer struct {
	out io.Writer

	section lipgloss.Style
	label   lipgloss.Style
	step    lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

func newRenderer(out io.Writer) *renderer {
	lg := lipgloss.NewRenderer(out)
	return &renderer{
		out: out,
		section: lg.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")),
		label: lg.NewStyle().
			Foreground(lipgloss.Color("243")),
		step: lg.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true),
		failure: lg.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		muted: lg.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
	}
}

func (r *renderer) statusLine(step search.Step, msg string) {
	fmt.Fprintf(r.out, "%s %s\n", r.step.Render(fmt.Sprintf("[%d/%d]", step, search.MaxStep)), msg)
}

func (r *renderer) field(name, value string) {
	if strings.TrimSpace(value) == "" {
		value = r.muted.Render("n/a")
	}
	fmt.Fprintf(r.out, "  %s %s\n", r.label.Render(name+":"), value)
}

// report prints the final state as the two result sections.
func (r *renderer) report(s search.SessionState) {
	if s.HasError() {
		fmt.Fprintln(r.out, r.failure.Render("Error: "+s.ErrorMessage))
	}

	if kw := s.KeywordResult; kw != nil {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.section.Render("Industry Analysis"))
		r.field("Category", kw.Category)
		r.field("Keywords", strings.Join(kw.Keywords, ", "))
		if len(kw.Competitors) > 0 {
			r.field("Main competitors", strings.Join(kw.Competitors, ", "))
		}
	}

	if rk := s.RankingResult; rk != nil {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.section.Render("Market Position"))
		r.field("Ranking", rk.RankingPosition)
		r.field("Market size", rk.MarketContext.MarketSize)
		r.field("Growth", rk.MarketContext.GrowthProjections)
		if top := rk.ComparisonToLeaders.TopCompetitors; len(top) > 0 {
			fmt.Fprintf(r.out, "  %s\n", r.label.Render("Top competitors:"))
			for _, c := range top {
				fmt.Fprintf(r.out, "    %s - Rank %d, %s\n", c.Company, c.Rank, c.MarketShare)
			}
		}
		r.field("Summary", rk.ComparisonToLeaders.Summary)
	}
}

func (r *renderer) writeJSON(s search.SessionState) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func (r *renderer) writeYAML(s search.SessionState) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// stats prints every non-zero client counter and gauge from the metrics registry.
func (r *renderer) stats(m *observability.Metrics) error {
	families, err := m.Registry().Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "searchrank_client_") {
			continue
		}
		for _, metric := range mf.GetMetric() {
			value := metric.GetCounter().GetValue() + metric.GetGauge().GetValue()
			if value == 0 {
				continue
			}
			name := mf.GetName()
			for _, lp := range metric.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("  %s %g", name, value))
		}
	}
	sort.Strings(lines)

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.section.Render("Stream stats"))
	for _, l := range lines {
		fmt.Fprintln(r.out, l)
	}
	return nil
}

// progress prints each new status message once, prefixed with the step it was received in.
type progress struct {
	r *renderer

	mu      sync.Mutex
	session string
	printed int
}

func newProgress(r *renderer) *progress {
	return &progress{r: r}
}

func (p *progress) update(s search.SessionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.SessionID != p.session {
		p.session = s.SessionID
		p.printed = 0
	}
	if p.printed > len(s.StatusMessages) {
		return
	}
	step := s.Step()
	for _, msg := range s.StatusMessages[p.printed:] {
		p.r.statusLine(step, msg)
	}
	p.printed = len(s.StatusMessages)
}
