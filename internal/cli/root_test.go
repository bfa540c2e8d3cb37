package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kiiskristo/howdoyoufindme/internal/search"
)

const replayFrames = `{"type":"status","message":"Starting search"}
{"type":"status","message":"Analyzing industry keywords..."}
{"type":"task_complete","task":"keywords","data":{"category":"CRM Software","keywords":["crm","sales"],"competitors":["Salesforce"]}}
{"type":"status","message":"Evaluating market ranking position..."}
data: {"type":"task_complete","task":"ranking","data":{"ranking_position":"#4","market_context":{"market_size":"$60B","growth_projections":"13% CAGR"},"comparison_to_leaders":{"top_competitors":[{"company":"Salesforce","rank":1,"market_share":"22%"}],"summary":"Solid challenger"}}}
{"type":"complete","message":"Analysis complete."}
`

func exampleConfig(t *testing.T) string {
	t.Helper()
	configPath, err := filepath.Abs(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)
	require.FileExists(t, configPath)
	return configPath
}

func writeReplay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "howdoyoufindme")
}

func TestDoctorWithExampleConfig(t *testing.T) {
	out, err := execute(t, "doctor", "--config", exampleConfig(t))
	require.NoError(t, err)
	require.Contains(t, out, "Config OK")
	require.Contains(t, out, "http://localhost:8000")
	require.Contains(t, out, "Providers: 2, models: 2")
}

func TestDoctorPingsBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(server.Close)

	out, err := execute(t, "doctor", "--ping", "--config", exampleConfig(t), "--api-url", server.URL)
	require.NoError(t, err)
	require.Contains(t, out, server.URL)
	require.Contains(t, out, "Backend OK")

	server.Close()
	_, err = execute(t, "doctor", "--ping", "--config", exampleConfig(t), "--api-url", server.URL)
	require.ErrorContains(t, err, "backend unreachable")
}

func TestInvalidAPIURLFlag(t *testing.T) {
	_, err := execute(t, "doctor", "--config", exampleConfig(t), "--api-url", "ftp://nope")
	require.ErrorContains(t, err, "--api-url")
}

func TestSearchReplayRendersReport(t *testing.T) {
	out, err := execute(t, "search", "Acme CRM",
		"--config", exampleConfig(t),
		"--replay", writeReplay(t, replayFrames),
		"--stats",
	)
	require.NoError(t, err)

	require.Contains(t, out, "[1/4] Starting search")
	require.Contains(t, out, "[2/4] Analyzing industry keywords...")
	require.Contains(t, out, "[3/4] Evaluating market ranking position...")
	require.Contains(t, out, "[4/4] Analysis complete.")
	require.Contains(t, out, "Industry Analysis")
	require.Contains(t, out, "CRM Software")
	require.Contains(t, out, "crm, sales")
	require.Contains(t, out, "Market Position")
	require.Contains(t, out, "#4")
	require.Contains(t, out, "Salesforce - Rank 1, 22%")
	require.Contains(t, out, "Solid challenger")
	require.Contains(t, out, `searchrank_client_sessions_finished_total{outcome="complete"} 1`)
	require.Less(t, strings.Index(out, "Starting search"), strings.Index(out, "Industry Analysis"))
}

func TestSearchReplayYAML(t *testing.T) {
	out, err := execute(t, "search", "Acme CRM",
		"--config", exampleConfig(t),
		"--replay", writeReplay(t, replayFrames),
		"--format", "yaml",
	)
	require.NoError(t, err)
	require.NotContains(t, out, "[1/4]")

	var state search.SessionState
	require.NoError(t, yaml.Unmarshal([]byte(out), &state))
	require.Equal(t, "Acme CRM", state.Query)
	require.False(t, state.Loading)
	require.Equal(t, "CRM Software", state.KeywordResult.Category)
	require.Equal(t, "Salesforce", state.RankingResult.ComparisonToLeaders.TopCompetitors[0].Company)
}

func TestSearchReplayErrorFrameFails(t *testing.T) {
	out, err := execute(t, "search", "Acme",
		"--config", exampleConfig(t),
		"--replay", writeReplay(t, "{\"type\":\"status\",\"message\":\"Starting\"}\n{\"type\":\"error\",\"message\":\"quota exceeded\"}\n"),
		"--format", "json",
	)
	require.ErrorContains(t, err, "quota exceeded")
	require.Contains(t, out, `"error_message": "quota exceeded"`)
}

func TestSearchReplayWithoutTerminalFrame(t *testing.T) {
	_, err := execute(t, "search", "Acme",
		"--config", exampleConfig(t),
		"--replay", writeReplay(t, "{\"type\":\"status\",\"message\":\"Starting\"}\n"),
	)
	require.ErrorContains(t, err, search.ConnectionErrorMessage)
}

func TestSearchRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "search", "Acme", "--format", "xml")
	require.ErrorContains(t, err, "unknown format")
}
