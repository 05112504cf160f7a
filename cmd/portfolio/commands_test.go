package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/portfolio/internal/config"
	"github.com/hyperengineering/portfolio/internal/credential"
	"github.com/hyperengineering/portfolio/internal/devstore"
	"github.com/hyperengineering/portfolio/internal/store"
	"github.com/hyperengineering/portfolio/internal/types"
)

// syncBuffer is a bytes.Buffer safe for the devstore and the CLI to log into concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolateEnv points config at a missing file and clears the variables that
// would change command behaviour.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORTFOLIO_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PORTFOLIO_INSIGHT_PROVIDER", config.ProviderNone)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PORTFOLIO_REMOTE_API_KEY", "")
	t.Setenv("PORTFOLIO_REMOTE_MAX_RETRIES", "0")
	t.Setenv("PORTFOLIO_ANALYTICS_SOURCE", "")
	t.Setenv("PORTFOLIO_EXPORT_BUCKET", "")
	t.Setenv("PORTFOLIO_LOG_LEVEL", "error")
}

// useMemoryKeyring swaps the credential store for an in-memory keyring.
func useMemoryKeyring(t *testing.T, items ...keyring.Item) keyring.Keyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(items)
	old := newCredentialStore
	newCredentialStore = func() *credential.Store {
		return credential.NewStoreWithOpener(func() (keyring.Keyring, error) { return ring, nil })
	}
	t.Cleanup(func() { newCredentialStore = old })
	return ring
}

// startDevstore serves an in-memory reference store and returns its API root.
func startDevstore(t *testing.T) string {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	srv := httptest.NewServer(devstore.NewServer(st).Router())
	t.Cleanup(func() {
		srv.Close()
		st.Close()
	})
	return srv.URL + devstore.BasePath
}

// resetFlags restores every flag to its default. Cobra parses into
// package-level variables and pflag never clears Changed, so state would
// leak between executions otherwise.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCmd runs the root command with args and captured output.
func executeCmd(t *testing.T, stdin io.Reader, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	resetFlags(rootCmd)
	oldLogger := slog.Default()
	defer slog.SetDefault(oldLogger)

	outBuf := new(bytes.Buffer)
	errBuf := &syncBuffer{}

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)
	if stdin != nil {
		rootCmd.SetIn(stdin)
	}

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)
	rootCmd.SetIn(nil)

	return outBuf.String(), errBuf.String(), err
}

// run executes a command against remoteURL and fails the test on error.
func run(t *testing.T, remoteURL string, args ...string) string {
	t.Helper()
	out, stderr, err := executeCmd(t, nil, append(args, "--remote", remoteURL)...)
	require.NoError(t, err, "%v failed\nstderr: %s", args, stderr)
	return out
}

// runJSON executes a command against remoteURL and decodes its output into v.
func runJSON(t *testing.T, remoteURL string, v any, args ...string) {
	t.Helper()
	out := run(t, remoteURL, args...)
	require.NoError(t, json.Unmarshal([]byte(out), v), "decode %v output:\n%s", args, out)
}

func createProject(t *testing.T, remoteURL string, args ...string) types.Project {
	t.Helper()
	var p types.Project
	runJSON(t, remoteURL, &p, append([]string{"projects", "create", "--json"}, args...)...)
	return p
}

type projectList struct {
	Projects []types.Project `json:"projects"`
	Total    int             `json:"total"`
}

func listProjects(t *testing.T, remoteURL string, args ...string) projectList {
	t.Helper()
	var list projectList
	runJSON(t, remoteURL, &list, append([]string{"projects", "list", "--json"}, args...)...)
	return list
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func TestProjects_Lifecycle(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	out := run(t, remoteURL, "projects", "create", "--name", "Apollo", "--start", "2025-01-10")
	assert.Contains(t, out, `Created project "Apollo"`)

	list := listProjects(t, remoteURL)
	require.Equal(t, 1, list.Total)
	require.Len(t, list.Projects, 1)
	p := list.Projects[0]
	assert.Equal(t, "Apollo", p.Name)
	assert.Equal(t, types.StatusInProgress, p.Status, "status should default to in_progress")

	run(t, remoteURL, "projects", "update", p.ID, "--status", "completed", "--end", "2025-03-01")

	var got types.Project
	runJSON(t, remoteURL, &got, "projects", "get", p.ID, "--json")
	assert.Equal(t, types.StatusCompleted, got.Status)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2025-03-01", got.EndDate.String())
	assert.Equal(t, "Apollo", got.Name, "update without --name changed the name")

	out = run(t, remoteURL, "projects", "delete", p.ID)
	assert.Contains(t, out, "Deleted project "+p.ID)

	out = run(t, remoteURL, "projects", "list")
	assert.Contains(t, out, "No projects found.")
}

func TestProjects_ListTableAndStatusFilter(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	createProject(t, remoteURL, "--name", "Apollo", "--start", "2025-01-10")
	createProject(t, remoteURL, "--name", "Gemini", "--status", "completed", "--start", "2025-01-10", "--end", "2025-02-01")

	out := run(t, remoteURL, "projects", "list")
	for _, want := range []string{"NAME", "Apollo", "Gemini", "In Progress", "Completed"} {
		assert.Contains(t, out, want)
	}

	list := listProjects(t, remoteURL, "--status", "completed")
	assert.Equal(t, 1, list.Total)
	if assert.Len(t, list.Projects, 1) {
		assert.Equal(t, "Gemini", list.Projects[0].Name)
	}

	_, _, err := executeCmd(t, nil, "projects", "list", "--status", "paused", "--remote", remoteURL)
	assert.Error(t, err, "unknown status")
}

func TestProjects_CreateValidationFailsBeforeNetwork(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)

	// Nothing listens here; validation must reject first.
	_, _, err := executeCmd(t, nil, "projects", "create", "--name", "ab", "--start", "2025-01-10",
		"--remote", "http://127.0.0.1:1/api")
	require.Error(t, err)
	assert.Equal(t, "create project: The project name must be at least 3 characters long (fix: --name)", err.Error())
}

func TestProjects_EndBeforeStartNamesBothDateFlags(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)

	_, _, err := executeCmd(t, nil, "projects", "create", "--name", "Apollo",
		"--start", "2025-06-01", "--end", "2025-05-01", "--remote", "http://127.0.0.1:1/api")
	require.Error(t, err)
	assert.Equal(t, "create project: The end date must be after the start date (fix: --start, --end)", err.Error())
}

func TestProjects_CreateDuplicateNameReportsRemoteMessage(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	createProject(t, remoteURL, "--name", "Apollo", "--start", "2025-01-10")

	_, _, err := executeCmd(t, nil, "projects", "create", "--name", "apollo", "--start", "2025-01-10", "--remote", remoteURL)
	require.Error(t, err)
	assert.Equal(t, "create project: Project already exists. (fields: name)", err.Error())
}

func TestProjects_InvalidDateFlag(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)

	_, _, err := executeCmd(t, nil, "projects", "create", "--name", "Apollo", "--start", "01/10/2025")
	assert.ErrorContains(t, err, "--start")
}

func TestPredict(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	createProject(t, remoteURL, "--name", "Apollo", "--start", "2025-01-10", "--end", futureDate(60))
	createProject(t, remoteURL, "--name", "Gemini", "--start", "2025-01-10", "--end", "2025-02-01")
	createProject(t, remoteURL, "--name", "Mercury", "--status", "completed", "--start", "2025-01-10", "--end", "2025-02-01")

	var result struct {
		Predictions []types.Prediction `json:"predictions"`
		Total       int                `json:"total"`
	}
	runJSON(t, remoteURL, &result, "predict", "--json")
	require.Equal(t, 2, result.Total, "in-progress projects only")
	require.Len(t, result.Predictions, 2)
	assert.Equal(t, "Gemini", result.Predictions[0].ProjectName, "most urgent first")
	assert.Equal(t, types.ConfidenceHigh, result.Predictions[1].Confidence)

	out := run(t, remoteURL, "predict", "--overdue")
	assert.Contains(t, out, "Gemini")
	assert.NotContains(t, out, "Apollo")
	assert.Contains(t, out, "days overdue")
}

func TestInsights_FallbackWithoutProvider(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	createProject(t, remoteURL, "--name", "Apollo", "--start", "2025-01-10")

	var ins types.Insight
	runJSON(t, remoteURL, &ins, "insights", "--json")
	assert.Equal(t, types.InsightSourceFallback, ins.Source)
	assert.NotEmpty(t, ins.Message)
	assert.LessOrEqual(t, len(ins.Recommendations), 3)

	out := run(t, remoteURL, "insights")
	assert.Contains(t, out, "Source: fallback (unavailable)")
}

func TestInsights_EmptyPortfolio(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	var ins types.Insight
	runJSON(t, remoteURL, &ins, "insights", "--json")
	assert.Equal(t, types.InsightSourceEmpty, ins.Source)
}

func TestAnalytics_GraphicsLocalMatchesRemote(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	createProject(t, remoteURL, "--name", "Apollo", "--start", "2025-01-10")
	createProject(t, remoteURL, "--name", "Gemini", "--start", "2025-01-10")
	createProject(t, remoteURL, "--name", "Mercury", "--status", "completed", "--start", "2025-01-10", "--end", "2025-02-01")

	type graphicsOut struct {
		Source   string             `json:"source"`
		Graphics types.GraphicsData `json:"graphics"`
	}

	var remote, local graphicsOut
	runJSON(t, remoteURL, &remote, "analytics", "graphics", "--json")
	runJSON(t, remoteURL, &local, "analytics", "graphics", "--source", "local", "--json")

	assert.Equal(t, "remote", remote.Source)
	assert.Equal(t, "local", local.Source)
	assert.Equal(t, 3, remote.Graphics.TotalProjects)
	assert.Equal(t, 2, remote.Graphics.InProgressProjects)
	assert.Equal(t, remote.Graphics.TotalProjects, local.Graphics.TotalProjects)
	assert.Equal(t, remote.Graphics.CompletedProjects, local.Graphics.CompletedProjects)

	_, _, err := executeCmd(t, nil, "analytics", "graphics", "--source", "cloud", "--remote", remoteURL)
	assert.Error(t, err, "unknown analytics source")
}

func TestAnalytics_DistributionTimelineRecent(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	createProject(t, remoteURL, "--name", "Apollo", "--status", "completed", "--start", "2025-01-15", "--end", "2025-03-20")
	createProject(t, remoteURL, "--name", "Gemini", "--start", "2025-01-10")

	out := run(t, remoteURL, "analytics", "distribution")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Total")

	var timeline struct {
		Timeline []types.TimelinePoint `json:"timeline"`
	}
	runJSON(t, remoteURL, &timeline, "analytics", "timeline", "--json")
	require.NotEmpty(t, timeline.Timeline)
	assert.Equal(t, "2025-01", timeline.Timeline[0].Month)
	assert.Equal(t, 2, timeline.Timeline[0].Started)

	out = run(t, remoteURL, "analytics", "recent", "--limit", "1")
	assert.Contains(t, out, "Gemini")
	assert.NotContains(t, out, "Apollo")
}

func TestAnalytics_Project(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	p := createProject(t, remoteURL, "--name", "Apollo", "--status", "completed", "--start", "2025-01-10", "--end", "2025-02-01")

	var res types.AnalysisResponse
	runJSON(t, remoteURL, &res, "analytics", "project", p.ID, "--json")
	assert.Equal(t, "Apollo was completed on 2025-02-01.", res.Summary)
	assert.Equal(t, 1, res.TotalProjects)

	_, _, err := executeCmd(t, nil, "analytics", "project", "missing", "--remote", remoteURL)
	assert.ErrorContains(t, err, "Project not found.")
}

func TestReport_PrintsAndExports(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)
	remoteURL := startDevstore(t)

	createProject(t, remoteURL, "--name", "Apollo", "--start", "2025-01-10")

	var r types.Report
	runJSON(t, remoteURL, &r, "report")
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 1, r.Distribution.Total)
	assert.Len(t, r.Predictions, 1)
	assert.Len(t, r.Recent, 1)

	dir := t.TempDir()
	var exported struct {
		ID       string `json:"id"`
		Location string `json:"location"`
		Bytes    int    `json:"bytes"`
	}
	runJSON(t, remoteURL, &exported, "report", "export", "--dir", dir, "--json")
	assert.True(t, strings.HasPrefix(exported.Location, dir), "location %q not under %q", exported.Location, dir)

	data, err := os.ReadFile(exported.Location)
	require.NoError(t, err)
	assert.Len(t, data, exported.Bytes)
}

func TestCommands_UnreachableRemote(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)

	_, _, err := executeCmd(t, nil, "projects", "list", "--remote", "http://127.0.0.1:1/api")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "load projects: "), "error = %v", err)
}

func TestCredential_SetGetDelete(t *testing.T) {
	isolateEnv(t)
	ring := useMemoryKeyring(t)

	out, _, err := executeCmd(t, nil, "credential", "set", "openai", "sk-test-0123456789abcdef")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored openai credential.")

	item, err := ring.Get(credential.KeyOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-0123456789abcdef", string(item.Data))

	out, _, err = executeCmd(t, nil, "credential", "get", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-t****************cdef", strings.TrimSpace(out))

	out, _, err = executeCmd(t, nil, "credential", "get", "openai", "--show")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-0123456789abcdef", strings.TrimSpace(out))

	_, _, err = executeCmd(t, nil, "credential", "delete", "openai")
	require.NoError(t, err)
	_, _, err = executeCmd(t, nil, "credential", "get", "openai")
	assert.ErrorContains(t, err, "no openai credential stored")
}

func TestCredential_SetFromStdin(t *testing.T) {
	isolateEnv(t)
	ring := useMemoryKeyring(t)

	_, _, err := executeCmd(t, strings.NewReader("remote-secret\n"), "credential", "set", "remote")
	require.NoError(t, err)

	item, err := ring.Get(credential.KeyRemote)
	require.NoError(t, err)
	assert.Equal(t, "remote-secret", string(item.Data))
}

func TestCredential_Rejections(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown name", []string{"credential", "get", "github"}, "unknown credential"},
		{"malformed openai key", []string{"credential", "set", "openai", "not-a-key"}, "does not look like"},
		{"blank value", []string{"credential", "set", "remote", "   "}, "must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCmd(t, nil, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRemoteAPIKeyFromKeyring(t *testing.T) {
	isolateEnv(t)
	useMemoryKeyring(t, keyring.Item{Key: credential.KeyRemote, Data: []byte("devstore-secret")})

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer st.Close()
	srv := httptest.NewServer(devstore.NewServer(st, devstore.WithAPIKey("devstore-secret")).Router())
	defer srv.Close()

	out := run(t, srv.URL+devstore.BasePath, "projects", "list")
	assert.Contains(t, out, "No projects found.")
}

func TestNewInsightEngine_ProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		want     string
	}{
		{"disabled", config.ProviderNone, "sk-valid", "unavailable"},
		{"missing key", config.ProviderOpenAI, "", "unavailable"},
		{"malformed key", config.ProviderOpenAI, "token with spaces", "unavailable"},
		{"valid key", config.ProviderOpenAI, "sk-valid", "openai:gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			cfg := &config.Config{Insight: config.InsightConfig{
				Provider: tt.provider,
				Model:    "gpt-4o-mini",
				APIKey:   tt.key,
			}}
			creds := credential.NewStoreWithOpener(func() (keyring.Keyring, error) {
				return keyring.NewArrayKeyring(nil), nil
			})

			assert.Equal(t, tt.want, newInsightEngine(cfg, creds).ProviderName())
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "*****", maskSecret("short"))
	assert.Equal(t, "3 days overdue", formatDays(-3))
	assert.Equal(t, "in 1 day", formatDays(1))
	assert.Equal(t, "in 1,200 days", formatDays(1200))
	assert.Equal(t, "-", formatEndDate(nil))

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2 days ago", formatRelative(now.Add(-48*time.Hour), now))
}
