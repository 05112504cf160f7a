package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/portfolio/internal/analytics"
	"github.com/hyperengineering/portfolio/internal/api"
	"github.com/hyperengineering/portfolio/internal/cache"
	"github.com/hyperengineering/portfolio/internal/devstore"
	"github.com/hyperengineering/portfolio/internal/export"
	"github.com/hyperengineering/portfolio/internal/insight"
	"github.com/hyperengineering/portfolio/internal/remote"
	"github.com/hyperengineering/portfolio/internal/report"
	"github.com/hyperengineering/portfolio/internal/store"
	"github.com/hyperengineering/portfolio/internal/types"
	"github.com/hyperengineering/portfolio/internal/worker"
)

const testAPIKey = "e2e-test-api-key"

// --- Remote store ---

// remoteStore is a devstore served over HTTP. The handler can be made to
// fail and the server restarted on the same database.
type remoteStore struct {
	db     *store.SQLiteStore
	dbPath string
	srv    *httptest.Server

	// failNext makes the next N requests answer 503 before reaching the store.
	failNext atomic.Int32
	requests atomic.Int32
}

func startRemoteStore(t *testing.T) *remoteStore {
	t.Helper()

	rs := &remoteStore{dbPath: filepath.Join(t.TempDir(), "devstore.db")}
	rs.open(t)
	t.Cleanup(rs.stop)
	return rs
}

func (rs *remoteStore) open(t *testing.T) {
	t.Helper()

	db, err := store.NewSQLiteStore(rs.dbPath)
	require.NoError(t, err, "open devstore db")
	rs.db = db

	router := devstore.NewServer(db, devstore.WithAPIKey(testAPIKey)).Router()
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.requests.Add(1)
		if rs.failNext.Load() > 0 {
			rs.failNext.Add(-1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"Service temporarily unavailable"}`))
			return
		}
		router.ServeHTTP(w, r)
	}))
}

func (rs *remoteStore) stop() {
	if rs.srv != nil {
		rs.srv.Close()
		rs.srv = nil
	}
	if rs.db != nil {
		rs.db.Close()
		rs.db = nil
	}
}

// restart closes the server and serves the same database on a new port.
// Clients pointed at the old URL see transport errors.
func (rs *remoteStore) restart(t *testing.T) {
	t.Helper()
	rs.stop()
	rs.open(t)
}

func (rs *remoteStore) url() string {
	return rs.srv.URL + devstore.BasePath
}

// --- Dashboard stack ---

// stack is the dashboard API wired to a remote store the way serve wires it.
type stack struct {
	remote    *remoteStore
	client    *remote.Client
	cache     *cache.Cache
	router    http.Handler
	exportDir string
}

type stackOptions struct {
	localAnalytics bool
	maxRetries     uint64
}

func setupStack(t *testing.T, rs *remoteStore, opts stackOptions) *stack {
	t.Helper()

	client := remote.NewClient(rs.url(),
		remote.WithAPIKey(testAPIKey),
		remote.WithTimeout(5*time.Second),
		remote.WithRetry(opts.maxRetries, 5*time.Millisecond),
	)
	return setupStackWithClient(t, rs, client, opts)
}

func setupStackWithClient(t *testing.T, rs *remoteStore, client *remote.Client, opts stackOptions) *stack {
	t.Helper()

	c := cache.New(client)
	t.Cleanup(func() { c.Close() })

	engine := insight.NewEngine(insight.Unavailable{Reason: "e2e"})

	var graphics analytics.Source = analytics.NewRemote(client)
	if opts.localAnalytics {
		graphics = analytics.NewLocal(c.Snapshot)
	}

	exportDir := t.TempDir()
	builder := report.NewBuilder(c.Snapshot, engine, 5)
	exporter := worker.NewReportCoordinator(builder, export.NewFileUploader(exportDir), time.Hour)

	h := api.NewHandler(api.Deps{
		Cache:    c,
		Insights: engine,
		Graphics: graphics,
		Reports:  builder,
		Exporter: exporter,
		Version:  "e2e",
	})

	return &stack{
		remote:    rs,
		client:    client,
		cache:     c,
		router:    api.NewRouter(h),
		exportDir: exportDir,
	}
}

// do sends a request to the dashboard router and decodes a JSON response
// into out when out is non-nil.
func (s *stack) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "%s %s: decode response\nbody: %s", method, path, rec.Body.String())
	}
	return rec
}

func (s *stack) createProject(t *testing.T, draft types.ProjectDraft) types.Project {
	t.Helper()

	var p types.Project
	rec := s.do(t, http.MethodPost, "/projects", draft, &p)
	require.Equal(t, http.StatusCreated, rec.Code, "create %q: %s", draft.Name, rec.Body.String())
	return p
}

func (s *stack) listProjects(t *testing.T) []types.Project {
	t.Helper()

	var projects []types.Project
	rec := s.do(t, http.MethodGet, "/projects", nil, &projects)
	require.Equal(t, http.StatusOK, rec.Code, "list: %s", rec.Body.String())
	return projects
}

// problem is an RFC 7807 response with optional field errors.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (p problem) fields() []string {
	out := make([]string, len(p.Errors))
	for i, e := range p.Errors {
		out[i] = e.Field
	}
	return out
}

// remoteProjects lists the store directly, bypassing every cache.
func remoteProjects(t *testing.T, rs *remoteStore) []types.Project {
	t.Helper()

	projects, err := rs.db.ListProjects(context.Background())
	require.NoError(t, err, "list remote projects")
	return projects
}

// --- Fixtures ---

func draft(name string, status types.ProjectStatus, start string, end string) types.ProjectDraft {
	d := types.ProjectDraft{
		Name:      name,
		Status:    status,
		StartDate: types.MustParseDate(start),
	}
	if end != "" {
		e := types.MustParseDate(end)
		d.EndDate = &e
	}
	return d
}

func daysFromNow(n int) string {
	return time.Now().AddDate(0, 0, n).Format("2006-01-02")
}

func projectNames(projects []types.Project) []string {
	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	return names
}

// runConcurrently runs fn n times in parallel and waits for all calls.
func runConcurrently(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}
