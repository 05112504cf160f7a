package devstore

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/portfolio/internal/store"
	"github.com/hyperengineering/portfolio/internal/types"
	"github.com/hyperengineering/portfolio/internal/validation"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	srv := httptest.NewServer(NewServer(st, opts...).Router())
	t.Cleanup(func() {
		srv.Close()
		_ = st.Close()
	})
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+BasePath+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func createProject(t *testing.T, srv *httptest.Server, body string) types.Project {
	t.Helper()
	resp, data := call(t, srv, http.MethodPost, "/project", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var p types.Project
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func TestCreateAndGetProject(t *testing.T) {
	srv := newTestServer(t)

	created := createProject(t, srv, `{"name":"Apollo","status":"in progress","startDate":"2025-06-01","endDate":"2025-07-30"}`)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.StatusInProgress, created.Status)

	resp, data := call(t, srv, http.MethodGet, "/project/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.Project
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Apollo", got.Name)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2025-07-30", got.EndDate.String())
}

func TestListProjects_EmptyArray(t *testing.T) {
	srv := newTestServer(t)

	resp, data := call(t, srv, http.MethodGet, "/project", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))
}

func TestCreateProject_ValidationReportsEveryField(t *testing.T) {
	srv := newTestServer(t)

	resp, data := call(t, srv, http.MethodPost, "/project",
		`{"name":"ab","status":"paused","startDate":"2025-07-01","endDate":"2025-06-01"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "Validation failed", body.Message)

	fields := make([]string, 0, len(body.Errors))
	for _, e := range body.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"name", "status", "startDate", "endDate"}, fields)
}

func TestCreateProject_EndBeforeStartFlagsBothDates(t *testing.T) {
	srv := newTestServer(t)

	resp, data := call(t, srv, http.MethodPost, "/project",
		`{"name":"Apollo","status":"in_progress","startDate":"2025-06-01","endDate":"2025-05-01"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, []validation.ValidationError{
		{Field: "startDate", Message: "must not be after endDate"},
		{Field: "endDate", Message: "must not be before startDate"},
	}, body.Errors)
}

func TestCreateProject_InvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, data := call(t, srv, http.MethodPost, "/project", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "Invalid JSON body")
}

func TestCreateProject_DuplicateNameConflict(t *testing.T) {
	srv := newTestServer(t)
	createProject(t, srv, `{"name":"Apollo","status":"in_progress","startDate":"2025-06-01"}`)

	resp, data := call(t, srv, http.MethodPost, "/project", `{"name":"APOLLO","status":"in_progress","startDate":"2025-06-01"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "Project already exists.", body.Message)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "name", body.Errors[0].Field)
}

func TestUpdateProject(t *testing.T) {
	srv := newTestServer(t)
	p := createProject(t, srv, `{"name":"Apollo","status":"in_progress","startDate":"2025-06-01"}`)

	resp, data := call(t, srv, http.MethodPut, "/project/"+p.ID,
		`{"name":"Apollo","status":"completed","startDate":"2025-06-01","endDate":"2025-06-14"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var updated types.Project
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, types.StatusCompleted, updated.Status)
}

func TestUpdateProject_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, data := call(t, srv, http.MethodPut, "/project/missing",
		`{"name":"Apollo","status":"completed","startDate":"2025-06-01"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Project not found."}`, string(data))
}

func TestDeleteProject(t *testing.T) {
	srv := newTestServer(t)
	p := createProject(t, srv, `{"name":"Apollo","status":"in_progress","startDate":"2025-06-01"}`)

	resp, _ := call(t, srv, http.MethodDelete, "/project/"+p.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodGet, "/project/"+p.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, srv, http.MethodDelete, "/project/"+p.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGraphics(t *testing.T) {
	srv := newTestServer(t)
	createProject(t, srv, `{"name":"Apollo","status":"completed","startDate":"2025-01-01","endDate":"2025-02-01"}`)
	createProject(t, srv, `{"name":"Gemini","status":"in_progress","startDate":"2025-06-01"}`)
	createProject(t, srv, `{"name":"Mercury","status":"in_progress","startDate":"2025-06-02"}`)

	resp, data := call(t, srv, http.MethodGet, "/analytics/graphics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var g types.GraphicsData
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, 3, g.TotalProjects)
	assert.Equal(t, 1, g.CompletedProjects)
	assert.Equal(t, 2, g.InProgressProjects)
	require.Len(t, g.ProjectsByStatus, 2)
	assert.Equal(t, 66.7, g.ProjectsByStatus[0].Percentage)
	assert.Equal(t, 33.3, g.ProjectsByStatus[1].Percentage)
}

func TestProjectAnalysis(t *testing.T) {
	srv := newTestServer(t)
	p := createProject(t, srv, `{"name":"Apollo","status":"in_progress","startDate":"2025-06-01","endDate":"2025-06-25"}`)
	createProject(t, srv, `{"name":"Gemini","status":"completed","startDate":"2025-01-01","endDate":"2025-02-01"}`)

	resp, data := call(t, srv, http.MethodGet, "/analytics/"+p.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var a types.AnalysisResponse
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, "Apollo is due in 10 day(s) (medium confidence).", a.Summary)
	assert.Equal(t, 2, a.TotalProjects)
	assert.True(t, a.GeneratedAt.Equal(testNow))

	resp, _ = call(t, srv, http.MethodGet, "/analytics/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSummarize(t *testing.T) {
	end := func(s string) *types.Date {
		d := types.MustParseDate(s)
		return &d
	}

	tests := []struct {
		name string
		p    types.Project
		want string
	}{
		{
			name: "completed",
			p:    types.Project{Name: "Apollo", Status: types.StatusCompleted, EndDate: end("2025-05-01")},
			want: "Apollo was completed on 2025-05-01.",
		},
		{
			name: "overdue",
			p:    types.Project{Name: "Apollo", Status: types.StatusInProgress, StartDate: types.MustParseDate("2025-05-01"), EndDate: end("2025-06-12")},
			want: "Apollo is 3 day(s) overdue.",
		},
		{
			name: "no deadline",
			p:    types.Project{Name: "Apollo", Status: types.StatusInProgress, StartDate: types.MustParseDate("2025-06-05")},
			want: "Apollo has no deadline; estimated completion 2025-07-04.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarize(tt.p, testNow))
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	srv := newTestServer(t, WithAPIKey("devstore-secret"))

	resp, body := call(t, srv, http.MethodGet, "/project", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Authentication required."}`, string(body))

	req, err := http.NewRequest(http.MethodGet, srv.URL+BasePath+"/project", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer devstore-secret")
	authed, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}
