package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/novatask/novatask/internal/api"
	"github.com/novatask/novatask/internal/models"
	"github.com/novatask/novatask/internal/taskservice"
	"github.com/novatask/novatask/internal/testutil"
)

type testEnv struct {
	svc    *taskservice.Service
	server *httptest.Server
}

func newTestEnv(t *testing.T, authEnabled bool, token string) *testEnv {
	t.Helper()
	_, store := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc, err := taskservice.NewService(store, db, nil)
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(api.NewRouter(svc, authEnabled, token, nil))
	t.Cleanup(server.Close)
	return &testEnv{svc: svc, server: server}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func (e *testEnv) createTask(t *testing.T, body api.CreateTaskRequest) models.Task {
	t.Helper()
	res := e.request(t, http.MethodPost, "/tasks", body)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", res.StatusCode)
	}
	return decode[models.Task](t, res)
}

func TestCreateAndGetTask(t *testing.T) {
	env := newTestEnv(t, false, "")

	created := env.createTask(t, api.CreateTaskRequest{
		Text: "write tests", Priority: models.PriorityHigh, Category: "work",
	})
	if created.ID == "" || created.Text != "write tests" {
		t.Errorf("created = %+v", created)
	}

	res := env.request(t, http.MethodGet, "/tasks/"+created.ID, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", res.StatusCode)
	}
	got := decode[models.Task](t, res)
	if got.ID != created.ID || got.Priority != models.PriorityHigh {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t, false, "")

	res := env.request(t, http.MethodPost, "/tasks", api.CreateTaskRequest{Text: ""})
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/tasks", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("broken JSON status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestQuickAdd(t *testing.T) {
	env := newTestEnv(t, false, "")

	res := env.request(t, http.MethodPost, "/tasks/quick", api.QuickAddRequest{
		Line: "buy milk !high #errands @2026-12-24",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}
	task := decode[models.Task](t, res)
	if task.Text != "buy milk" || task.Priority != models.PriorityHigh || task.Category != "errands" {
		t.Errorf("task = %+v", task)
	}
	if task.DueDate == nil {
		t.Error("due date not parsed")
	}
}

func TestListTasksFiltering(t *testing.T) {
	env := newTestEnv(t, false, "")

	a := env.createTask(t, api.CreateTaskRequest{Text: "open work", Category: "work"})
	done := env.createTask(t, api.CreateTaskRequest{Text: "done work", Category: "work"})
	env.createTask(t, api.CreateTaskRequest{Text: "open home", Category: "home"})

	res := env.request(t, http.MethodPost, "/tasks/"+done.ID+"/toggle", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d", res.StatusCode)
	}
	res.Body.Close()

	cases := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?status=active", 2},
		{"?status=completed", 1},
		{"?category=work", 2},
		{"?status=active&category=work", 1},
		{"?status=completed&category=home", 0},
	}
	for _, tc := range cases {
		res := env.request(t, http.MethodGet, "/tasks"+tc.query, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%q: status = %d", tc.query, res.StatusCode)
		}
		list := decode[api.TaskListResponse](t, res)
		if list.Total != tc.want {
			t.Errorf("%q: total = %d, want %d", tc.query, list.Total, tc.want)
		}
	}

	// Active-work filter returns the one open work task.
	res = env.request(t, http.MethodGet, "/tasks?status=active&category=work", nil)
	list := decode[api.TaskListResponse](t, res)
	if len(list.Tasks) != 1 || list.Tasks[0].ID != a.ID {
		t.Errorf("tasks = %+v, want only %s", list.Tasks, a.ID)
	}
}

func TestListTasksBadFilter(t *testing.T) {
	env := newTestEnv(t, false, "")

	res := env.request(t, http.MethodGet, "/tasks?status=bogus", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestListTasksPagination(t *testing.T) {
	env := newTestEnv(t, false, "")

	for i := 0; i < 7; i++ {
		env.createTask(t, api.CreateTaskRequest{Text: fmt.Sprintf("task %d", i)})
	}

	res := env.request(t, http.MethodGet, "/tasks?limit=3&offset=6", nil)
	list := decode[api.TaskListResponse](t, res)
	if list.Total != 7 || len(list.Tasks) != 1 {
		t.Errorf("total = %d len = %d, want 7 and 1", list.Total, len(list.Tasks))
	}

	// Out-of-range and negative values are clamped, never an error.
	res = env.request(t, http.MethodGet, "/tasks?limit=-4&offset=-9", nil)
	if res.StatusCode != http.StatusOK {
		t.Errorf("clamped range status = %d, want 200", res.StatusCode)
	}
	res.Body.Close()
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t, false, "")

	created := env.createTask(t, api.CreateTaskRequest{Text: "draft"})

	res := env.request(t, http.MethodPatch, "/tasks/"+created.ID, map[string]any{
		"text": "final", "priority": "low",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	got := decode[models.Task](t, res)
	if got.Text != "final" || got.Priority != models.PriorityLow {
		t.Errorf("got = %+v", got)
	}

	res = env.request(t, http.MethodPatch, "/tasks/missing", map[string]any{"text": "x"})
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t, false, "")

	created := env.createTask(t, api.CreateTaskRequest{Text: "ephemeral"})

	res := env.request(t, http.MethodDelete, "/tasks/"+created.ID, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", res.StatusCode)
	}
	res.Body.Close()

	res = env.request(t, http.MethodGet, "/tasks/"+created.ID, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", res.StatusCode)
	}
	res.Body.Close()
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, false, "")

	env.createTask(t, api.CreateTaskRequest{Text: "water the plants", Category: "home"})
	env.createTask(t, api.CreateTaskRequest{Text: "review budget", Category: "finance"})

	res := env.request(t, http.MethodGet, "/search?q=plants", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	sr := decode[api.SearchResponse](t, res)
	if len(sr.Results) != 1 || !strings.Contains(sr.Results[0].Text, "plants") {
		t.Errorf("results = %+v", sr.Results)
	}

	// No matches still returns an empty array, not null.
	res = env.request(t, http.MethodGet, "/search?q=zzzzz", nil)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if !strings.Contains(string(body), `"results":[]`) {
		t.Errorf("body = %s, want empty results array", body)
	}

	res = env.request(t, http.MethodGet, "/search", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestCategoriesAndStats(t *testing.T) {
	env := newTestEnv(t, false, "")

	env.createTask(t, api.CreateTaskRequest{Text: "a", Category: "work"})
	env.createTask(t, api.CreateTaskRequest{Text: "b", Category: "work"})
	env.createTask(t, api.CreateTaskRequest{Text: "c"})

	res := env.request(t, http.MethodGet, "/categories", nil)
	cats := decode[map[string][]models.CategoryCount](t, res)
	if len(cats["categories"]) != 1 || cats["categories"][0].Category != "work" {
		t.Errorf("categories = %+v", cats)
	}
	if cats["categories"][0].Active != 2 {
		t.Errorf("work active = %d, want 2", cats["categories"][0].Active)
	}

	res = env.request(t, http.MethodGet, "/stats", nil)
	stats := decode[models.Stats](t, res)
	if stats.Total != 3 || stats.Active != 3 || stats.Completed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClear(t *testing.T) {
	env := newTestEnv(t, false, "")

	keep := env.createTask(t, api.CreateTaskRequest{Text: "keep"})
	done := env.createTask(t, api.CreateTaskRequest{Text: "drop"})
	res := env.request(t, http.MethodPost, "/tasks/"+done.ID+"/toggle", nil)
	res.Body.Close()

	res = env.request(t, http.MethodPost, "/clear", api.ClearRequest{CompletedOnly: true})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	cr := decode[api.ClearResponse](t, res)
	if cr.Removed != 1 {
		t.Errorf("removed = %d, want 1", cr.Removed)
	}

	res = env.request(t, http.MethodGet, "/tasks/"+keep.ID, nil)
	if res.StatusCode != http.StatusOK {
		t.Errorf("open task should survive clear, status = %d", res.StatusCode)
	}
	res.Body.Close()
}

func TestExportImportRoundtrip(t *testing.T) {
	env := newTestEnv(t, false, "")

	env.createTask(t, api.CreateTaskRequest{Text: "exported", Category: "work"})

	res := env.request(t, http.MethodGet, "/export", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", res.StatusCode)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "novatask-todos.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported, _ := io.ReadAll(res.Body)
	res.Body.Close()

	// Import the backup into a fresh instance.
	env2 := newTestEnv(t, false, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "backup.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(exported); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, env2.server.URL+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", res.StatusCode)
	}
	ir := decode[api.ImportResponse](t, res)
	if ir.Added != 1 || ir.Skipped != 0 {
		t.Errorf("import = %+v, want 1 added", ir)
	}

	list := decode[api.TaskListResponse](t, env.request(t, http.MethodGet, "/tasks", nil))
	if list.Total != 1 {
		t.Errorf("source total = %d", list.Total)
	}
	list2 := decode[api.TaskListResponse](t, env2.request(t, http.MethodGet, "/tasks", nil))
	if list2.Total != 1 || list2.Tasks[0].Text != "exported" {
		t.Errorf("imported list = %+v", list2)
	}
}

func TestImportRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t, false, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "backup.json")
	part.Write([]byte("this is not json"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, true, "secret-token")

	// No token.
	res := env.request(t, http.MethodGet, "/tasks", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()

	// Wrong token.
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", res.StatusCode)
	}
	res.Body.Close()

	// Correct token.
	req, _ = http.NewRequest(http.MethodGet, env.server.URL+"/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", res.StatusCode)
	}
	res.Body.Close()
}
