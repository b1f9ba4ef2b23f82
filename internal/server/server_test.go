package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"manageease/internal/auth"
	"manageease/internal/storage/sqlite"
	"manageease/internal/tasks"
	"manageease/internal/users"
)

type envelope struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
	Data    json.RawMessage   `json:"data"`
}

type testEnv struct {
	t     *testing.T
	srv   *Server
	store *sqlite.Store
}

type account struct {
	ID    string
	Token string
}

type taskJSON struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     *string  `json:"dueDate"`
	CompletedAt *string  `json:"completedAt"`
	Tags        []string `json:"tags"`
	Creator     struct {
		ID string `json:"id"`
	} `json:"creator"`
	Assignee struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
	} `json:"assignee"`
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokenManager(auth.TokenConfig{AccessSecret: "access", RefreshSecret: "refresh"})
	userSvc := users.NewService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens, nil)
	taskSvc := tasks.NewService(store, store, nil)

	srv := New(store, taskSvc, userSvc, cfg, nil)
	gin.SetMode(gin.TestMode)
	return &testEnv{t: t, srv: srv, store: store}
}

func (e *testEnv) do(method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (e *testEnv) signUp(first, email string) account {
	e.t.Helper()
	w, _ := e.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"firstName": first, "lastName": "Tester", "email": email, "password": "password123",
	}, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	w, env := e.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": "password123"}, "")
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		AccessToken string `json:"accessToken"`
	}
	require.NoError(e.t, json.Unmarshal(env.Data, &data))
	return account{ID: data.User.ID, Token: data.AccessToken}
}

func (e *testEnv) createTask(a account, body gin.H) taskJSON {
	e.t.Helper()
	w, env := e.do(http.MethodPost, "/api/v1/tasks", body, a.Token)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeTask(e.t, env)
}

func decodeTask(t *testing.T, env envelope) taskJSON {
	t.Helper()
	var data struct {
		Task taskJSON `json:"task"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Task
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, Config{})

	w, _ := e.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodGet, "/api/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestUnknownAPIRoute(t *testing.T) {
	e := newTestEnv(t, Config{})

	w, env := e.do(http.MethodGet, "/api/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "not_found", env.Error)
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t, Config{})
	ann := e.signUp("Ann", "ann@example.com")

	w, env := e.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"firstName": "Ann", "lastName": "Again", "email": "ANN@example.com", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", env.Error)

	w, env = e.do(http.MethodPost, "/api/v1/auth/register", gin.H{"firstName": "X", "email": "bad"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error)
	assert.Contains(t, env.Fields, "email")

	w, env = e.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ann@example.com", "password": "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", env.Error)

	w, env = e.do(http.MethodGet, "/api/v1/auth/me", nil, ann.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"tasksCompleted":0`)
	assert.NotContains(t, string(env.Data), "password")

	w, _ = e.do(http.MethodGet, "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(http.MethodGet, "/api/v1/auth/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.signUp("Ann", "ann@example.com")

	w, _ := e.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ann@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == refreshCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: cookie.Value})
	rec := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w, _ = e.do(http.MethodPost, "/api/v1/auth/refresh", gin.H{"refreshToken": cookie.Value}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := e.do(http.MethodPost, "/api/v1/auth/refresh", gin.H{"refreshToken": "junk"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", env.Error)

	w, _ = e.do(http.MethodPost, "/api/v1/auth/refresh", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(http.MethodPost, "/api/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == refreshCookie {
			assert.Empty(t, ck.Value)
			assert.Less(t, ck.MaxAge, 0)
		}
	}
}

func TestTaskLifecycle(t *testing.T) {
	e := newTestEnv(t, Config{})
	alice := e.signUp("Alice", "alice@example.com")
	bob := e.signUp("Bob", "bob@example.com")
	mallory := e.signUp("Mallory", "mallory@example.com")

	own := e.createTask(alice, gin.H{"title": "Solo"})
	assert.Equal(t, alice.ID, own.Assignee.ID)
	assert.Equal(t, "medium", own.Priority)
	assert.Equal(t, "active", own.Status)
	assert.Equal(t, []string{}, own.Tags)

	task := e.createTask(alice, gin.H{"title": "Write report", "assigneeId": bob.ID, "dueDate": "2026-04-01", "tags": []string{"q1"}})
	assert.Equal(t, alice.ID, task.Creator.ID)
	assert.Equal(t, "Bob", task.Assignee.FirstName)
	require.NotNil(t, task.DueDate)

	path := "/api/v1/tasks/" + task.ID

	// assignee can read but not edit details
	w, _ := e.do(http.MethodGet, path, nil, bob.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := e.do(http.MethodPut, path, gin.H{"title": "Hijacked"}, bob.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", env.Error)

	// outsiders see nothing
	w, env = e.do(http.MethodGet, path, nil, mallory.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Error)

	// creator is not the assignee, so the status route hides the task
	w, _ = e.do(http.MethodPatch, path+"/status", gin.H{"status": "completed"}, alice.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = e.do(http.MethodPatch, path+"/status", gin.H{"status": "done"}, bob.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_status", env.Error)

	w, env = e.do(http.MethodPatch, path+"/status", gin.H{"status": "completed"}, bob.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decodeTask(t, env)
	assert.Equal(t, "completed", done.Status)
	require.NotNil(t, done.CompletedAt)

	w, env = e.do(http.MethodPut, path, gin.H{"title": "Final report", "dueDate": nil}, alice.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decodeTask(t, env)
	assert.Equal(t, "Final report", edited.Title)
	assert.Nil(t, edited.DueDate)
	assert.Equal(t, *done.CompletedAt, *edited.CompletedAt)

	w, env = e.do(http.MethodPut, path, gin.H{"status": "active"}, bob.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decodeTask(t, env).CompletedAt)

	w, env = e.do(http.MethodPut, path, gin.H{"priority": "urgent"}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Fields, "priority")

	// only the creator may delete
	w, _ = e.do(http.MethodDelete, path, nil, bob.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(http.MethodDelete, path, nil, alice.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodGet, path, nil, alice.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTask_Rejects(t *testing.T) {
	e := newTestEnv(t, Config{})
	alice := e.signUp("Alice", "alice@example.com")
	carol := e.signUp("Carol", "carol@example.com")

	w, _ := e.do(http.MethodPost, "/api/v1/auth/login", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := e.do(http.MethodPost, "/api/v1/tasks", gin.H{"title": ""}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error)

	w, env = e.do(http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "assigneeId": "ghost"}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_assignee", env.Error)

	w, _ = e.do(http.MethodPost, "/api/v1/profile/deactivate", nil, carol.Token)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = e.do(http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "assigneeId": carol.ID}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_assignee", env.Error)

	w, _ = e.do(http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "dueDate": "next week"}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTasks(t *testing.T) {
	e := newTestEnv(t, Config{})
	alice := e.signUp("Alice", "alice@example.com")
	bob := e.signUp("Bob", "bob@example.com")
	carol := e.signUp("Carol", "carol@example.com")

	e.createTask(alice, gin.H{"title": "Budget review", "assigneeId": bob.ID, "priority": "high"})
	e.createTask(bob, gin.H{"title": "Budget draft"})
	e.createTask(carol, gin.H{"title": "Budget secret"})

	list := func(a account, query string) []taskJSON {
		t.Helper()
		w, env := e.do(http.MethodGet, "/api/v1/tasks"+query, nil, a.Token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var data struct {
			Tasks []taskJSON `json:"tasks"`
			Count int        `json:"count"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, len(data.Tasks), data.Count)
		return data.Tasks
	}

	assert.Len(t, list(bob, ""), 2)
	assert.Len(t, list(bob, "?view=created"), 1)
	assert.Len(t, list(alice, "?view=assigned"), 0)
	assert.Len(t, list(bob, "?priority=high"), 1)
	assert.Len(t, list(bob, "?search=BUDGET"), 2)
	assert.Len(t, list(alice, "?search=secret"), 0)

	got := list(bob, "")
	assert.Equal(t, "Budget draft", got[0].Title, "newest first")

	w, env := e.do(http.MethodGet, "/api/v1/tasks?view=everyone", nil, bob.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error)
}

func TestUsersAndProfile(t *testing.T) {
	e := newTestEnv(t, Config{})
	alice := e.signUp("Alice", "alice@example.com")
	bob := e.signUp("Bob", "bob@corp.io")

	e.createTask(alice, gin.H{"title": "one"})
	e.createTask(alice, gin.H{"title": "two", "status": "completed"})

	w, env := e.do(http.MethodGet, "/api/v1/users?search=corp", nil, alice.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), bob.ID)
	assert.NotContains(t, string(env.Data), alice.ID)

	w, _ = e.do(http.MethodGet, "/api/v1/users/"+bob.ID, nil, alice.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodGet, "/api/v1/users/ghost", nil, alice.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = e.do(http.MethodGet, "/api/v1/profile", nil, alice.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"tasksCompleted":1`)
	assert.Contains(t, string(env.Data), `"activeTasks":1`)

	w, env = e.do(http.MethodPut, "/api/v1/profile", gin.H{"lastName": "Liddell"}, alice.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Liddell")

	w, _ = e.do(http.MethodPut, "/api/v1/profile", gin.H{"email": "bob@corp.io"}, alice.Token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = e.do(http.MethodPut, "/api/v1/profile/password", gin.H{"currentPassword": "nope", "newPassword": "password456"}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Fields, "currentPassword")

	w, _ = e.do(http.MethodPut, "/api/v1/profile/password", gin.H{"currentPassword": "password123", "newPassword": "password456"}, alice.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "alice@example.com", "password": "password456"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeactivateAndDelete(t *testing.T) {
	e := newTestEnv(t, Config{})
	alice := e.signUp("Alice", "alice@example.com")
	bob := e.signUp("Bob", "bob@example.com")

	task := e.createTask(bob, gin.H{"title": "for alice", "assigneeId": alice.ID})

	w, _ := e.do(http.MethodPost, "/api/v1/profile/deactivate", nil, alice.Token)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodGet, "/api/v1/tasks", nil, alice.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// deactivation keeps the tasks
	_, err := e.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)

	w, _ = e.do(http.MethodDelete, "/api/v1/profile", nil, bob.Token)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = e.store.GetTask(context.Background(), task.ID)
	assert.Error(t, err, "deleting an account removes the tasks it created")

	w, _ = e.do(http.MethodGet, "/api/v1/profile", nil, bob.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitedAPI(t *testing.T) {
	e := newTestEnv(t, Config{RateLimiter: LocalRateLimiter(RateLimit{Requests: 2, Window: 1 << 40})})

	for i := 0; i < 2; i++ {
		w, _ := e.do(http.MethodGet, "/api/healthz", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := e.do(http.MethodGet, "/api/healthz", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", env.Error)

	// the liveness probe outside /api is never limited
	w, _ = e.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t, Config{AllowOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
