package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"habittracker/internal/access"
	"habittracker/internal/auth"
	"habittracker/internal/config"
	"habittracker/internal/database"
	"habittracker/internal/events"
	"habittracker/internal/models"
	"habittracker/internal/repository"
	"habittracker/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const staffEmail = "staff@example.com"

type testAPI struct {
	t  *testing.T
	ts *httptest.Server
	db *database.DB
}

func newTestConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			Auth: config.APIAuthConfig{JWTSecret: "test-secret-0123456789", TokenTTL: time.Hour, Issuer: "habittracker"},
		},
		Pagination: config.PaginationConfig{DefaultSize: 10, MaxSize: 50},
		Staff:      []string{staffEmail},
	}
}

func newTestAPI(t *testing.T, cfg *config.Config, limiter *repository.MemoryRateLimiter) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus(&logger)
	issuer := auth.NewIssuer(cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer, cfg.API.Auth.TokenTTL)
	services := Services{
		Habits: service.NewHabitService(db, bus, service.NewPaginator(cfg.Pagination), &logger),
		Users:  service.NewUserService(db, issuer, cfg, bus, &logger),
		Health: db,
	}
	if limiter != nil {
		services.Limiter = limiter
	}

	server := NewHTTPServer(cfg, services, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testAPI{t: t, ts: ts, db: db}
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (a *testAPI) do(method, path, token string, body any, out any) *http.Response {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, a.ts.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(a.t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp
}

// signup registers a user and returns its access token.
func (a *testAPI) signup(email, username string) string {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"email": email, "password": "supersecret", "tg_username": username,
	}, nil)
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)

	var token service.Token
	resp = a.do(http.MethodPost, "/api/v1/users/token", "", map[string]string{
		"email": email, "password": "supersecret",
	}, &token)
	require.Equal(a.t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(a.t, token.Access)
	return token.Access
}

type habitJSON struct {
	ID                int64   `json:"id"`
	User              *int64  `json:"user"`
	Place             string  `json:"place"`
	Time              string  `json:"time"`
	Action            string  `json:"action"`
	IsPleasantHabit   bool    `json:"is_pleasant_habit"`
	PleasantHabit     *int64  `json:"pleasant_habit"`
	Periodicity       string  `json:"periodicity"`
	Reward            *string `json:"reward"`
	EstimatedDuration int     `json:"estimated_duration"`
	IsPublished       bool    `json:"is_published"`
}

type pageJSON struct {
	Count    int         `json:"count"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Results  []habitJSON `json:"results"`
}

type errorJSON struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

func (a *testAPI) createHabit(token string, fields map[string]any) habitJSON {
	a.t.Helper()
	body := map[string]any{"place": "home", "time": "08:00", "action": "stretch"}
	for k, v := range fields {
		body[k] = v
	}
	var h habitJSON
	resp := a.do(http.MethodPost, "/api/v1/habits", token, body, &h)
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)
	return h
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t, newTestConfig(), nil)

	resp := api.do(http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp = api.do(http.MethodGet, "/readyz", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(http.MethodGet, "/nope", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsersEndpoints(t *testing.T) {
	api := newTestAPI(t, newTestConfig(), nil)
	token := api.signup("ann@example.com", "ann")

	t.Run("duplicate email", func(t *testing.T) {
		var body errorJSON
		resp := api.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
			"email": "ann@EXAMPLE.com", "password": "supersecret", "tg_username": "ann2",
		}, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body.Fields, "email")
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := api.do(http.MethodPost, "/api/v1/users/token", "", map[string]string{
			"email": "ann@example.com", "password": "wrong-password",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me requires auth", func(t *testing.T) {
		resp := api.do(http.MethodGet, "/api/v1/users/me", "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = api.do(http.MethodGet, "/api/v1/users/me", "garbage", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me and profile update", func(t *testing.T) {
		var me map[string]any
		resp := api.do(http.MethodGet, "/api/v1/users/me", token, nil, &me)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ann@example.com", me["email"])
		assert.NotContains(t, me, "password_hash")

		resp = api.do(http.MethodPatch, "/api/v1/users/me", token, map[string]any{"city": "Kazan"}, &me)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Kazan", me["city"])
	})
}

func TestHabitEndpoints_AccessPolicy(t *testing.T) {
	api := newTestAPI(t, newTestConfig(), nil)
	ann := api.signup("ann@example.com", "ann")
	bob := api.signup("bob@example.com", "bob")

	private := api.createHabit(ann, map[string]any{"user": 999})
	require.NotNil(t, private.User)
	assert.NotEqual(t, int64(999), *private.User)
	assert.Equal(t, "08:00:00", private.Time)
	assert.Equal(t, "1 00:00:00", private.Periodicity)
	assert.Equal(t, 120, private.EstimatedDuration)

	shared := api.createHabit(ann, map[string]any{"is_pleasant_habit": true, "is_published": true, "action": "coffee"})

	privatePath := fmt.Sprintf("/api/v1/habits/%d", private.ID)
	sharedPath := fmt.Sprintf("/api/v1/habits/%d", shared.ID)

	t.Run("owner reads private habit", func(t *testing.T) {
		resp := api.do(http.MethodGet, privatePath, ann, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("list shows only own pleasant published", func(t *testing.T) {
		var page pageJSON
		resp := api.do(http.MethodGet, "/api/v1/habits", ann, nil, &page)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, shared.ID, page.Results[0].ID)

		resp = api.do(http.MethodGet, "/api/v1/habits", bob, nil, &page)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, page.Count)
		assert.NotNil(t, page.Results)
	})

	t.Run("stranger", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, privatePath, bob, nil, nil).StatusCode)
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodPatch, privatePath, bob, map[string]any{"action": "x"}, nil).StatusCode)
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, privatePath, bob, nil, nil).StatusCode)

		assert.Equal(t, http.StatusOK, api.do(http.MethodGet, sharedPath, bob, nil, nil).StatusCode)
		assert.Equal(t, http.StatusForbidden, api.do(http.MethodPatch, sharedPath, bob, map[string]any{"action": "x"}, nil).StatusCode)
		assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, sharedPath, bob, nil, nil).StatusCode)
	})

	t.Run("public feed", func(t *testing.T) {
		var page pageJSON
		resp := api.do(http.MethodGet, "/api/v1/habits/public", bob, nil, &page)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, "coffee", page.Results[0].Action)

		assert.Equal(t, http.StatusOK, api.do(http.MethodGet, fmt.Sprintf("/api/v1/habits/public/%d", shared.ID), bob, nil, nil).StatusCode)
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, fmt.Sprintf("/api/v1/habits/public/%d", private.ID), ann, nil, nil).StatusCode)
	})

	t.Run("update", func(t *testing.T) {
		var h habitJSON
		resp := api.do(http.MethodPatch, privatePath, ann, map[string]any{"action": "read", "reward": "tea"}, &h)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "read", h.Action)
		assert.Equal(t, "home", h.Place)
		require.NotNil(t, h.Reward)

		var errBody errorJSON
		resp = api.do(http.MethodPut, privatePath, ann, map[string]any{"action": "read"}, &errBody)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, errBody.Fields, "place")
		assert.Contains(t, errBody.Fields, "time")
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, privatePath, ann, nil, nil).StatusCode)
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, privatePath, ann, nil, nil).StatusCode)
	})

	t.Run("bad id", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/habits/abc", ann, nil, nil).StatusCode)
	})
}

func TestHabitEndpoints_Validation(t *testing.T) {
	api := newTestAPI(t, newTestConfig(), nil)
	ann := api.signup("ann@example.com", "ann")

	pleasant := api.createHabit(ann, map[string]any{"is_pleasant_habit": true})
	ordinary := api.createHabit(ann, nil)

	tests := []struct {
		name   string
		fields map[string]any
		field  string
	}{
		{"reward with pleasant habit", map[string]any{"reward": "cake", "pleasant_habit": pleasant.ID}, service.NonFieldKey},
		{"reference to ordinary habit", map[string]any{"pleasant_habit": ordinary.ID}, "pleasant_habit"},
		{"reference to missing habit", map[string]any{"pleasant_habit": 9999}, "pleasant_habit"},
		{"pleasant with reward", map[string]any{"is_pleasant_habit": true, "reward": "cake"}, "reward"},
		{"duration over limit", map[string]any{"estimated_duration": 121}, "estimated_duration"},
		{"periodicity under a day", map[string]any{"periodicity": "12:00:00"}, "periodicity"},
		{"missing action", map[string]any{"action": nil}, "action"},
		{"wrong type", map[string]any{"estimated_duration": "long"}, "estimated_duration"},
		{"negative periodicity", map[string]any{"periodicity": -1}, "periodicity"},
		{"malformed periodicity", map[string]any{"periodicity": "soon"}, "periodicity"},
		{"periodicity days overflow", map[string]any{"periodicity": 213505}, "periodicity"},
		{"periodicity string overflow", map[string]any{"periodicity": "213505 00:00:00"}, "periodicity"},
		{"periodicity hours overflow", map[string]any{"periodicity": "0 2562048:00:00"}, "periodicity"},
		{"malformed time", map[string]any{"time": "25:00"}, "time"},
		{"time as number", map[string]any{"time": 800}, "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]any{"place": "home", "time": "08:00", "action": "stretch"}
			for k, v := range tt.fields {
				body[k] = v
			}
			var errBody errorJSON
			resp := api.do(http.MethodPost, "/api/v1/habits", ann, body, &errBody)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, errBody.Fields, tt.field)
		})
	}

	t.Run("decode errors name the field", func(t *testing.T) {
		body := map[string]any{
			"place": "home", "time": "08:00", "action": "stretch",
			"periodicity": "213505 00:00:00", "estimated_duration": "long",
		}
		var errBody errorJSON
		resp := api.do(http.MethodPost, "/api/v1/habits", ann, body, &errBody)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, []string{models.ErrDurationOutOfRange.Error()}, errBody.Fields["periodicity"])
		assert.Equal(t, []string{"Incorrect type."}, errBody.Fields["estimated_duration"])
		assert.NotContains(t, errBody.Fields, service.NonFieldKey)
	})

	t.Run("valid pleasant reference", func(t *testing.T) {
		h := api.createHabit(ann, map[string]any{"pleasant_habit": pleasant.ID, "periodicity": 7})
		require.NotNil(t, h.PleasantHabit)
		assert.Equal(t, "7 00:00:00", h.Periodicity)
	})

	t.Run("referenced pleasant habit cannot be unflagged", func(t *testing.T) {
		var errBody errorJSON
		resp := api.do(http.MethodPatch, fmt.Sprintf("/api/v1/habits/%d", pleasant.ID), ann, map[string]any{"is_pleasant_habit": false}, &errBody)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, errBody.Fields, "is_pleasant_habit")
	})
}

func TestHabitEndpoints_Pagination(t *testing.T) {
	api := newTestAPI(t, newTestConfig(), nil)
	staff := api.signup(staffEmail, "boss")
	for i := 0; i < 12; i++ {
		api.createHabit(staff, map[string]any{"action": fmt.Sprintf("habit %d", i)})
	}

	tests := []struct {
		query     string
		wantCount int
		wantLen   int
		wantSize  int
	}{
		{"", 12, 10, 10},
		{"?page=2", 12, 2, 10},
		{"?page=3&page_size=5", 12, 2, 5},
		{"?page=0", 12, 0, 10},
		{"?page=99", 12, 0, 10},
		{"?page_size=500", 12, 12, 50},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var page pageJSON
			resp := api.do(http.MethodGet, "/api/v1/habits"+tt.query, staff, nil, &page)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantCount, page.Count)
			assert.Len(t, page.Results, tt.wantLen)
			assert.Equal(t, tt.wantSize, page.PageSize)
		})
	}

	resp := api.do(http.MethodGet, "/api/v1/habits?page=abc", staff, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHabitEndpoints_Export(t *testing.T) {
	api := newTestAPI(t, newTestConfig(), nil)
	staff := api.signup(staffEmail, "boss")
	ann := api.signup("ann@example.com", "ann")
	api.createHabit(ann, nil)
	api.createHabit(staff, nil)

	resp := api.do(http.MethodGet, "/api/v1/habits/export", ann, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(http.MethodGet, "/api/v1/habits/export", staff, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxMIME, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "habits_")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRateLimit(t *testing.T) {
	cfg := newTestConfig()
	cfg.API.RateLimit = config.APIRateLimitConfig{Requests: 2, Window: 60}
	api := newTestAPI(t, cfg, repository.NewMemoryRateLimiter())

	for i := 0; i < 2; i++ {
		resp := api.do(http.MethodPost, "/api/v1/users/token", "", map[string]string{"email": "x@y.z", "password": "p"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := api.do(http.MethodPost, "/api/v1/users/token", "", map[string]string{"email": "x@y.z", "password": "p"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	// Проверки здоровья не ограничиваются
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "", nil, nil).StatusCode)
}

func TestRateLimit_BeforeAuth(t *testing.T) {
	cfg := newTestConfig()
	cfg.API.RateLimit = config.APIRateLimitConfig{Requests: 2, Window: 60}
	api := newTestAPI(t, cfg, repository.NewMemoryRateLimiter())

	for i := 0; i < 2; i++ {
		resp := api.do(http.MethodGet, "/api/v1/habits", "not-a-jwt", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := api.do(http.MethodGet, "/api/v1/habits", "not-a-jwt", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = api.do(http.MethodGet, "/api/v1/users/me", "", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

type stubAuthenticator struct {
	id  access.Identity
	err error
}

func (s stubAuthenticator) Authenticate(context.Context, string) (access.Identity, error) {
	return s.id, s.err
}

func TestHTTPAuth_Wrap(t *testing.T) {
	tests := []struct {
		name   string
		header string
		auth   stubAuthenticator
		status int
	}{
		{"missing token", "", stubAuthenticator{}, http.StatusUnauthorized},
		{"rejected token", "Bearer abc", stubAuthenticator{err: service.ErrUnauthenticated}, http.StatusUnauthorized},
		{"store failure", "Bearer abc", stubAuthenticator{err: fmt.Errorf("get user: %w", sql.ErrConnDone)}, http.StatusInternalServerError},
		{"valid token", "Bearer abc", stubAuthenticator{id: access.Identity{UserID: 7}}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := identityFrom(r.Context())
				require.True(t, ok)
				assert.Equal(t, int64(7), id.UserID)
				w.WriteHeader(http.StatusNoContent)
			})

			r := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			NewHTTPAuth(tt.auth).Wrap(next).ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "connection")
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestDecodeJSON_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad time", `{"time": "noon"}`, "time"},
		{"time wrong type", `{"time": 8}`, "time"},
		{"periodicity overflow", `{"periodicity": "0 2562048:00:00"}`, "periodicity"},
		{"fractional periodicity", `{"periodicity": 1.5}`, "periodicity"},
		{"bool wrong type", `{"is_published": "yes"}`, "is_published"},
		{"not an object", `[1, 2]`, service.NonFieldKey},
		{"malformed", `{"place": `, service.NonFieldKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var in models.HabitInput
			err := decodeJSON(r, &in)

			var verr *service.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
			assert.Len(t, verr.Fields, 1)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Token abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", tt.header)
		got, ok := bearerToken(r)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
