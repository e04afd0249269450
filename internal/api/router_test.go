package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/api/middleware"
	"github.com/lakehouse-dev/scheduler/internal/auth"
	"github.com/lakehouse-dev/scheduler/internal/config"
	"github.com/lakehouse-dev/scheduler/internal/db"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/metrics"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	auth   *auth.BasicAuthenticator
	broker *events.Broker
	users  *service.UserService
}

func setupRouter(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "api.db"),
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	enf, err := rbac.NewEnforcer(database, slog.Default())
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	broker := events.NewBroker(16)
	opts := []service.Option{service.WithPublisher(broker), service.WithMetrics(collector)}

	authenticator := auth.NewBasicAuthenticator(database, "test-secret", time.Hour)
	users := service.NewUserService(database, opts...)

	router := NewRouter(Dependencies{
		DB:            database,
		Authenticator: authenticator,
		Enforcer:      enf,
		Broker:        broker,
		Services: Services{
			Reservations: service.NewReservationService(database, opts...),
			Duties:       service.NewDutyService(database, opts...),
			Assignments:  service.NewAssignmentService(database, opts...),
			Users:        users,
		},
		Metrics:     collector,
		Gatherer:    reg,
		RateLimiter: limiter,
	})

	return &testServer{router: router, db: database, auth: authenticator, broker: broker, users: users}
}

// signup registers a user (promoted when admin is set) and returns a token.
func (s *testServer) signup(t *testing.T, username string, admin bool) (string, *models.User) {
	t.Helper()
	user, err := s.users.Signup(context.Background(), service.SignupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("signup %s: %v", username, err)
	}
	if admin {
		if err := s.db.Model(user).Update("role", models.RoleAdmin).Error; err != nil {
			t.Fatalf("promote: %v", err)
		}
		user.Role = models.RoleAdmin
	}
	token, err := s.auth.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token, user
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthAndVersion(t *testing.T) {
	s := setupRouter(t, nil)

	if w := s.do(t, http.MethodGet, "/api/v1/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/version", "", nil); w.Code != http.StatusOK {
		t.Errorf("version: expected 200, got %d", w.Code)
	}
}

func TestSignupAndLogin(t *testing.T) {
	s := setupRouter(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	signedUp := decode[auth.LoginResponse](t, w)
	if signedUp.Token == "" || signedUp.User.Role != models.RoleUser {
		t.Errorf("unexpected signup response %+v", signedUp)
	}

	w = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "password123",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup: expected 409, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}
	token := decode[auth.LoginResponse](t, w).Token

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	if me := decode[models.User](t, w); me.Username != "alice" {
		t.Errorf("expected alice, got %s", me.Username)
	}

	if w := s.do(t, http.MethodGet, "/api/v1/reservations", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", w.Code)
	}
}

func TestReservationEndpoints(t *testing.T) {
	s := setupRouter(t, nil)
	alice, _ := s.signup(t, "alice", false)
	bob, _ := s.signup(t, "bob", false)

	w := s.do(t, http.MethodPost, "/api/v1/reservations", alice, map[string]string{
		"start_date": "2099-07-01",
		"end_date":   "2099-07-05",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[models.Reservation](t, w)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"overlap on shared day", map[string]string{"start_date": "2099-07-05", "end_date": "2099-07-08"}, http.StatusConflict},
		{"end before start", map[string]string{"start_date": "2099-08-05", "end_date": "2099-08-01"}, http.StatusBadRequest},
		{"missing dates", map[string]string{}, http.StatusBadRequest},
		{"malformed date", map[string]string{"start_date": "07/01/2099", "end_date": "2099-07-02"}, http.StatusBadRequest},
		{"adjacent", map[string]string{"start_date": "2099-07-06", "end_date": "2099-07-06"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, http.MethodPost, "/api/v1/reservations", bob, tt.body); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	w = s.do(t, http.MethodGet, "/api/v1/reservations/availability?start=2099-07-03&end=2099-07-10", bob, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("availability: expected 200, got %d", w.Code)
	}
	if avail := decode[service.Availability](t, w); avail.Available || len(avail.Conflicts) != 2 {
		t.Errorf("expected two conflicts, got %+v", avail)
	}

	w = s.do(t, http.MethodGet, "/api/v1/reservations/my", alice, nil)
	if mine := decode[[]models.Reservation](t, w); len(mine) != 1 || mine[0].ID != created.ID {
		t.Errorf("unexpected reservations for alice: %+v", mine)
	}

	path := fmt.Sprintf("/api/v1/reservations/%d", created.ID)
	if w := s.do(t, http.MethodDelete, path, bob, nil); w.Code != http.StatusForbidden {
		t.Errorf("delete by non-owner: expected 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, path, alice, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete by owner: expected 204, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, path, alice, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: expected 404, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/v1/reservations/abc", alice, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", w.Code)
	}
}

func TestDutyAndAssignmentEndpoints(t *testing.T) {
	s := setupRouter(t, nil)
	admin, _ := s.signup(t, "root", true)
	alice, aliceUser := s.signup(t, "alice", false)
	bob, _ := s.signup(t, "bob", false)

	duty := map[string]any{"name": "Clean gutters", "estimated_hours": 2, "priority": "HIGH"}
	if w := s.do(t, http.MethodPost, "/api/v1/duties", alice, duty); w.Code != http.StatusForbidden {
		t.Errorf("member create duty: expected 403, got %d", w.Code)
	}
	w := s.do(t, http.MethodPost, "/api/v1/duties", admin, duty)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create duty: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[models.Duty](t, w)

	w = s.do(t, http.MethodGet, "/api/v1/duties/search?q=GUTTER", alice, nil)
	if found := decode[[]models.Duty](t, w); len(found) != 1 || found[0].ID != created.ID {
		t.Errorf("search: unexpected %+v", found)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/duties/filter?priority=bogus", alice, nil); w.Code != http.StatusBadRequest {
		t.Errorf("filter bogus priority: expected 400, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/duties/%d/assign", created.ID), alice, map[string]string{
		"assigned_date": "2024-01-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("assign: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	assignment := decode[models.DutyAssignment](t, w)
	if assignment.UserID != aliceUser.ID {
		t.Errorf("expected assignment to default to caller, got user %d", assignment.UserID)
	}

	if w := s.do(t, http.MethodPost, "/api/v1/duties/999/assign", alice, map[string]string{"assigned_date": "2024-01-01"}); w.Code != http.StatusNotFound {
		t.Errorf("assign unknown duty: expected 404, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/duties/assignments/overdue", alice, nil)
	if overdue := decode[[]models.DutyAssignment](t, w); len(overdue) != 1 || overdue[0].Duty.Name != "Clean gutters" {
		t.Errorf("overdue: unexpected %+v", overdue)
	}

	complete := fmt.Sprintf("/api/v1/duties/assignments/%d/complete", assignment.ID)
	if w := s.do(t, http.MethodPut, complete, bob, nil); w.Code != http.StatusForbidden {
		t.Errorf("complete by stranger: expected 403, got %d", w.Code)
	}
	w = s.do(t, http.MethodPut, complete, alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete by assignee: expected 200, got %d", w.Code)
	}
	if done := decode[models.DutyAssignment](t, w); done.Status != models.AssignmentCompleted || done.CompletedDate == nil {
		t.Errorf("unexpected completed assignment %+v", done)
	}

	cancel := fmt.Sprintf("/api/v1/duties/assignments/%d/cancel", assignment.ID)
	if w := s.do(t, http.MethodPut, cancel, alice, nil); w.Code != http.StatusBadRequest {
		t.Errorf("cancel completed: expected 400, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/duties/assignments?status=COMPLETED", alice, nil)
	if list := decode[[]models.DutyAssignment](t, w); len(list) != 1 {
		t.Errorf("by status: expected 1, got %d", len(list))
	}
	if w := s.do(t, http.MethodGet, "/api/v1/duties/assignments?status=DONE", alice, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status: expected 400, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/duties/stats", alice, nil)
	if stats := decode[[]service.DutyWithCount](t, w); len(stats) != 1 || stats[0].AssignmentCount != 1 {
		t.Errorf("stats: unexpected %+v", stats)
	}

	if w := s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/duties/%d", created.ID), admin, nil); w.Code != http.StatusNoContent {
		t.Errorf("deactivate: expected 204, got %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/v1/duties", alice, nil)
	if active := decode[[]models.Duty](t, w); len(active) != 0 {
		t.Errorf("expected no active duties, got %d", len(active))
	}
}

func TestUserEndpoints(t *testing.T) {
	s := setupRouter(t, nil)
	admin, adminUser := s.signup(t, "root", true)
	alice, aliceUser := s.signup(t, "alice", false)

	if w := s.do(t, http.MethodGet, "/api/v1/users", alice, nil); w.Code != http.StatusForbidden {
		t.Errorf("member list users: expected 403, got %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/v1/users", admin, nil)
	if users := decode[[]models.User](t, w); len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	if w := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", aliceUser.ID), alice, nil); w.Code != http.StatusOK {
		t.Errorf("self lookup: expected 200, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", adminUser.ID), alice, nil); w.Code != http.StatusForbidden {
		t.Errorf("peer lookup: expected 403, got %d", w.Code)
	}

	w = s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", aliceUser.ID), alice, map[string]string{"display_name": "Alice A."})
	if w.Code != http.StatusOK {
		t.Fatalf("update self: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	role := fmt.Sprintf("/api/v1/users/%d/role", aliceUser.ID)
	if w := s.do(t, http.MethodPut, role, admin, map[string]string{"role": "superuser"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad role: expected 400, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, role, admin, map[string]string{"role": "admin"}); w.Code != http.StatusOK {
		t.Errorf("promote: expected 200, got %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/v1/users/by-role/ADMIN", admin, nil)
	if admins := decode[[]models.User](t, w); len(admins) != 2 {
		t.Errorf("expected 2 admins, got %d", len(admins))
	}

	if w := s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", adminUser.ID), admin, nil); w.Code != http.StatusBadRequest {
		t.Errorf("self delete: expected 400, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", aliceUser.ID), admin, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/admin/audit-logs?limit=5", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit logs: expected 200, got %d", w.Code)
	}
	if logs := decode[[]models.AuditLog](t, w); len(logs) == 0 || len(logs) > 5 {
		t.Errorf("unexpected audit log count %d", len(logs))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupRouter(t, nil)
	s.do(t, http.MethodGet, "/api/v1/health", "", nil)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `scheduler_http_requests_total{method="GET",route="/api/v1/health",status_code="200"} 1`) {
		t.Errorf("expected health request to be counted:\n%s", w.Body.String())
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 1})
	defer limiter.Stop()
	s := setupRouter(t, limiter)
	alice, _ := s.signup(t, "alice", false)

	if w := s.do(t, http.MethodGet, "/api/v1/duties", alice, nil); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/duties", alice, nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", w.Code)
	}
	// Public routes are not limited.
	if w := s.do(t, http.MethodGet, "/api/v1/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", w.Code)
	}
}

func TestEventStream(t *testing.T) {
	s := setupRouter(t, nil)
	alice, _ := s.signup(t, "alice", false)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events?token="+alice, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	for s.broker.SubscriberCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("subscriber never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if w := s.do(t, http.MethodPost, "/api/v1/reservations", alice, map[string]string{
		"start_date": "2099-01-01",
		"end_date":   "2099-01-02",
	}); w.Code != http.StatusCreated {
		t.Fatalf("create reservation: expected 201, got %d", w.Code)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if scanner.Text() == "event: "+string(events.ReservationCreated) {
			return
		}
	}
	t.Fatalf("stream ended without a reservation event: %v", scanner.Err())
}
