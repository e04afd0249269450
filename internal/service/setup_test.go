package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testToday is the calendar date every service sees in tests.
var testToday = models.MustParseDate("2024-03-20")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testToday.Time().Add(10 * time.Hour)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advanceDays(n int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, n)
	c.mu.Unlock()
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// recordingMetrics counts Recorder calls.
type recordingMetrics struct {
	mu           sync.Mutex
	reservations map[string]int
	transitions  map[string]int
	lastOverdue  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{reservations: map[string]int{}, transitions: map[string]int{}}
}

func (m *recordingMetrics) RecordReservation(outcome string) {
	m.mu.Lock()
	m.reservations[outcome]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordAssignmentTransition(status string) {
	m.mu.Lock()
	m.transitions[status]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordOverdueQuery(count int) {
	m.mu.Lock()
	m.lastOverdue = count
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}

type testEnv struct {
	db      *gorm.DB
	clock   *testClock
	events  *recordingPublisher
	metrics *recordingMetrics

	reservations *ReservationService
	assignments  *AssignmentService
	duties       *DutyService
	users        *UserService
}

// testSetup opens a fresh sqlite database and wires every service to a fixed
// clock.
func testSetup(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.User{},
		&models.Duty{},
		&models.DutyAssignment{},
		&models.Reservation{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db:      db,
		clock:   newTestClock(),
		events:  &recordingPublisher{},
		metrics: newRecordingMetrics(),
	}
	opts := []Option{
		WithClock(env.clock.Now),
		WithPublisher(env.events),
		WithMetrics(env.metrics),
	}
	env.reservations = NewReservationService(db, opts...)
	env.assignments = NewAssignmentService(db, opts...)
	env.duties = NewDutyService(db, opts...)
	env.users = NewUserService(db, opts...)
	return env
}

// createTestUser inserts a user and returns the matching actor.
func createTestUser(t *testing.T, db *gorm.DB, username string, role models.Role) rbac.Actor {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@test.com",
		PasswordHash: "x",
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return rbac.ActorOf(&user)
}

// createTestDuty inserts a duty with an explicit creation time so ordering
// assertions do not depend on wall-clock resolution.
func createTestDuty(t *testing.T, db *gorm.DB, name, description string, priority models.Priority, active bool, created time.Time) *models.Duty {
	t.Helper()
	duty := models.Duty{
		Name:        name,
		Description: description,
		Priority:    priority,
		IsActive:    true,
		CreatedAt:   created,
	}
	if err := db.Create(&duty).Error; err != nil {
		t.Fatalf("create duty: %v", err)
	}
	// IsActive defaults to true, so a false value is written separately.
	if !active {
		if err := db.Model(&duty).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate duty: %v", err)
		}
		duty.IsActive = false
	}
	return &duty
}

func date(s string) models.Date {
	return models.MustParseDate(s)
}

func dutyNames(duties []models.Duty) []string {
	names := make([]string, len(duties))
	for i, d := range duties {
		names[i] = d.Name
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assertErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	if !errors.As(err, &target) {
		t.Fatalf("expected %T, got %v", target, err)
	}
	return target
}
