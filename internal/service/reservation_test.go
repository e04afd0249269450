package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/metrics"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
)

func book(t *testing.T, env *testEnv, actor rbac.Actor, start, end string) *models.Reservation {
	t.Helper()
	res, err := env.reservations.Create(context.Background(), actor, CreateReservationRequest{
		StartDate: date(start),
		EndDate:   date(end),
	})
	if err != nil {
		t.Fatalf("book %s..%s: %v", start, end, err)
	}
	return res
}

func TestCreateReservation_Succeeds(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)

	res, err := env.reservations.Create(context.Background(), alice, CreateReservationRequest{
		StartDate: date("2024-04-01"),
		EndDate:   date("2024-04-03"),
		Notes:     "spring trip",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID == 0 {
		t.Error("expected an ID to be assigned")
	}
	if res.Status != models.ReservationActive {
		t.Errorf("expected status ACTIVE, got %s", res.Status)
	}
	if res.UserID != alice.ID {
		t.Errorf("expected owner %d, got %d", alice.ID, res.UserID)
	}

	stored, err := env.reservations.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.StartDate != date("2024-04-01") || stored.EndDate != date("2024-04-03") {
		t.Errorf("dates did not round-trip: %s..%s", stored.StartDate, stored.EndDate)
	}
	if stored.User.Username != "alice" {
		t.Errorf("expected owner preloaded, got %q", stored.User.Username)
	}

	if got := env.events.types(); len(got) != 1 || got[0] != events.ReservationCreated {
		t.Errorf("expected one reservation.created event, got %v", got)
	}
	if env.metrics.reservations[metrics.OutcomeCreated] != 1 {
		t.Errorf("expected created outcome recorded, got %v", env.metrics.reservations)
	}
}

func TestCreateReservation_Validation(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)

	tests := []struct {
		name string
		req  CreateReservationRequest
	}{
		{"missing start", CreateReservationRequest{EndDate: date("2024-04-01")}},
		{"missing end", CreateReservationRequest{StartDate: date("2024-04-01")}},
		{"end before start", CreateReservationRequest{StartDate: date("2024-04-05"), EndDate: date("2024-04-01")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.reservations.Create(context.Background(), alice, tt.req)
			assertErrorAs[*ValidationError](t, err)
		})
	}
}

func TestCreateReservation_SingleDay(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)
	book(t, env, alice, "2024-04-01", "2024-04-01")
}

func TestCreateReservation_UnknownUser(t *testing.T) {
	env := testSetup(t)

	_, err := env.reservations.Create(context.Background(), rbac.Actor{ID: 42, Role: models.RoleUser}, CreateReservationRequest{
		StartDate: date("2024-04-01"),
		EndDate:   date("2024-04-02"),
	})
	nf := assertErrorAs[*NotFoundError](t, err)
	if nf.Entity != "user" || nf.ID != 42 {
		t.Errorf("expected user 42 not found, got %v", nf)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound)")
	}
}

func TestCreateReservation_Overlap(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		conflict bool
	}{
		{"touching end", "2024-01-15", "2024-01-20", true},
		{"touching start", "2024-01-05", "2024-01-10", true},
		{"inside", "2024-01-11", "2024-01-12", true},
		{"enclosing", "2024-01-01", "2024-01-31", true},
		{"identical", "2024-01-10", "2024-01-15", true},
		{"day after", "2024-01-16", "2024-01-20", false},
		{"day before", "2024-01-01", "2024-01-09", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testSetup(t)
			alice := createTestUser(t, env.db, "alice", models.RoleUser)
			bob := createTestUser(t, env.db, "bob", models.RoleUser)
			book(t, env, alice, "2024-01-10", "2024-01-15")

			_, err := env.reservations.Create(context.Background(), bob, CreateReservationRequest{
				StartDate: date(tt.start),
				EndDate:   date(tt.end),
			})
			if tt.conflict {
				assertErrorAs[*ConflictError](t, err)
			} else if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
		})
	}
}

func TestCreateReservation_SharedBoundaryDay(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)
	first := book(t, env, alice, "2024-01-01", "2024-01-10")

	_, err := env.reservations.Create(context.Background(), alice, CreateReservationRequest{
		StartDate: date("2024-01-10"),
		EndDate:   date("2024-01-15"),
	})
	conflict := assertErrorAs[*ConflictError](t, err)
	for _, want := range []string{"#1", "2024-01-01", "2024-01-10"} {
		if !strings.Contains(conflict.Message, want) {
			t.Errorf("expected conflict message to contain %q, got %q", want, conflict.Message)
		}
	}
	if first.ID != 1 {
		t.Fatalf("expected first reservation to have ID 1, got %d", first.ID)
	}
	if env.metrics.reservations[metrics.OutcomeConflict] != 1 {
		t.Errorf("expected conflict outcome recorded, got %v", env.metrics.reservations)
	}

	var count int64
	env.db.Model(&models.Reservation{}).Count(&count)
	if count != 1 {
		t.Errorf("expected rejected request to leave 1 reservation, got %d", count)
	}
}

func TestCreateReservation_Adjacent(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)
	book(t, env, alice, "2024-01-01", "2024-01-05")
	book(t, env, alice, "2024-01-06", "2024-01-10")
}

func TestCreateReservation_Concurrent(t *testing.T) {
	env := testSetup(t)

	const workers = 8
	actors := make([]rbac.Actor, workers)
	for i := range actors {
		actors[i] = createTestUser(t, env.db, "user"+string(rune('a'+i)), models.RoleUser)
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.reservations.Create(context.Background(), actors[i], CreateReservationRequest{
				StartDate: date("2024-05-01"),
				EndDate:   date("2024-05-07"),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assertErrorAs[*ConflictError](t, err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one winner, got %d", succeeded)
	}
}

// TestCreateReservation_NeverOverlaps books random ranges and checks that
// acceptance matches the overlap predicate against what was accepted before.
func TestCreateReservation_NeverOverlaps(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)
	rng := rand.New(rand.NewSource(7))
	base := date("2024-01-01")

	var accepted []models.Reservation
	for i := 0; i < 60; i++ {
		start := base.AddDays(rng.Intn(120))
		end := start.AddDays(rng.Intn(6))

		wantConflict := false
		for j := range accepted {
			if accepted[j].Overlaps(start, end) {
				wantConflict = true
				break
			}
		}

		res, err := env.reservations.Create(context.Background(), alice, CreateReservationRequest{StartDate: start, EndDate: end})
		if wantConflict {
			assertErrorAs[*ConflictError](t, err)
			continue
		}
		if err != nil {
			t.Fatalf("expected %s..%s to be accepted: %v", start, end, err)
		}
		accepted = append(accepted, *res)
	}

	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			if accepted[i].Overlaps(accepted[j].StartDate, accepted[j].EndDate) {
				t.Errorf("reservations %d and %d overlap", accepted[i].ID, accepted[j].ID)
			}
		}
	}
}

func TestListCurrentAndFuture(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)

	book(t, env, alice, "2024-03-25", "2024-03-27")
	book(t, env, alice, "2024-03-15", "2024-03-19") // ended yesterday
	book(t, env, alice, "2024-03-20", "2024-03-20") // ends today
	book(t, env, alice, "2024-04-01", "2024-04-02")

	list, err := env.reservations.ListCurrentAndFuture(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, r := range list {
		got = append(got, r.StartDate.String())
	}
	want := []string{"2024-03-20", "2024-03-25", "2024-04-01"}
	if !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestListReservationsByUserAndBetween(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)
	bob := createTestUser(t, env.db, "bob", models.RoleUser)

	book(t, env, alice, "2024-04-10", "2024-04-12")
	book(t, env, bob, "2024-04-01", "2024-04-03")
	book(t, env, alice, "2024-04-20", "2024-05-02")

	mine, err := env.reservations.ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 || mine[0].StartDate != date("2024-04-10") {
		t.Errorf("unexpected reservations for alice: %+v", mine)
	}

	april, err := env.reservations.ListBetween(context.Background(), date("2024-04-01"), date("2024-04-30"))
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(april) != 2 {
		t.Errorf("expected 2 reservations inside April, got %d", len(april))
	}

	_, err = env.reservations.ListBetween(context.Background(), date("2024-04-30"), date("2024-04-01"))
	assertErrorAs[*ValidationError](t, err)
}

func TestCheckAvailability(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)
	book(t, env, alice, "2024-04-10", "2024-04-12")

	avail, err := env.reservations.CheckAvailability(context.Background(), date("2024-04-12"), date("2024-04-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if avail.Available || len(avail.Conflicts) != 1 {
		t.Errorf("expected one conflict, got %+v", avail)
	}

	avail, err = env.reservations.CheckAvailability(context.Background(), date("2024-04-13"), date("2024-04-14"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !avail.Available {
		t.Errorf("expected range to be available, got %+v", avail)
	}

	var count int64
	env.db.Model(&models.Reservation{}).Count(&count)
	if count != 1 {
		t.Errorf("availability check must not book, found %d reservations", count)
	}
}

func TestDeleteReservation(t *testing.T) {
	env := testSetup(t)
	alice := createTestUser(t, env.db, "alice", models.RoleUser)
	bob := createTestUser(t, env.db, "bob", models.RoleUser)
	admin := createTestUser(t, env.db, "admin", models.RoleAdmin)

	t.Run("other user denied", func(t *testing.T) {
		res := book(t, env, alice, "2024-04-01", "2024-04-02")
		err := env.reservations.Delete(context.Background(), bob, res.ID)
		assertErrorAs[*UnauthorizedError](t, err)
		if !errors.Is(err, ErrUnauthorized) {
			t.Error("expected errors.Is(err, ErrUnauthorized)")
		}
		if _, err := env.reservations.Get(context.Background(), res.ID); err != nil {
			t.Errorf("reservation should still exist: %v", err)
		}
		env.reservations.Delete(context.Background(), alice, res.ID)
	})

	t.Run("owner allowed", func(t *testing.T) {
		res := book(t, env, alice, "2024-04-01", "2024-04-02")
		if err := env.reservations.Delete(context.Background(), alice, res.ID); err != nil {
			t.Fatalf("owner delete: %v", err)
		}
		_, err := env.reservations.Get(context.Background(), res.ID)
		assertErrorAs[*NotFoundError](t, err)
	})

	t.Run("admin allowed", func(t *testing.T) {
		res := book(t, env, alice, "2024-04-01", "2024-04-02")
		if err := env.reservations.Delete(context.Background(), admin, res.ID); err != nil {
			t.Fatalf("admin delete: %v", err)
		}
		// The freed range can be booked again.
		book(t, env, bob, "2024-04-01", "2024-04-02")
	})

	t.Run("missing", func(t *testing.T) {
		err := env.reservations.Delete(context.Background(), admin, 999)
		nf := assertErrorAs[*NotFoundError](t, err)
		if nf.Entity != "reservation" {
			t.Errorf("expected reservation entity, got %s", nf.Entity)
		}
	})
}
