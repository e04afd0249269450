package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

// Objects guarded by the role enforcer.
const (
	ObjReservations = "reservations"
	ObjDuties       = "duties"
	ObjAssignments  = "assignments"
	ObjUsers        = "users"
	ObjEvents       = "events"
)

// Actions guarded by the role enforcer.
const (
	ActRead     = "read"
	ActCreate   = "create"
	ActUpdate   = "update"
	ActDelete   = "delete"
	ActComplete = "complete"
	ActAssign   = "assign"
)

// defaultPolicies are seeded on startup. ADMIN inherits USER and may do
// anything; USER may book, read the catalog and work on assignments.
var defaultPolicies = [][]string{
	{string(models.RoleAdmin), "*", "*"},
	{string(models.RoleUser), ObjReservations, ActRead},
	{string(models.RoleUser), ObjReservations, ActCreate},
	{string(models.RoleUser), ObjReservations, ActDelete},
	{string(models.RoleUser), ObjDuties, ActRead},
	{string(models.RoleUser), ObjDuties, ActAssign},
	{string(models.RoleUser), ObjAssignments, ActRead},
	{string(models.RoleUser), ObjAssignments, ActComplete},
	{string(models.RoleUser), ObjAssignments, ActUpdate},
	{string(models.RoleUser), ObjUsers, ActRead},
	{string(models.RoleUser), ObjUsers, ActUpdate},
	{string(models.RoleUser), ObjEvents, ActRead},
}

// Enforcer gates route-level permissions by role.
type Enforcer struct {
	e *casbin.Enforcer
}

// NewEnforcer builds a casbin enforcer whose policies live in the database
// and seeds the default role policies.
func NewEnforcer(db *gorm.DB, logger *slog.Logger) (*Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	// Load model from embedded string
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	// Load policies from database
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	enf := &Enforcer{e: e}
	if err := enf.seed(); err != nil {
		return nil, err
	}

	logger.Info("RBAC enforcer initialized")
	return enf, nil
}

func (enf *Enforcer) seed() error {
	for _, p := range defaultPolicies {
		if _, err := enf.e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return fmt.Errorf("failed to seed policy %v: %w", p, err)
		}
	}
	if _, err := enf.e.AddGroupingPolicy(string(models.RoleAdmin), string(models.RoleUser)); err != nil {
		return fmt.Errorf("failed to seed role inheritance: %w", err)
	}
	return nil
}

// Allowed checks whether role may perform act on obj.
func (enf *Enforcer) Allowed(role models.Role, obj, act string) (bool, error) {
	return enf.e.Enforce(string(role), obj, act)
}

// Grant adds a permission for a role.
func (enf *Enforcer) Grant(role models.Role, obj, act string) error {
	_, err := enf.e.AddPolicy(string(role), obj, act)
	return err
}

// Revoke removes a permission from a role.
func (enf *Enforcer) Revoke(role models.Role, obj, act string) error {
	_, err := enf.e.RemovePolicy(string(role), obj, act)
	return err
}

// Permissions lists the explicit policies held by a role.
func (enf *Enforcer) Permissions(role models.Role) ([][]string, error) {
	return enf.e.GetFilteredPolicy(0, string(role))
}
