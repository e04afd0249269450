package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/api/handlers"
	"github.com/lakehouse-dev/scheduler/internal/api/middleware"
	"github.com/lakehouse-dev/scheduler/internal/auth"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/metrics"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Reservations *service.ReservationService
	Duties       *service.DutyService
	Assignments  *service.AssignmentService
	Users        *service.UserService
}

// Dependencies holds everything the router wires into handlers.
type Dependencies struct {
	Mode          string // "production" switches gin to release mode
	DB            *gorm.DB
	Authenticator *auth.BasicAuthenticator
	Enforcer      *rbac.Enforcer
	Broker        *events.Broker
	Services      Services
	Metrics       metrics.Recorder
	Gatherer      prometheus.Gatherer
	RateLimiter   *middleware.RateLimiter // nil disables rate limiting
}

// NewRouter creates and configures the Gin router
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(deps.Metrics))
	router.Use(middleware.CORS())

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", handlers.HealthCheck(deps.DB))
		public.GET("/version", handlers.GetVersion)
		public.POST("/auth/login", handlers.Login(deps.Authenticator))
		public.POST("/auth/signup", handlers.Signup(deps.Services.Users, deps.Authenticator))
	}

	perm := func(obj, act string) gin.HandlerFunc {
		return middleware.RequirePermission(deps.Enforcer, obj, act)
	}

	reservationHandler := handlers.NewReservationHandler(deps.Services.Reservations)
	dutyHandler := handlers.NewDutyHandler(deps.Services.Duties, deps.Services.Assignments)
	assignmentHandler := handlers.NewAssignmentHandler(deps.Services.Assignments, deps.Services.Duties)
	userHandler := handlers.NewUserHandler(deps.Services.Users)
	eventHandler := handlers.NewEventHandler(deps.Broker)

	// Protected routes (require authentication)
	protected := router.Group("/api/v1")
	protected.Use(deps.Authenticator.Middleware())
	if deps.RateLimiter != nil {
		protected.Use(deps.RateLimiter.Middleware())
	}
	{
		protected.GET("/auth/me", handlers.GetCurrentUser(deps.Authenticator))

		// Reservation endpoints
		protected.GET("/reservations", perm(rbac.ObjReservations, rbac.ActRead), reservationHandler.ListReservations)
		protected.GET("/reservations/my", perm(rbac.ObjReservations, rbac.ActRead), reservationHandler.ListMyReservations)
		protected.GET("/reservations/between", perm(rbac.ObjReservations, rbac.ActRead), reservationHandler.ListReservationsBetween)
		protected.GET("/reservations/availability", perm(rbac.ObjReservations, rbac.ActRead), reservationHandler.CheckAvailability)
		protected.GET("/reservations/:id", perm(rbac.ObjReservations, rbac.ActRead), reservationHandler.GetReservation)
		protected.POST("/reservations", perm(rbac.ObjReservations, rbac.ActCreate), reservationHandler.CreateReservation)
		protected.DELETE("/reservations/:id", perm(rbac.ObjReservations, rbac.ActDelete), reservationHandler.DeleteReservation)

		// Duty catalog endpoints
		protected.GET("/duties", perm(rbac.ObjDuties, rbac.ActRead), dutyHandler.ListDuties)
		protected.GET("/duties/search", perm(rbac.ObjDuties, rbac.ActRead), dutyHandler.SearchDuties)
		protected.GET("/duties/filter", perm(rbac.ObjDuties, rbac.ActRead), dutyHandler.FilterDuties)
		protected.GET("/duties/overdue", perm(rbac.ObjDuties, rbac.ActRead), dutyHandler.ListOverdueDuties)
		protected.GET("/duties/stats", perm(rbac.ObjDuties, rbac.ActRead), dutyHandler.DutyStats)
		protected.GET("/duties/:id", perm(rbac.ObjDuties, rbac.ActRead), dutyHandler.GetDuty)
		protected.POST("/duties", perm(rbac.ObjDuties, rbac.ActCreate), dutyHandler.CreateDuty)
		protected.PUT("/duties/:id", perm(rbac.ObjDuties, rbac.ActUpdate), dutyHandler.UpdateDuty)
		protected.DELETE("/duties/:id", perm(rbac.ObjDuties, rbac.ActDelete), dutyHandler.DeactivateDuty)
		protected.POST("/duties/:id/assign", perm(rbac.ObjDuties, rbac.ActAssign), dutyHandler.AssignDuty)

		// Assignment endpoints
		protected.GET("/duties/assignments", perm(rbac.ObjAssignments, rbac.ActRead), assignmentHandler.ListAssignments)
		protected.GET("/duties/assignments/my", perm(rbac.ObjAssignments, rbac.ActRead), assignmentHandler.ListMyAssignments)
		protected.GET("/duties/assignments/overdue", perm(rbac.ObjAssignments, rbac.ActRead), assignmentHandler.ListOverdueAssignments)
		protected.GET("/duties/assignments/:id", perm(rbac.ObjAssignments, rbac.ActRead), assignmentHandler.GetAssignment)
		protected.PUT("/duties/assignments/:id/complete", perm(rbac.ObjAssignments, rbac.ActComplete), assignmentHandler.CompleteAssignment)
		protected.PUT("/duties/assignments/:id/start", perm(rbac.ObjAssignments, rbac.ActUpdate), assignmentHandler.StartAssignment)
		protected.PUT("/duties/assignments/:id/cancel", perm(rbac.ObjAssignments, rbac.ActUpdate), assignmentHandler.CancelAssignment)

		// User endpoints
		protected.GET("/users/:id", perm(rbac.ObjUsers, rbac.ActRead), userHandler.GetUser)
		protected.PUT("/users/:id", perm(rbac.ObjUsers, rbac.ActUpdate), userHandler.UpdateUser)

		// Live events
		protected.GET("/events", perm(rbac.ObjEvents, rbac.ActRead), eventHandler.StreamEvents)

		// Admin endpoints
		admin := protected.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/users", userHandler.ListUsers)
			admin.GET("/users/by-role/:role", userHandler.ListUsersByRole)
			admin.PUT("/users/:id/role", userHandler.SetUserRole)
			admin.DELETE("/users/:id", userHandler.DeleteUser)
			admin.GET("/admin/audit-logs", handlers.ListAuditLogs(deps.DB))
		}
	}

	slog.Info("API router initialized", "mode", deps.Mode)
	return router
}
