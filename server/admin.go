package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/vaultflow/auth"
	"github.com/kbukum/vaultflow/component"
	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/observability"
	"github.com/kbukum/vaultflow/scheduler"
	"github.com/kbukum/vaultflow/server/middleware"
	"github.com/kbukum/vaultflow/sse"
	"github.com/kbukum/vaultflow/version"
)

// Jobs is the part of the scheduler the admin API drives.
type Jobs interface {
	Jobs() []scheduler.JobInfo
	Job(id string) (scheduler.JobInfo, bool)
	Trigger(id string) (bool, error)
}

// Admin wires the admin routes.
type Admin struct {
	Service string
	Jobs    Jobs
	// Steps lists registered step names.
	Steps func() []string
	// Health reports component health for GET /health; nil means healthy.
	Health func(ctx context.Context) []component.Health
	// Tokens verifies bearer tokens on /jobs. Nil disables authentication.
	Tokens      middleware.TokenParser
	TriggerRate float64
	// Events serves GET /jobs/events when set.
	Events *sse.Hub
	Log    *logger.Logger
}

// Register mounts the admin routes on engine.
func (a *Admin) Register(engine *gin.Engine) {
	if a.Log == nil {
		a.Log = logger.NewNop()
	}
	engine.GET("/health", a.health)
	engine.GET("/version", a.version)
	engine.GET("/steps", a.steps)

	jobs := engine.Group("/jobs", middleware.Auth(a.Tokens))
	jobs.GET("", middleware.RequireScope(auth.ScopeRead), a.listJobs)
	if a.Events != nil {
		jobs.GET("/events", middleware.RequireScope(auth.ScopeRead), a.events)
	}
	jobs.GET("/:id", middleware.RequireScope(auth.ScopeRead), a.getJob)
	jobs.POST("/:id/trigger",
		middleware.RequireScope(auth.ScopeTrigger),
		middleware.RateLimit(middleware.RateLimitConfig{Rate: a.TriggerRate, Burst: 3}),
		a.trigger,
	)
}

func (a *Admin) health(c *gin.Context) {
	report := observability.NewServiceHealth(a.Service, version.Version)
	if a.Health != nil {
		for _, ch := range a.Health(c.Request.Context()) {
			report.AddComponent(observability.Health{
				Name:    ch.Name,
				Status:  healthStatus(ch.Status),
				Message: ch.Message,
			})
		}
	}
	status := http.StatusOK
	if report.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func healthStatus(s component.HealthStatus) observability.HealthStatus {
	switch s {
	case component.StatusHealthy:
		return observability.HealthStatusUp
	case component.StatusDegraded:
		return observability.HealthStatusDegraded
	default:
		return observability.HealthStatusDown
	}
}

func (a *Admin) version(c *gin.Context) {
	RespondOK(c, version.GetVersionInfo())
}

func (a *Admin) steps(c *gin.Context) {
	names := []string{}
	if a.Steps != nil {
		names = a.Steps()
	}
	RespondOK(c, names)
}

func (a *Admin) listJobs(c *gin.Context) {
	if a.Jobs == nil {
		RespondOK(c, []scheduler.JobInfo{})
		return
	}
	RespondOK(c, a.Jobs.Jobs())
}

func (a *Admin) getJob(c *gin.Context) {
	id := c.Param("id")
	if a.Jobs == nil {
		RespondWithError(c, apperrors.NotFound("job", id))
		return
	}
	info, ok := a.Jobs.Job(id)
	if !ok {
		RespondWithError(c, apperrors.NotFound("job", id))
		return
	}
	RespondOK(c, info)
}

// events streams job state changes; ?job= filters by id pattern.
func (a *Admin) events(c *gin.Context) {
	sse.ServeSSE(a.Events, c.Writer, c.Request, uuid.NewString(), c.Query("job"))
}

// trigger fires a job now. dispatched is false when the job was already
// running and the firing coalesced into it.
func (a *Admin) trigger(c *gin.Context) {
	id := c.Param("id")
	if a.Jobs == nil {
		RespondWithError(c, apperrors.NotFound("job", id))
		return
	}
	dispatched, err := a.Jobs.Trigger(id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	a.Log.Info("job triggered", logger.Fields("agent_id", id, "dispatched", dispatched, "subject", c.GetString("subject")))
	RespondAccepted(c, gin.H{"id": id, "dispatched": dispatched})
}
