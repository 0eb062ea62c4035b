package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/portyard/internal/audit"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/booking"
	bookingdomain "github.com/smallbiznis/portyard/internal/booking/domain"
	"github.com/smallbiznis/portyard/internal/cache"
	"github.com/smallbiznis/portyard/internal/config"
	"github.com/smallbiznis/portyard/internal/masterdata"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/observability"
	obsmiddleware "github.com/smallbiznis/portyard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/portyard/internal/observability/metrics"
	obstracing "github.com/smallbiznis/portyard/internal/observability/tracing"
	"github.com/smallbiznis/portyard/internal/ratelimit"
	"github.com/smallbiznis/portyard/internal/reporting"
	reportingdomain "github.com/smallbiznis/portyard/internal/reporting/domain"
	"github.com/smallbiznis/portyard/internal/search"
	searchdomain "github.com/smallbiznis/portyard/internal/search/domain"
	"github.com/smallbiznis/portyard/internal/task"
	taskdomain "github.com/smallbiznis/portyard/internal/task/domain"
	"github.com/smallbiznis/portyard/internal/user"
	userdomain "github.com/smallbiznis/portyard/internal/user/domain"
	"github.com/smallbiznis/portyard/internal/vessel"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
	"github.com/smallbiznis/portyard/internal/yard"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	authorization.Module,
	audit.Module,
	user.Module,
	masterdata.Module,
	yard.Module,
	vessel.Module,
	booking.Module,
	task.Module,
	reporting.Module,
	search.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Provide(func(r *authorization.Resolver) RoleResolver { return r }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	resolver     RoleResolver
	gate         authorization.Gate
	writeLimiter *ratelimit.WriteLimiter
	auditSvc     auditdomain.Service
	userSvc      userdomain.Service
	masterSvc    mddomain.Service
	yardSvc      yarddomain.Service
	visitSvc     vesseldomain.Service
	bookingSvc   bookingdomain.Service
	taskSvc      taskdomain.Service
	reportSvc    reportingdomain.Service
	searchSvc    searchdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Resolver     RoleResolver
	Gate         authorization.Gate
	WriteLimiter *ratelimit.WriteLimiter `optional:"true"`
	AuditSvc     auditdomain.Service
	UserSvc      userdomain.Service
	MasterSvc    mddomain.Service
	YardSvc      yarddomain.Service
	VisitSvc     vesseldomain.Service
	BookingSvc   bookingdomain.Service
	TaskSvc      taskdomain.Service
	ReportSvc    reportingdomain.Service
	SearchSvc    searchdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		resolver:     p.Resolver,
		gate:         p.Gate,
		writeLimiter: p.WriteLimiter,
		auditSvc:     p.AuditSvc,
		userSvc:      p.UserSvc,
		masterSvc:    p.MasterSvc,
		yardSvc:      p.YardSvc,
		visitSvc:     p.VisitSvc,
		bookingSvc:   p.BookingSvc,
		taskSvc:      p.TaskSvc,
		reportSvc:    p.ReportSvc,
		searchSvc:    p.SearchSvc,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.Principal())
	api.Use(s.WriteRateLimit())

	api.GET("/me", s.Me)

	api.GET("/parties", s.ListParties)
	api.POST("/parties", s.CreateParty)
	api.GET("/parties/:id", s.GetParty)
	api.PATCH("/parties/:id", s.UpdateParty)
	api.DELETE("/parties/:id", s.DeleteParty)

	api.GET("/ports", s.ListPorts)
	api.POST("/ports", s.CreatePort)
	api.GET("/ports/:id", s.GetPort)
	api.PATCH("/ports/:id", s.UpdatePort)
	api.DELETE("/ports/:id", s.DeletePort)

	api.GET("/berths", s.ListBerths)
	api.POST("/berths", s.CreateBerth)
	api.GET("/berths/:id", s.GetBerth)
	api.PATCH("/berths/:id", s.UpdateBerth)
	api.DELETE("/berths/:id", s.DeleteBerth)

	api.GET("/vessels", s.ListVessels)
	api.POST("/vessels", s.CreateVessel)
	api.GET("/vessels/:id", s.GetVessel)
	api.PATCH("/vessels/:id", s.UpdateVessel)
	api.DELETE("/vessels/:id", s.DeleteVessel)

	api.GET("/container-types", s.ListContainerTypes)
	api.POST("/container-types", s.CreateContainerType)
	api.GET("/container-types/:code", s.GetContainerType)
	api.PATCH("/container-types/:code", s.UpdateContainerType)
	api.DELETE("/container-types/:code", s.DeleteContainerType)

	api.GET("/containers", s.ListContainers)
	api.POST("/containers", s.CreateContainer)
	api.GET("/containers/:id", s.GetContainer)
	api.PATCH("/containers/:id", s.UpdateContainer)
	api.DELETE("/containers/:id", s.DeleteContainer)

	api.GET("/yard/blocks", s.ListBlocks)
	api.POST("/yard/blocks", s.CreateBlock)
	api.POST("/yard/stacks", s.CreateStack)
	api.GET("/yard/slots", s.ListSlots)
	api.POST("/yard/slots", s.CreateSlot)
	api.GET("/yard/slots/:id", s.GetSlot)
	api.POST("/yard/slots/:id/maintenance", s.SetSlotMaintenance)
	api.DELETE("/yard/slots/:id/maintenance", s.ClearSlotMaintenance)
	api.GET("/yard/invariants", s.CheckInvariants)

	api.GET("/vessel-visits", s.ListVisits)
	api.POST("/vessel-visits", s.CreateVisit)
	api.GET("/vessel-visits/:id", s.GetVisit)
	api.PATCH("/vessel-visits/:id", s.UpdateVisit)

	api.GET("/bookings", s.ListBookings)
	api.POST("/bookings", s.CreateBooking)
	api.GET("/bookings/:id", s.GetBooking)
	api.POST("/bookings/:id/confirm", s.ConfirmBooking)
	api.POST("/bookings/:id/cancel", s.CancelBooking)

	api.GET("/tasks", s.ListTasks)
	api.POST("/tasks", s.CreateTask)
	api.GET("/tasks/pending", s.ListPendingTasks)
	api.GET("/tasks/:id", s.GetTask)
	api.POST("/tasks/:id/advance", s.AdvanceTask)
	api.POST("/tasks/:id/assign", s.AssignTask)

	api.GET("/users", s.ListUsers)
	api.POST("/users", s.CreateUser)
	api.GET("/users/:id", s.GetUser)
	api.GET("/permissions", s.ListPermissions)
	api.POST("/users/:id/permissions", s.GrantPermission)
	api.DELETE("/users/:id/permissions/:name", s.RevokePermission)

	api.GET("/dashboard", s.GetDashboard)
	api.GET("/dashboard/kpis", s.GetKPIs)
	api.GET("/dashboard/kpis.pdf", s.GetKPISheet)
	api.GET("/search", s.Search)

	api.GET("/audit-logs", s.ListAuditLogs)
}
