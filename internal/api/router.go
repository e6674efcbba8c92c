package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/driving-school-backend/internal/auth"
	conflictHttp "github.com/nekogravitycat/driving-school-backend/internal/conflict/http"
	"github.com/nekogravitycat/driving-school-backend/internal/draft"
	draftHttp "github.com/nekogravitycat/driving-school-backend/internal/draft/http"
	"github.com/nekogravitycat/driving-school-backend/internal/lesson"
	lessonHttp "github.com/nekogravitycat/driving-school-backend/internal/lesson/http"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/request"
	"github.com/nekogravitycat/driving-school-backend/internal/reservation"
	reservationHttp "github.com/nekogravitycat/driving-school-backend/internal/reservation/http"
	"github.com/nekogravitycat/driving-school-backend/internal/resource"
	resourceHttp "github.com/nekogravitycat/driving-school-backend/internal/resource/http"
)

// Config holds the services the router exposes.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	ResService         resource.Service
	LessonService      lesson.Service
	ReservationService reservation.Service
	DraftService       draft.Service
	// Checkers maps the "kind" of a conflict check to its loader and rules.
	Checkers map[string]conflictHttp.Checker

	JWTManager *auth.JWTManager
	Logger     *logger.Logger
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := request.RegisterValidators(); err != nil {
		panic(err)
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(gin.Logger(), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins(cfg.IsProduction, cfg.ProdOrigins)
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// staffMiddleware: Only office staff and admins may change the schedule.
	staffMiddleware := auth.RequireRole(auth.RoleStaff, auth.RoleAdmin)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	resourceHandler := resourceHttp.NewHandler(cfg.ResService)
	lessonHandler := lessonHttp.NewHandler(cfg.LessonService)
	reservationHandler := reservationHttp.NewHandler(cfg.ReservationService)
	conflictHandler := conflictHttp.NewHandler(cfg.Checkers, conflictLogger(cfg.Logger))
	draftHandler := draftHttp.NewHandler(cfg.DraftService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		resourceHttp.RegisterRoutes(v1, resourceHandler, authMiddleware)
		lessonHttp.RegisterRoutes(v1, lessonHandler, authMiddleware, staffMiddleware)
		reservationHttp.RegisterRoutes(v1, reservationHandler, authMiddleware, staffMiddleware)
		conflictHttp.RegisterRoutes(v1, conflictHandler, authMiddleware)
		draftHttp.RegisterRoutes(v1, draftHandler, authMiddleware)
	}

	return r
}

func allowedOrigins(isProduction bool, prodOrigins string) []string {
	if !isProduction {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	var origins []string
	for _, o := range strings.Split(prodOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func conflictLogger(log *logger.Logger) *logger.Logger {
	if log == nil {
		return nil
	}
	return log.With("module", "conflict")
}
