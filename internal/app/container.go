package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/driving-school-backend/internal/api"
	"github.com/nekogravitycat/driving-school-backend/internal/auth"
	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	conflictHttp "github.com/nekogravitycat/driving-school-backend/internal/conflict/http"
	"github.com/nekogravitycat/driving-school-backend/internal/draft"
	"github.com/nekogravitycat/driving-school-backend/internal/lesson"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
	"github.com/nekogravitycat/driving-school-backend/internal/reservation"
	"github.com/nekogravitycat/driving-school-backend/internal/resource"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	DBPool       *pgxpool.Pool
	// Redis is optional. When nil, window caches are kept per process.
	Redis     *redis.Client
	JWTSecret string
	JWTTTL    time.Duration

	WindowCacheTTL      time.Duration
	DraftDebounce       time.Duration
	DraftTTL            time.Duration
	FetchTimeout        time.Duration
	LessonRounding      conflict.RoundingMode
	ReservationRounding conflict.RoundingMode

	Logger *logger.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Drafts     draft.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Resource Module
	resRepo := resource.NewPgxRepository(cfg.DBPool)
	resService := resource.NewService(resRepo)

	// Lesson Module
	// Writes check against the database directly; previews read the cached window.
	lessonRepo := lesson.NewPgxRepository(cfg.DBPool)
	lessonCache := window.NewCachedLoader(lessonRepo, newStore(cfg, "lesson"), log.With("window", "lesson"))
	lessonService := lesson.NewService(
		lessonRepo, resService, window.NewRangeLoader(lessonRepo), lessonCache,
		cfg.LessonRounding, log.With("module", "lesson"),
	)

	// Reservation Module
	resvRepo := reservation.NewPgxRepository(cfg.DBPool)
	resvCache := window.NewCachedLoader(resvRepo, newStore(cfg, "reservation"), log.With("window", "reservation"))
	resvService := reservation.NewService(
		resvRepo, resService, window.NewRangeLoader(resvRepo), resvCache,
		cfg.ReservationRounding, log.With("module", "reservation"),
	)

	// Draft Module
	draftService := draft.NewService(map[draft.Kind]draft.Binding{
		draft.KindLesson:      {Loader: lessonCache, Kind: conflict.Lessons},
		draft.KindReservation: {Loader: resvCache, Kind: conflict.Reservations},
	}, draft.Config{
		Debounce:     cfg.DraftDebounce,
		FetchTimeout: cfg.FetchTimeout,
		TTL:          cfg.DraftTTL,
	}, log.With("module", "draft"))

	// Stateless conflict checks
	checkers := map[string]conflictHttp.Checker{
		string(draft.KindLesson):      {Loader: lessonCache, Kind: conflict.Lessons, Rounding: cfg.LessonRounding},
		string(draft.KindReservation): {Loader: resvCache, Kind: conflict.Reservations, Rounding: cfg.ReservationRounding},
	}

	// API Router Config
	routerParams := api.Config{
		IsProduction:       cfg.IsProduction,
		ProdOrigins:        cfg.ProdOrigins,
		ResService:         resService,
		LessonService:      lessonService,
		ReservationService: resvService,
		DraftService:       draftService,
		Checkers:           checkers,
		JWTManager:         jwtManager,
		Logger:             log.With("module", "api"),
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Drafts:     draftService,
	}
}

// newStore picks the shared Redis cache when configured.
func newStore(cfg Config, namespace string) window.Store {
	if cfg.Redis != nil {
		return window.NewRedisStore(cfg.Redis, namespace, cfg.WindowCacheTTL)
	}
	return window.NewMemoryStore(cfg.WindowCacheTTL, 0, nil)
}
