package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"anoa.com/mediagallery/internal/config"
	"anoa.com/mediagallery/internal/jobs"
	"anoa.com/mediagallery/internal/middleware"
	"anoa.com/mediagallery/pkg/cache"
	"anoa.com/mediagallery/pkg/ratelimiter"
	"anoa.com/mediagallery/pkg/storage"

	adminHttp "anoa.com/mediagallery/internal/modules/admin/delivery/http"
	adminService "anoa.com/mediagallery/internal/modules/admin/service"

	characterHttp "anoa.com/mediagallery/internal/modules/character/delivery/http"
	characterService "anoa.com/mediagallery/internal/modules/character/service"

	mediaHttp "anoa.com/mediagallery/internal/modules/media/delivery/http"
	mediaService "anoa.com/mediagallery/internal/modules/media/service"

	searchService "anoa.com/mediagallery/internal/modules/search/service"

	tagHttp "anoa.com/mediagallery/internal/modules/tag/delivery/http"
	tagService "anoa.com/mediagallery/internal/modules/tag/service"

	userHttp "anoa.com/mediagallery/internal/modules/user/delivery/http"
	userService "anoa.com/mediagallery/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Deps are the external collaborators. Only Stores is required; a nil Redis
// disables caching and rate limits.
type Deps struct {
	Stores  Stores
	Redis   *redis.Client
	Index   searchService.CharacterIndex
	Storage storage.MediaStorage
}

type Server struct {
	engine    *gin.Engine
	scheduler *jobs.Scheduler
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	st := deps.Stores
	if deps.Storage == nil {
		deps.Storage = storage.NewMemoryStorage("memory://media")
	}

	likeTotals := cache.NewLikeTotals(deps.Redis, cfg.LikeTotalsTTL)
	limiter := ratelimiter.New(deps.Redis)

	userSvc := userService.NewUserService(st.Users, st.Characters, st.Tags, st.Media, userService.Options{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.JWTTTL,
		AutoVerify: cfg.AutoVerifyUsers,
	})
	userHandler := userHttp.NewUserHandler(userSvc)

	adminSvc := adminService.NewAdminService(st.Users)
	adminHandler := adminHttp.NewAdminHandler(adminSvc)

	characterSvc := characterService.NewCharacterService(st.Tx, st.Characters, st.Tags, st.Media, deps.Index, likeTotals)
	characterHandler := characterHttp.NewCharacterHandler(characterSvc)

	tagSvc := tagService.NewTagService(st.Tx, st.Tags, st.Characters, st.Media, deps.Index, likeTotals)
	tagHandler := tagHttp.NewTagHandler(tagSvc)

	mediaSvc := mediaService.NewMediaService(st.Tx, st.Media, st.Characters, st.Tags, deps.Storage, limiter, likeTotals, cfg.RateLimitUpload)
	mediaHandler := mediaHttp.NewMediaHandler(mediaSvc)

	scheduler := jobs.NewScheduler()
	if err := scheduler.Register(jobs.NewStaleUploadJob(mediaSvc, cfg.StaleUploadSchedule, cfg.StaleUploadAge)); err != nil {
		return nil, err
	}

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware())

	authMiddleware := middleware.NewAuthMiddleware(st.Users, cfg.JWTSecret, cfg.IsAdmin)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	// Public routes
	api.POST("/auth.register", userHandler.Register)
	api.POST("/auth.login", userHandler.Login)

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/character.all", characterHandler.GetAllCharacters)
		protected.GET("/character.single", characterHandler.GetCharacter)
		protected.GET("/character.search", characterHandler.SearchCharacters)
		protected.POST("/character.create", characterHandler.CreateCharacter)
		protected.POST("/character.update", characterHandler.UpdateCharacter)
		protected.POST("/character.delete", characterHandler.DeleteCharacter)
		protected.POST("/character.setMain", characterHandler.SetCover)
		protected.POST("/character.removeMedia", characterHandler.RemoveMedia)

		protected.GET("/tag.all", tagHandler.GetAllTags)
		protected.GET("/tag.single", tagHandler.GetTag)
		protected.GET("/tag.media", tagHandler.GetTagMedia)
		protected.POST("/tag.create", tagHandler.CreateTag)
		protected.POST("/tag.update", tagHandler.UpdateTag)
		protected.POST("/tag.delete", tagHandler.DeleteTag)
		protected.POST("/tag.setMain", tagHandler.SetCover)

		protected.GET("/media.all", mediaHandler.GetAllMedia)
		protected.POST("/media.update", mediaHandler.ToggleLike)
		protected.POST("/media.delete", mediaHandler.DeleteMedia)
		protected.POST("/media.assign", mediaHandler.AssignMedia)
		protected.POST("/media.allocate", mediaHandler.AllocateMedia)
		protected.POST("/media.upload", mediaHandler.UploadMedia)

		protected.GET("/user.single", userHandler.GetProfile)

		admin := protected.Group("")
		admin.Use(authMiddleware.RequireAdmin())
		admin.POST("/admin.moderate", adminHandler.Moderate)
	}

	return &Server{
		engine:    router,
		scheduler: scheduler,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.scheduler.Start()
	defer s.scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logrus.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
