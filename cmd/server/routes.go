package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/auth"
	"github.com/zimbuild/sitebackend/internal/httpapi"
	"github.com/zimbuild/sitebackend/internal/model"
	"github.com/zimbuild/sitebackend/internal/notifications"
	"github.com/zimbuild/sitebackend/internal/service"
	"github.com/zimbuild/sitebackend/internal/storage"
	"github.com/zimbuild/sitebackend/internal/upload"
	"github.com/zimbuild/sitebackend/internal/validation"
)

const (
	apiRoutePrefix        = "/api"
	apiRouteHealth        = "/health"
	uploadsRoutePrefix    = upload.DefaultPublicPrefix
	corsOriginWildcard    = "*"
	corsMaxAge            = 12 * time.Hour
	routesBuildErrorLabel = "build routes"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsAllowedHeaders = []string{"Authorization", "Content-Type"}
	corsExposedHeaders = []string{"Content-Type", "Retry-After"}

	staffRoles  = []model.UserRole{model.RoleAdmin, model.RoleManager}
	editorRoles = []model.UserRole{model.RoleAdmin, model.RoleManager, model.RoleEditor}
)

// routerDependencies are the collaborators the HTTP surface is assembled from.
type routerDependencies struct {
	configuration ServerConfig
	store         storage.Store
	blobs         *upload.LocalBlobStore
	sender        notifications.Sender
	logger        *zap.Logger
	clock         func() time.Time
}

func newRouter(dependencies routerDependencies) (*gin.Engine, error) {
	configuration := dependencies.configuration
	logger := dependencies.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.clock
	if clock == nil {
		clock = time.Now
	}

	var tokens *auth.Tokens
	if configuration.JWTSecret != "" {
		issued, tokensErr := auth.NewTokens(auth.TokenConfig{Secret: configuration.JWTSecret, TTL: configuration.JWTExpiresIn, Clock: clock})
		if tokensErr != nil {
			return nil, fmt.Errorf("%s: %w", routesBuildErrorLabel, tokensErr)
		}
		tokens = issued
	}
	authorizer := auth.NewAuthorizer(auth.AuthorizerConfig{
		Enforce: configuration.AuthEnforce,
		Tokens:  tokens,
		Users:   dependencies.store,
		Logger:  logger,
	})
	accounts := auth.NewAccounts(dependencies.store, tokens, logger)

	uploads := upload.NewHandler(upload.Config{Blobs: dependencies.blobs, Logger: logger, Clock: clock})
	notifier := notifications.NewNotifier(notifications.Config{Sender: dependencies.sender, Clock: clock})
	inquiries := service.NewInquiryService(service.InquiryConfig{
		Store:    dependencies.store,
		Notifier: notifier,
		Logger:   logger,
		Clock:    clock,
	})
	projects := service.NewProjectService(service.ProjectConfig{
		Store:  dependencies.store,
		Blobs:  uploads,
		Logger: logger,
		Clock:  clock,
	})

	validator := validation.New()
	limiter := httpapi.NewRateLimiter(configuration.RateLimitWindow, configuration.RateLimitMax, clock)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	router.Use(cors.New(corsConfig(configuration.CORSOrigins)))
	router.Use(httpapi.ErrorBoundary(logger))
	router.NoRoute(httpapi.RouteNotFound)
	uploadsGroup := router.Group(uploadsRoutePrefix, httpapi.UploadHeaders())
	uploadsGroup.Static("/", dependencies.blobs.Root())

	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(limiter.Middleware())
	apiGroup.GET(apiRouteHealth, httpapi.HealthHandler(configuration.Environment, clock))

	registerAuthRoutes(apiGroup, authorizer, httpapi.NewAuthHandlers(accounts, validator, logger))
	registerContactRoutes(apiGroup, authorizer,
		httpapi.NewPublicHandlers(inquiries, uploads, validator, logger),
		httpapi.NewInquiryHandlers(inquiries, validator, logger),
	)
	registerProjectRoutes(apiGroup, authorizer, httpapi.NewProjectHandlers(projects, uploads, validator, logger))
	registerUploadRoutes(apiGroup, authorizer, httpapi.NewUploadHandlers(uploads, logger))
	return router, nil
}

func registerAuthRoutes(apiGroup *gin.RouterGroup, authorizer *auth.Authorizer, authHandlers *httpapi.AuthHandlers) {
	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/login", authHandlers.Login)
	authGroup.GET("/me", authorizer.Require(), authHandlers.Me)
}

func registerContactRoutes(apiGroup *gin.RouterGroup, authorizer *auth.Authorizer, publicHandlers *httpapi.PublicHandlers, inquiryHandlers *httpapi.InquiryHandlers) {
	contactGroup := apiGroup.Group("/contact")
	contactGroup.POST("/inquiry", publicHandlers.SubmitInquiry)
	contactGroup.POST("/career", publicHandlers.SubmitCareerApplication)
	contactGroup.POST("/newsletter", publicHandlers.Subscribe)
	contactGroup.POST("/newsletter/unsubscribe", publicHandlers.Unsubscribe)

	staffGroup := contactGroup.Group("", authorizer.Require(staffRoles...))
	staffGroup.GET("/inquiries", inquiryHandlers.ListInquiries)
	staffGroup.GET("/inquiries/:id", inquiryHandlers.GetInquiry)
	staffGroup.PATCH("/inquiries/:id/status", inquiryHandlers.UpdateInquiryStatus)
	staffGroup.POST("/inquiries/:id/notes", inquiryHandlers.AddInquiryNote)
	staffGroup.GET("/stats", inquiryHandlers.InquiryStats)
}

func registerProjectRoutes(apiGroup *gin.RouterGroup, authorizer *auth.Authorizer, projectHandlers *httpapi.ProjectHandlers) {
	projectGroup := apiGroup.Group("/projects")
	projectGroup.GET("", authorizer.Optional(), projectHandlers.ListProjects)
	projectGroup.GET("/categories", projectHandlers.Categories)
	projectGroup.GET("/featured", projectHandlers.Featured)
	projectGroup.GET("/stats", authorizer.Require(), projectHandlers.ProjectStats)
	projectGroup.GET("/:id", authorizer.Optional(), projectHandlers.GetProject)

	editorGroup := projectGroup.Group("", authorizer.Require(editorRoles...))
	editorGroup.POST("", projectHandlers.CreateProject)
	editorGroup.PUT("/:id", projectHandlers.UpdateProject)
	editorGroup.PATCH("/:id/status", projectHandlers.UpdateProjectStatus)
	editorGroup.PATCH("/:id/featured", projectHandlers.ToggleFeatured)
	editorGroup.DELETE("/:id", projectHandlers.DeleteProject)
	editorGroup.POST("/:id/images", projectHandlers.AddProjectImages)
	editorGroup.DELETE("/:id/images/:imageId", projectHandlers.DeleteProjectImage)
	editorGroup.PATCH("/:id/images/:imageId/primary", projectHandlers.SetPrimaryImage)
}

func registerUploadRoutes(apiGroup *gin.RouterGroup, authorizer *auth.Authorizer, uploadHandlers *httpapi.UploadHandlers) {
	uploadGroup := apiGroup.Group("/uploads")
	uploadGroup.GET("/info/:filename", uploadHandlers.Info)
	uploadGroup.POST("/single", authorizer.Require(), uploadHandlers.UploadSingle)
	uploadGroup.POST("/multiple", authorizer.Require(), uploadHandlers.UploadMultiple)
	uploadGroup.DELETE("/:filename", authorizer.Require(), uploadHandlers.Delete)
}

func corsConfig(origins []string) cors.Config {
	configuration := cors.Config{
		AllowMethods:  corsAllowedMethods,
		AllowHeaders:  corsAllowedHeaders,
		ExposeHeaders: corsExposedHeaders,
		MaxAge:        corsMaxAge,
	}
	for _, origin := range origins {
		if origin == corsOriginWildcard {
			configuration.AllowAllOrigins = true
			return configuration
		}
	}
	if len(origins) == 0 {
		configuration.AllowAllOrigins = true
		return configuration
	}
	configuration.AllowOrigins = origins
	configuration.AllowCredentials = true
	return configuration
}
