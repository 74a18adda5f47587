package router

import (
	"crypto/rand"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/upcast-project/upconsent/internal/auth"
	"github.com/upcast-project/upconsent/internal/config"
	"github.com/upcast-project/upconsent/internal/handlers"
	"github.com/upcast-project/upconsent/internal/metrics"
	"github.com/upcast-project/upconsent/internal/middleware"
	"github.com/upcast-project/upconsent/internal/service"
)

// Services groups the dependencies the routes are served from
type Services struct {
	Requests     *service.RequestService
	Users        *service.UserService
	Ontologies   *service.OntologyService
	Negotiations *service.NegotiationService
	Contracts    *service.ContractService
	Authorizer   *auth.Authorizer
	Metrics      *metrics.Metrics
	HealthCheck  handlers.HealthCheck
}

// SetupRouter configures all API routes
func SetupRouter(cfg *config.Config, svc Services, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	if svc.Metrics != nil {
		router.Use(svc.Metrics.Middleware())
	}
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(sessions.Sessions(cfg.Security.SessionName, newSessionStore(cfg.Security, logger)))
	router.Use(middleware.BodyLimit(cfg.Limits))

	// Health check
	healthHandler := handlers.NewHealthHandler(svc.HealthCheck)
	router.GET("/health", healthHandler.Health)
	if svc.Metrics != nil {
		router.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))
	}

	// Create handlers
	requestHandler := handlers.NewRequestHandler(svc.Requests, svc.Contracts)
	negotiationHandler := handlers.NewNegotiationHandler(svc.Negotiations)
	authHandler := handlers.NewAuthHandler(svc.Users, cfg.Server.FrontendURL)
	ontologyHandler := handlers.NewOntologyHandler(svc.Ontologies)

	api := router.Group("/api")
	{
		requests := api.Group("/requests")
		{
			requests.POST("", requestHandler.CreateRequest)
			requests.GET("", requestHandler.ListRequests)
			requests.GET("/:id", requestHandler.GetRequest)
			requests.PUT("/:id", requestHandler.UpdateRequest)
			requests.DELETE("/:id", requestHandler.DeleteRequest)
			requests.POST("/:id/send", requestHandler.SendRequest)
			requests.POST("/:id/respond", requestHandler.RespondToRequest)
			requests.GET("/:id/permissions", requestHandler.GetPermissions)

			// Contract routes require a token belonging to a party of the request
			requireParty := auth.RequireRequestParty(svc.Authorizer, "id")
			requests.POST("/:id/createContract", requireParty, requestHandler.CreateContract)
			requests.GET("/:id/downloadContract/:contractId", requireParty, requestHandler.DownloadContract)
		}

		negotiations := api.Group("/external/negotiation")
		{
			negotiations.POST("/create-with-initial", negotiationHandler.CreateWithInitial)
			negotiations.POST("/create-accepted", negotiationHandler.CreateAccepted)
			negotiations.GET("/by-request/:requestId", negotiationHandler.GetByRequest)
		}

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.GET("/user/:uid", authHandler.GetUser)
			authRoutes.GET("/owners", authHandler.ListOwners)
			authRoutes.DELETE("/user/:email", authHandler.DeleteUser)
			authRoutes.GET("/token/:token", authHandler.TokenBridge)
		}

		ontologies := api.Group("/ontologies")
		{
			ontologies.POST("", ontologyHandler.UploadOntology)
			ontologies.GET("", ontologyHandler.ListOntologies)
			ontologies.GET("/:id", ontologyHandler.GetOntology)
			ontologies.GET("/:id/file", ontologyHandler.DownloadOntology)
			ontologies.DELETE("/:id", ontologyHandler.DeleteOntology)
		}
	}

	return router
}

// newSessionStore builds the cookie session store. Without a configured
// secret a random key is used and sessions do not survive a restart.
func newSessionStore(cfg config.SecurityConfig, logger *logrus.Logger) sessions.Store {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		logger.Warn("SESSION_SECRET is not set; using a random session key")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.WithError(err).Fatal("Failed to generate session key")
		}
	}

	store := cookie.NewStore(secret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   24 * 60 * 60,
		HttpOnly: true,
	})
	return store
}
