package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	auditHTTP "github.com/allisson/vault/internal/audit/http"
	leaseHTTP "github.com/allisson/vault/internal/lease/http"
	"github.com/allisson/vault/internal/metrics"
	policyHTTP "github.com/allisson/vault/internal/policy/http"
	rotationHTTP "github.com/allisson/vault/internal/rotation/http"
	sealHTTP "github.com/allisson/vault/internal/seal/http"
	sealUsecase "github.com/allisson/vault/internal/seal/usecase"
	secretsHTTP "github.com/allisson/vault/internal/secrets/http"
	transitHTTP "github.com/allisson/vault/internal/transit/http"
)

// Server represents the HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The router is wired later via
// SetupRouter; the readiness probe pings db.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig carries the handlers and middleware settings for SetupRouter.
type RouterConfig struct {
	SealHandler       *sealHTTP.SealHandler
	SecretHandler     *secretsHTTP.SecretHandler
	TransitKeyHandler *transitHTTP.TransitKeyHandler
	CryptoHandler     *transitHTTP.CryptoHandler
	PolicyHandler     *policyHTTP.PolicyHandler
	RotationHandler   *rotationHTTP.RotationHandler
	LeaseHandler      *leaseHTTP.LeaseHandler
	AuditHandler      *auditHTTP.AuditHandler

	SealUseCase sealUsecase.SealUseCase

	CORSEnabled      bool
	CORSAllowOrigins string

	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	MeterProvider    metric.MeterProvider
	MetricsNamespace string
}

// SetupRouter assembles the full route table.
//
// Health probes and the seal endpoints stay outside the seal gate so the
// vault can be unsealed and observed while sealed. Everything else requires
// an identity from the trusted headers and an unsealed vault.
func (s *Server) SetupRouter(cfg RouterConfig) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))
	router.Use(RequestContextMiddleware())

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if cfg.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MeterProvider, cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	// Seal endpoints must stay reachable while the vault is sealed. Status
	// and unseal are open (share holders have no platform identity); seal
	// and generate-shares mutate or emit key material and require one.
	seal := router.Group("/v1/seal")
	{
		seal.GET("/status", cfg.SealHandler.StatusHandler)
		seal.POST("/unseal", cfg.SealHandler.UnsealHandler)
		seal.POST("/seal", TrustedHeaderAuthMiddleware(s.logger), cfg.SealHandler.SealVaultHandler)
		seal.POST("/generate-shares", TrustedHeaderAuthMiddleware(s.logger), cfg.SealHandler.GenerateKeySharesHandler)
	}

	v1 := router.Group("/v1")
	v1.Use(TrustedHeaderAuthMiddleware(s.logger))
	v1.Use(SealGateMiddleware(cfg.SealUseCase, s.logger))
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, s.logger))
	}

	secrets := v1.Group("/secrets")
	{
		secrets.GET("", cfg.SecretHandler.ListHandler)
		secrets.GET("/search", cfg.SecretHandler.SearchHandler)
		secrets.GET("/paths", cfg.SecretHandler.ListPathsHandler)
		secrets.GET("/expiring", cfg.SecretHandler.ExpiringHandler)

		data := secrets.Group("/data")
		{
			data.POST("/*path", cfg.SecretHandler.CreateHandler)
			data.GET("/*path", cfg.SecretHandler.GetValueHandler)
			data.PUT("/*path", cfg.SecretHandler.UpdateHandler)
			data.DELETE("/*path", cfg.SecretHandler.DeleteHandler)
		}
		secrets.GET("/metadata/*path", cfg.SecretHandler.GetMetadataHandler)
		secrets.GET("/versions/*path", cfg.SecretHandler.ListVersionsHandler)
	}

	transit := v1.Group("/transit")
	{
		keys := transit.Group("/keys")
		{
			keys.POST("", cfg.TransitKeyHandler.CreateHandler)
			keys.GET("", cfg.TransitKeyHandler.ListHandler)
			keys.GET("/:name", cfg.TransitKeyHandler.GetHandler)
			keys.PATCH("/:name", cfg.TransitKeyHandler.UpdateHandler)
			keys.DELETE("/:name", cfg.TransitKeyHandler.DeleteHandler)
			keys.POST("/:name/rotate", cfg.TransitKeyHandler.RotateHandler)
		}
		transit.POST("/encrypt/:name", cfg.CryptoHandler.EncryptHandler)
		transit.POST("/decrypt/:name", cfg.CryptoHandler.DecryptHandler)
		transit.POST("/rewrap/:name", cfg.CryptoHandler.RewrapHandler)
		transit.POST("/datakey/:name", cfg.CryptoHandler.GenerateDataKeyHandler)
	}

	policies := v1.Group("/policies")
	{
		policies.POST("", cfg.PolicyHandler.CreatePolicyHandler)
		policies.GET("", cfg.PolicyHandler.ListPoliciesHandler)
		policies.POST("/evaluate", cfg.PolicyHandler.EvaluateHandler)
		policies.GET("/:id", cfg.PolicyHandler.GetPolicyHandler)
		policies.PATCH("/:id", cfg.PolicyHandler.UpdatePolicyHandler)
		policies.DELETE("/:id", cfg.PolicyHandler.DeletePolicyHandler)
		policies.POST("/:id/bindings", cfg.PolicyHandler.CreateBindingHandler)
		policies.GET("/:id/bindings", cfg.PolicyHandler.ListBindingsHandler)
		policies.DELETE("/:id/bindings/:bindingId", cfg.PolicyHandler.DeleteBindingHandler)
	}

	rotation := v1.Group("/rotation")
	{
		rotation.POST("/policies", cfg.RotationHandler.CreatePolicyHandler)
		rotation.GET("/policies/:secretId", cfg.RotationHandler.GetPolicyHandler)
		rotation.PATCH("/policies/:secretId", cfg.RotationHandler.UpdatePolicyHandler)
		rotation.DELETE("/policies/:secretId", cfg.RotationHandler.DeletePolicyHandler)
		rotation.POST("/rotate/:secretId", cfg.RotationHandler.RotateHandler)
		rotation.GET("/history/:secretId", cfg.RotationHandler.ListHistoryHandler)
	}

	leases := v1.Group("/leases")
	{
		leases.POST("", cfg.LeaseHandler.CreateHandler)
		leases.GET("", cfg.LeaseHandler.ListHandler)
		leases.DELETE("", cfg.LeaseHandler.RevokeAllHandler)
		leases.GET("/:leaseId", cfg.LeaseHandler.GetHandler)
		leases.DELETE("/:leaseId", cfg.LeaseHandler.RevokeHandler)
	}

	v1.GET("/audit", cfg.AuditHandler.QueryHandler)

	s.router = router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the service can serve traffic. The
// database is the only hard dependency.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}
	status := http.StatusOK
	overall := "ready"

	if s.db == nil {
		components["database"] = "error"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
		}
	}

	if components["database"] != "ok" {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"components": components,
	})
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
