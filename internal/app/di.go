// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	auditUsecase "github.com/allisson/vault/internal/audit/usecase"
	"github.com/allisson/vault/internal/config"
	cryptoDomain "github.com/allisson/vault/internal/crypto/domain"
	cryptoUsecase "github.com/allisson/vault/internal/crypto/usecase"
	"github.com/allisson/vault/internal/database"
	"github.com/allisson/vault/internal/http"
	leaseUsecase "github.com/allisson/vault/internal/lease/usecase"
	"github.com/allisson/vault/internal/metrics"
	policyUsecase "github.com/allisson/vault/internal/policy/usecase"
	rotationUsecase "github.com/allisson/vault/internal/rotation/usecase"
	sealUsecase "github.com/allisson/vault/internal/seal/usecase"
	secretsUsecase "github.com/allisson/vault/internal/secrets/usecase"
	transitUsecase "github.com/allisson/vault/internal/transit/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *sql.DB

	// Managers
	txManager database.TxManager

	// Crypto and seal
	masterKey     *cryptoDomain.MasterKey
	cryptoUseCase cryptoUsecase.CryptoUseCase
	sealUseCase   sealUsecase.SealUseCase

	// Repositories
	secretRepo          secretsUsecase.SecretRepository
	secretVersionRepo   secretsUsecase.SecretVersionRepository
	secretMetadataRepo  secretsUsecase.SecretMetadataRepository
	transitKeyRepo      transitUsecase.TransitKeyRepository
	policyRepo          policyUsecase.PolicyRepository
	bindingRepo         policyUsecase.BindingRepository
	auditRepo           auditUsecase.AuditRepository
	rotationPolicyRepo  rotationUsecase.RotationPolicyRepository
	rotationHistoryRepo rotationUsecase.RotationHistoryRepository
	leaseRepo           leaseUsecase.LeaseRepository

	// Use Cases
	secretUseCase     secretsUsecase.SecretUseCase
	transitKeyUseCase transitUsecase.TransitKeyUseCase
	policyUseCase     policyUsecase.PolicyUseCase
	auditUseCase      auditUsecase.AuditUseCase
	rotationUseCase   rotationUsecase.RotationUseCase
	leaseUseCase      leaseUsecase.LeaseUseCase

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                      sync.Mutex
	loggerInit              sync.Once
	dbInit                  sync.Once
	txManagerInit           sync.Once
	masterKeyInit           sync.Once
	cryptoUseCaseInit       sync.Once
	sealUseCaseInit         sync.Once
	secretRepoInit          sync.Once
	secretVersionRepoInit   sync.Once
	secretMetadataRepoInit  sync.Once
	transitKeyRepoInit      sync.Once
	policyRepoInit          sync.Once
	bindingRepoInit         sync.Once
	auditRepoInit           sync.Once
	rotationPolicyRepoInit  sync.Once
	rotationHistoryRepoInit sync.Once
	leaseRepoInit           sync.Once
	secretUseCaseInit       sync.Once
	transitKeyUseCaseInit   sync.Once
	policyUseCaseInit       sync.Once
	auditUseCaseInit        sync.Once
	rotationUseCaseInit     sync.Once
	leaseUseCaseInit        sync.Once
	metricsProviderInit     sync.Once
	businessMetricsInit     sync.Once
	httpServerInit          sync.Once
	metricsServerInit       sync.Once
	initErrors              map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry/Prometheus metrics provider, or
// nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. A no-op recorder is
// used when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the HTTP server instance with the full route table.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics
// are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server and provider if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Zero the master key material last
	if c.masterKey != nil {
		c.masterKey.Close()
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initHTTPServer creates the HTTP server with the full route table.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	sealHandler, err := c.SealHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get seal handler for http server: %w", err)
	}
	secretHandler, err := c.SecretHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret handler for http server: %w", err)
	}
	transitKeyHandler, err := c.TransitKeyHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get transit key handler for http server: %w", err)
	}
	cryptoHandler, err := c.CryptoHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto handler for http server: %w", err)
	}
	policyHandler, err := c.PolicyHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy handler for http server: %w", err)
	}
	rotationHandler, err := c.RotationHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation handler for http server: %w", err)
	}
	leaseHandler, err := c.LeaseHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease handler for http server: %w", err)
	}
	auditHandler, err := c.AuditHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit handler for http server: %w", err)
	}
	sealUseCase, err := c.SealUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get seal use case for http server: %w", err)
	}

	routerConfig := http.RouterConfig{
		SealHandler:       sealHandler,
		SecretHandler:     secretHandler,
		TransitKeyHandler: transitKeyHandler,
		CryptoHandler:     cryptoHandler,
		PolicyHandler:     policyHandler,
		RotationHandler:   rotationHandler,
		LeaseHandler:      leaseHandler,
		AuditHandler:      auditHandler,
		SealUseCase:       sealUseCase,
		CORSEnabled:       c.config.CORSEnabled,
		CORSAllowOrigins:  c.config.CORSAllowOrigins,
		RateLimitEnabled:  c.config.RateLimitEnabled,
		RateLimitRPS:      c.config.RateLimitRequestsPerSec,
		RateLimitBurst:    c.config.RateLimitBurst,
		MetricsNamespace:  c.config.MetricsNamespace,
	}
	if provider, err := c.MetricsProvider(); err == nil && provider != nil {
		routerConfig.MeterProvider = provider.MeterProvider()
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(routerConfig)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		provider,
	), nil
}
