// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-assistant/internal/config"
	"github.com/tbourn/go-study-assistant/internal/http/handlers"
	"github.com/tbourn/go-study-assistant/internal/http/middleware"
	"github.com/tbourn/go-study-assistant/internal/repo"
	"github.com/tbourn/go-study-assistant/internal/services"
	"github.com/tbourn/go-study-assistant/internal/storage"
)

// defaultBodyLimit caps JSON request bodies. Uploads get their own cap.
const defaultBodyLimit int64 = 1 << 20

// Deps are the infrastructure handles the API is built on.
//
// DB backs the idempotency records and, with STORE_DRIVER=sqlite, the
// document and question registries. It may be nil only with the memory
// driver, in which case Idempotency-Key replay is disabled.
type Deps struct {
	DB      *gorm.DB
	Objects storage.ObjectStore
	LLM     services.Generator
}

// Services builds the application services from deps and cfg.
func Services(deps Deps, cfg config.Config) (*services.ChatService, *services.DocumentService, *services.QuestionService) {
	var (
		docStore services.DocumentStore
		qStore   services.QuestionStore
	)
	if cfg.StoreDriver == "sqlite" && deps.DB != nil {
		docStore = repo.GormDocuments{DB: deps.DB}
		qStore = repo.GormQuestions{DB: deps.DB}
	} else {
		docStore = repo.NewMemoryDocuments()
		qStore = repo.NewMemoryQuestions()
	}

	chatSvc := services.NewChatService(deps.LLM)
	if cfg.MaxMessageRunes > 0 {
		chatSvc.MaxMessageRunes = cfg.MaxMessageRunes
	}

	docSvc := services.NewDocumentService(docStore, deps.Objects)
	if cfg.MaxUploadBytes > 0 {
		docSvc.MaxBytes = cfg.MaxUploadBytes
	}
	docSvc.VerifyContentType = cfg.VerifyContentType
	docSvc.CleanupOrphans = cfg.CleanupOrphans

	qSvc := services.NewQuestionService(qStore)
	if deps.DB != nil {
		qSvc.Idem = repo.GormIdempotency{DB: deps.DB}
	}
	if cfg.IdempotencyTTL > 0 {
		qSvc.IdemTTL = cfg.IdempotencyTTL
	}
	return chatSvc, docSvc, qSvc
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (per route)
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
//  10. gzip
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}
	questionsPath := apiBase + "/questions"
	documentsPath := apiBase + "/documents"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	// Question search text carries student names and ids.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskQueryParams: []string{"q"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limit; multipart uploads get room for the form envelope
	uploadLimit := cfg.MaxUploadBytes
	if uploadLimit <= 0 || uploadLimit > config.MaxUploadLimit {
		uploadLimit = config.MaxUploadLimit
	}
	r.Use(limitBody(defaultBodyLimit, map[string]int64{
		documentsPath: uploadLimit + defaultBodyLimit,
	}))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting). Only question
	// submission stores records, so every other route skips the lookup.
	var lookup middleware.IdempotencyLookup
	if deps.DB != nil {
		lookup = func(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, deps.DB, clientID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		}
	}
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == questionsPath {
					return services.SubmitScope
				}
				return ""
			},
		},
		lookup,
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 10) Compress JSON and extracted text; Prometheus negotiates its own.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← stores/objects/backend
	chatSvc, docSvc, qSvc := Services(deps, cfg)
	h := handlers.New(chatSvc, docSvc, qSvc)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Chat
		api.POST("/chat", h.Chat)

		// Documents
		api.GET("/documents", h.ListDocuments)
		api.POST("/documents", h.UploadDocument)
		api.DELETE("/documents", h.DeleteDocumentByBody)
		api.GET("/documents/search", h.SearchDocuments)
		api.DELETE("/documents/:id", h.DeleteDocument)
		api.GET("/documents/:id/text", h.DocumentText)

		// Questions
		api.GET("/questions", h.ListQuestions)
		api.GET("/questions/stats", h.QuestionStats)
		api.POST("/questions", h.SubmitQuestion)
		api.PUT("/questions", h.AnswerQuestion)
		api.PUT("/questions/:id/answer", h.AnswerQuestionByID)
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Routes listed in overrides (by their
// registered full path) get their own cap. Requests exceeding the cap will
// cause downstream body reads to error.
func limitBody(maxBytes int64, overrides map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if n, ok := overrides[c.FullPath()]; ok {
			limit = n
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
