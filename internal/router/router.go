package router

import (
	"time"

	"facturador/internal/config"
	"facturador/internal/handler"
	"facturador/internal/infra"
	"facturador/internal/middleware"
	"facturador/internal/repository"
	"facturador/internal/service"
	"facturador/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, fiscal *infra.AFIPClient, breaker *infra.CircuitBreaker, dispatcher *worker.Dispatcher) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	inventorySvc := service.NewInventoryService(variantRepo, dispatcher)
	accountSvc := service.NewAccountService(accountRepo)
	allocator := service.NewVoucherAllocator(fiscal)
	invoiceSvc := service.NewInvoiceService(
		invoiceRepo, accountRepo, accountSvc, inventorySvc,
		fiscal, allocator, dispatcher, cfg.TaxRatePct,
	)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	invoicesH := handler.NewInvoicesHandler(invoiceSvc, cfg.PDFStoragePath)
	accountsH := handler.NewAccountsHandler(accountSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, breaker))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		anyRole := middleware.RequireRole(middleware.RoleCashier, middleware.RoleSupervisor, middleware.RoleAdmin)
		supervisorUp := middleware.RequireRole(middleware.RoleSupervisor, middleware.RoleAdmin)

		// Invoices — issuance for any operator; void and repair need a
		// supervisor since they move money and legal documents.
		v1.POST("/invoices", anyRole, invoicesH.Issue)
		v1.GET("/invoices", anyRole, invoicesH.List)
		v1.GET("/invoices/last-voucher", anyRole, invoicesH.LastVoucher)
		v1.GET("/invoices/:id", anyRole, invoicesH.Get)
		v1.GET("/invoices/:id/pdf", anyRole, invoicesH.PDF)
		v1.DELETE("/invoices/:id", supervisorUp, invoicesH.Void)
		v1.POST("/invoices/:id/repair", supervisorUp, invoicesH.Repair)

		// Accounts
		v1.GET("/accounts", anyRole, accountsH.List)
		v1.GET("/accounts/:id", anyRole, accountsH.Get)
		v1.GET("/accounts/:id/statement", anyRole, accountsH.Statement)
		v1.POST("/accounts", supervisorUp, accountsH.Create)
		v1.PATCH("/accounts/:id", supervisorUp, accountsH.Update)
		v1.POST("/accounts/:id/transactions", supervisorUp, accountsH.PostTransaction)

		// Inventory
		v1.GET("/inventory/sku/:sku", anyRole, inventoryH.GetVariant)
		v1.GET("/inventory/:id/movements", anyRole, inventoryH.ListMovements)
		v1.POST("/inventory/:id/adjust", supervisorUp, inventoryH.AdjustStock)
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
