package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appalloc "github.com/jhoicas/Bandejas-api/internal/application/allocation"
	"github.com/jhoicas/Bandejas-api/internal/application/audit"
	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	approuting "github.com/jhoicas/Bandejas-api/internal/application/routing"
	"github.com/jhoicas/Bandejas-api/internal/application/traysplit"
	"github.com/jhoicas/Bandejas-api/internal/domain/allocation"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
	"github.com/jhoicas/Bandejas-api/internal/infrastructure/memory"
	"github.com/jhoicas/Bandejas-api/internal/infrastructure/notify"
	"github.com/jhoicas/Bandejas-api/internal/infrastructure/pdf"
	"github.com/jhoicas/Bandejas-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Bandejas-api/internal/interfaces/http"
	"github.com/jhoicas/Bandejas-api/pkg/config"
	"github.com/jhoicas/Bandejas-api/pkg/logger"
)

// backend almacenamiento seleccionado por STORE_DRIVER.
type backend struct {
	txRunner  ports.TxRunner
	repos     repository.TxRepos
	orders    repository.ServiceOrderRepository
	directory repository.DirectoryRepository
	close     func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) backend {
	if cfg.Routing.Store == config.StoreMemory {
		log.Warn().Msg("STORE_DRIVER=memory: almacén vacío y sin persistencia, solo para pruebas")
		s := memory.NewStore()
		return backend{txRunner: s, repos: s.Repos(), orders: s.Orders(), directory: s.Directory(), close: func() {}}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	return backend{
		txRunner:  postgres.NewTxRunner(pool),
		repos:     postgres.NewRepos(pool),
		orders:    postgres.NewServiceOrderRepository(pool),
		directory: postgres.NewDirectoryRepository(pool),
		close:     pool.Close,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Routing.Store).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx := context.Background()
	db := openBackend(ctx, cfg, log)
	defer db.close()

	identity := allocation.NewExemptDepartments(cfg.Routing.IdentityExemptDepartments...)
	reconciler := audit.NewReconciliationUseCase(db.repos.Items, db.repos.Events, db.repos.Snapshots, log)
	allocationUC := appalloc.NewUseCase(db.txRunner, db.orders, reconciler, identity, log)
	splitter := traysplit.NewOrchestrator(db.txRunner, reconciler, identity, log)
	routingUC := approuting.NewUseCase(approuting.Deps{
		TxRunner:  db.txRunner,
		Trays:     db.repos.Trays,
		Items:     db.repos.Items,
		Orders:    db.orders,
		Directory: db.directory,
		Recorder:  reconciler,
		Notifier:  notify.NewLogNotifier(log),
		Sheets:    pdf.NewRouteSheetGenerator(cfg.App.Name),
		Log:       log,
	}, routing.Policy{
		FallbackDepartments: cfg.Routing.FallbackDepartments,
		StageNew:            cfg.Routing.StageNew,
		StageReturn:         cfg.Routing.StageReturn,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Bandejas API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Allocation: allocationUC,
		Routing:    routingUC,
		TraySplit:  splitter,
		Audit:      reconciler,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
