package http

import (
	"github.com/gofiber/fiber/v2"

	appalloc "github.com/jhoicas/Bandejas-api/internal/application/allocation"
	"github.com/jhoicas/Bandejas-api/internal/application/audit"
	approuting "github.com/jhoicas/Bandejas-api/internal/application/routing"
	"github.com/jhoicas/Bandejas-api/internal/application/traysplit"
	"github.com/jhoicas/Bandejas-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Allocation *appalloc.UseCase
	Routing    *approuting.UseCase
	TraySplit  *traysplit.Orchestrator
	Audit      *audit.ReconciliationUseCase
	JWTSecret  string
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	workshop := RequireRole(jwt.RoleAdmin, jwt.RoleTechnician)
	frontDesk := RequireRole(jwt.RoleAdmin, jwt.RoleFrontDesk, jwt.RoleTechnician)

	itemHandler := NewItemHandler(deps.Allocation)
	trayHandler := NewTrayHandler(deps.Routing, deps.TraySplit, deps.Allocation)
	auditHandler := NewAuditHandler(deps.Audit)

	// Líneas
	items := protected.Group("/items")
	items.Post("/:id/split", workshop, itemHandler.SplitItem)

	// Bandejas
	trays := protected.Group("/trays")
	trays.Post("/send", frontDesk, trayHandler.SendTrays)
	trays.Get("/:id/destination", trayHandler.ResolveDestination)
	trays.Get("/:id/sheet", trayHandler.RouteSheet)
	trays.Post("/:id/merge", workshop, itemHandler.MergeItems)
	trays.Post("/:id/split", workshop, trayHandler.SplitTray)
	trays.Post("/:id/reconcile", RequireRole(jwt.RoleAdmin), auditHandler.Reconcile)
	trays.Get("/:id/events", auditHandler.ListEvents)

	// Órdenes de servicio
	orders := protected.Group("/service-orders")
	orders.Post("/:id/placeholder", frontDesk, trayHandler.EnsurePlaceholder)
}
