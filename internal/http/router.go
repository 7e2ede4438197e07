package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/handlers"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/handlers/admin"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/middleware"
	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/http/validation"
)

type Deps struct {
	Logger *slog.Logger

	Intake    handlers.OrderPlacer
	Callbacks handlers.CallbackProcessor
	Status    handlers.StatusReader
	Admin     admin.Transitioner

	CallbackSecret string
	AdminToken     string
}

func NewRouter(d Deps) *gin.Engine {
	validation.UseJSONNames()

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.ErrorHandler(d.Logger),
		middleware.Recovery(d.Logger),
	)

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")

	checkoutH := handlers.NewCheckoutHandler(d.Intake, d.Logger)
	api.POST("/orders", checkoutH.Post)

	ordersH := handlers.NewOrdersHandler(d.Status)
	api.GET("/orders/:id/status", ordersH.Status)

	callbackH := handlers.NewCallbackHandler(d.Logger, d.Callbacks, d.CallbackSecret)
	api.POST("/mpesa/callback", callbackH.Handle)

	adminGrp := api.Group("/admin", middleware.RequireAdminToken(d.AdminToken))
	adminOrders := admin.NewOrdersHandler(d.Admin)
	adminGrp.PATCH("/orders/:id", adminOrders.Transition)

	return r
}
