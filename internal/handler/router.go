package handler

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/importadora-system/internal/middleware"
)

// SetupRouter настраивает маршруты API и общие middleware.
func (h *Handler) SetupRouter(logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.GzipMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user/profile", h.GetProfile)
			r.Put("/user/profile", h.UpdateProfile)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/{productID}", h.GetProduct)
				r.Put("/{productID}", h.UpdateProduct)
				r.Get("/{productID}/price", h.GetProductPrice)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.CreateOrder)
				r.Get("/", h.GetOrders)
				r.Get("/{orderID}", h.GetOrder)
				r.Put("/{orderID}/status", h.UpdateOrderStatus)
				r.Post("/{orderID}/payment-proof", h.AttachPaymentProof)
				r.Post("/{orderID}/items", h.AddLineItem)
				r.Put("/{orderID}/items/{itemID}", h.UpdateLineItem)
				r.Delete("/{orderID}/items/{itemID}", h.DeleteLineItem)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.GetNotifications)
				r.Post("/", h.NotifyUser)
				r.Post("/{notificationID}/read", h.MarkNotificationRead)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", h.GetSettings)
				r.Put("/", h.UpdateSettings)
				r.Post("/customs-rate/refresh", h.RefreshCustomsRate)
			})
		})
	})

	return r
}
