package wire

import (
	"tour-booking/internal/adaptor"
	"tour-booking/internal/data/entity"
	"tour-booking/internal/data/repository"
	"tour-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireTour(
	r chi.Router,
	tourHandler *adaptor.TourHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	r.Route("/api/tours", func(r chi.Router) {
		r.Get("/", tourHandler.ListTours)
		r.Get("/{id}", tourHandler.GetTour)
		r.Get("/{id}/availability", tourHandler.GetAvailability)
		r.Get("/{id}/addons", tourHandler.ListAddons)
		r.Post("/{id}/quote", tourHandler.Quote)
	})

	// ==================== OPERATOR / ADMIN ROUTES ====================
	r.Route("/api/admin/tours", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.RequireRole(repo.User, log, entity.RoleAdmin, entity.RoleOperator))

		r.Get("/", tourHandler.AdminListTours)
		r.Post("/", tourHandler.CreateTour)
		r.Get("/{id}", tourHandler.AdminGetTour)
		r.Patch("/{id}", tourHandler.UpdateTour)
		r.Delete("/{id}", tourHandler.DeleteTour)

		r.Put("/{id}/inventory", tourHandler.UpsertInventory)

		r.Get("/{id}/pricing-rules", tourHandler.ListPricingRules)
		r.Post("/{id}/pricing-rules", tourHandler.CreatePricingRule)
		r.Delete("/{id}/pricing-rules/{ruleID}", tourHandler.DeletePricingRule)

		r.Post("/{id}/addons", tourHandler.CreateAddon)
		r.Patch("/{id}/addons/{addonID}", tourHandler.SetAddonActive)
	})

	r.Route("/api/admin/coupons", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.Admin(repo.User, log))

		r.Get("/", tourHandler.ListCoupons)
		r.Post("/", tourHandler.CreateCoupon)
		r.Patch("/{code}", tourHandler.SetCouponActive)
	})
}
