package wire

import (
	"tour-booking/internal/adaptor"
	"tour-booking/internal/data/repository"
	"tour-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))

		// POST /api/bookings - reserve slots, booking awaits payment
		r.Post("/api/bookings", bookingHandler.CreateBooking)

		// GET /api/bookings - own booking history
		r.Get("/api/bookings", bookingHandler.GetUserBookings)

		// owner or admin
		r.Get("/api/bookings/{id}", bookingHandler.GetBooking)
		r.Post("/api/bookings/{id}/cancel", bookingHandler.CancelBooking)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.Admin(repo.User, log))

		// GET /api/admin/bookings?status=awaiting_payment
		r.Get("/", bookingHandler.GetAllBookings)

		// POST /api/admin/bookings/{id}/release - idempotent slot release
		r.Post("/{id}/release", bookingHandler.ReleaseSlots)
	})
}
