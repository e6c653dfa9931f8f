package wire

import (
	"tour-booking/internal/adaptor"
	"tour-booking/pkg/middleware"
	"tour-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireJobs mounts the externally triggered maintenance jobs
func wireJobs(
	r chi.Router,
	jobHandler *adaptor.JobHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/jobs", func(r chi.Router) {
		r.Use(middleware.JobToken(config.Jobs.Token, log))

		r.Post("/expire-bookings", jobHandler.ExpireBookings)
		r.Post("/clean-sessions", jobHandler.CleanSessions)
	})
}
