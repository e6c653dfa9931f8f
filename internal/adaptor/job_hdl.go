package adaptor

import (
	"net/http"

	"tour-booking/internal/usecase"
	"tour-booking/pkg/utils"

	"go.uber.org/zap"
)

// JobHandler exposes maintenance jobs to an external trigger.
type JobHandler struct {
	expiry usecase.ExpiryService
	auth   usecase.AuthService
	log    *zap.Logger
}

func NewJobHandler(expiry usecase.ExpiryService, auth usecase.AuthService, log *zap.Logger) *JobHandler {
	return &JobHandler{
		expiry: expiry,
		auth:   auth,
		log:    log.With(zap.String("handler", "job")),
	}
}

// ExpireBookings handles POST /api/jobs/expire-bookings (X-Job-Token)
func (h *JobHandler) ExpireBookings(w http.ResponseWriter, r *http.Request) {
	result, err := h.expiry.Sweep(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "expire bookings")
		return
	}

	utils.ResponseSuccess(w, "Sweep finished", result)
}

// CleanSessions handles POST /api/jobs/clean-sessions (X-Job-Token)
func (h *JobHandler) CleanSessions(w http.ResponseWriter, r *http.Request) {
	removed, err := h.auth.CleanExpiredSessions(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "clean sessions")
		return
	}

	utils.ResponseSuccess(w, "Sessions cleaned", map[string]int64{"removed": removed})
}
