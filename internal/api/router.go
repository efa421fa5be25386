package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/appointment"
	"github.com/hackgods/blood-bank/internal/bloodrequest"
	"github.com/hackgods/blood-bank/internal/dashboard"
	"github.com/hackgods/blood-bank/internal/notification"
	"github.com/hackgods/blood-bank/internal/stock"
)

const defaultMaxUploadBytes = 10 << 20

type RouterConfig struct {
	Accounts      *account.Service
	Tokens        TokenParser
	Appointments  *appointment.Service
	BloodRequests *bloodrequest.Service
	Stock         *stock.Service
	Notifications *notification.Service
	Dashboard     *dashboard.Service
	Health        *HealthHandler
	// Metrics is mounted at /metrics when set.
	Metrics        http.Handler
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", registerHandler(cfg.Accounts))
		r.Post("/verify", verifyHandler(cfg.Accounts))
		r.Post("/resend-code", resendHandler(cfg.Accounts))
		r.Post("/login", loginHandler(cfg.Accounts))
		r.Post("/forgot-password", forgotPasswordHandler(cfg.Accounts))
		r.Post("/reset-password", resetPasswordHandler(cfg.Accounts))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		r.Post("/auth/change-password", changePasswordHandler(cfg.Accounts))
		r.Get("/me", getAccountHandler(cfg.Accounts, true))
		r.Patch("/me", updateProfileHandler(cfg.Accounts))

		r.Get("/accounts", listAccountsHandler(cfg.Accounts))
		r.Get("/accounts/{id}", getAccountHandler(cfg.Accounts, false))
		r.Put("/accounts/{id}/active", setActiveHandler(cfg.Accounts))
		r.Delete("/accounts/{id}", deleteAccountHandler(cfg.Accounts))

		r.Get("/centers", listCentersHandler(cfg.Appointments))
		r.Post("/centers", createCenterHandler(cfg.Appointments))

		r.Post("/appointments", scheduleAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/approve", approveAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/reject", rejectAppointmentHandler(cfg.Appointments))
		r.Get("/donors/{id}/appointments", donorAppointmentsHandler(cfg.Appointments))
		r.Get("/donors/{id}/eligibility", eligibilityHandler(cfg.Appointments))

		r.Post("/blood-requests", createBloodRequestHandler(cfg.BloodRequests))
		r.Put("/blood-requests/documents", uploadDocumentHandler(cfg.BloodRequests, cfg.MaxUploadBytes))
		r.Get("/blood-requests", listBloodRequestsHandler(cfg.BloodRequests))
		r.Get("/blood-requests/{id}", getBloodRequestHandler(cfg.BloodRequests))
		r.Get("/blood-requests/{id}/document", documentURLHandler(cfg.BloodRequests))
		r.Post("/blood-requests/{id}/approve", approveBloodRequestHandler(cfg.BloodRequests))
		r.Post("/blood-requests/{id}/reject", bloodRequestTransitionHandler(cfg.BloodRequests, true))
		r.Post("/blood-requests/{id}/fulfill", bloodRequestTransitionHandler(cfg.BloodRequests, false))
		r.Get("/patients/{id}/blood-requests", patientBloodRequestsHandler(cfg.BloodRequests))

		r.Get("/stock", stockSnapshotHandler(cfg.Stock))
		r.Post("/stock", addUnitsHandler(cfg.Stock))

		r.Get("/notifications", listNotificationsHandler(cfg.Notifications))
		r.Post("/notifications/read", markNotificationsReadHandler(cfg.Notifications))

		r.Get("/dashboard", dashboardHandler(cfg.Dashboard))
		r.Get("/reports/latest", reportHandler(cfg.Dashboard))
	})

	return r
}
