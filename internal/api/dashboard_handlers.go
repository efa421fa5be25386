package api

import (
	"fmt"
	"net/http"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/dashboard"
)

// dashboardHandler serves the caller's role-specific summary.
func dashboardHandler(svc *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := actor(r)
		var (
			out any
			err error
		)
		switch a.Role {
		case authz.RoleDonor:
			out, err = svc.Donor(r.Context(), a, a.AccountID)
		case authz.RolePatient:
			out, err = svc.Patient(r.Context(), a, a.AccountID)
		case authz.RoleAdmin:
			out, err = svc.Admin(r.Context(), a)
		default:
			err = fmt.Errorf("%w: unknown role %q", authz.ErrForbidden, a.Role)
		}
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func reportHandler(svc *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pdf, err := svc.Report(r.Context(), actor(r))
		if err != nil {
			handleError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="blood_bank_report.pdf"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
	}
}
