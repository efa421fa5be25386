package api

import (
	"net/http"
	"time"

	"github.com/hackgods/blood-bank/internal/appointment"
)

const dateLayout = "2006-01-02"

type scheduleRequest struct {
	CenterID string `json:"center_id"`
	Date     string `json:"date"`
	Notes    string `json:"notes"`
}

type createCenterRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func listCentersHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		centers, err := svc.ListCenters(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		if centers == nil {
			centers = []appointment.Center{}
		}
		writeJSON(w, http.StatusOK, centers)
	}
}

func createCenterHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCenterRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := svc.CreateCenter(r.Context(), actor(r), req.Name, req.Address)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func scheduleAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		centerID, ok := parseUUID(w, req.CenterID, "center_id")
		if !ok {
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		appt, err := svc.Schedule(r.Context(), actor(r), appointment.ScheduleInput{
			CenterID: centerID,
			Date:     date,
			Notes:    req.Notes,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := appointment.AdminFilter{
			Status:  appointment.Status(r.URL.Query().Get("status")),
			History: queryBool(r, "history"),
			Page:    queryInt(r, "page", 1),
			Size:    queryInt(r, "size", 0),
		}
		list, total, err := svc.ListForAdmin(r.Context(), actor(r), f)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newPage(list, total, f.Page))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		d, err := svc.Get(r.Context(), actor(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func approveAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		appt, err := svc.Approve(r.Context(), actor(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func rejectAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		appt, err := svc.Reject(r.Context(), actor(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func donorAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		donorID, ok := ownerID(w, r)
		if !ok {
			return
		}
		page := queryInt(r, "page", 1)
		list, total, err := svc.ListByDonor(r.Context(), actor(r), donorID, page, queryInt(r, "size", 0))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newPage(list, total, page))
	}
}

func eligibilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		donorID, ok := ownerID(w, r)
		if !ok {
			return
		}
		st, err := svc.Eligibility(r.Context(), actor(r), donorID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
