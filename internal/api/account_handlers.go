package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/account"
	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
)

type accountResponse struct {
	Account *account.Account `json:"account"`
	Profile *account.Profile `json:"profile"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func getAccountHandler(svc *account.Service, self bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := actor(r).AccountID
		if !self {
			var ok bool
			if id, ok = pathID(w, r, "id"); !ok {
				return
			}
		}
		acc, prof, err := svc.Get(r.Context(), actor(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{Account: acc, Profile: prof})
	}
}

func updateProfileHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd account.ProfileUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		acc, prof, err := svc.UpdateProfile(r.Context(), actor(r), actor(r).AccountID, upd)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{Account: acc, Profile: prof})
	}
}

func listAccountsHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := account.ListFilter{
			Role:       authz.Role(q.Get("role")),
			BloodGroup: bloodgroup.Group(q.Get("blood_group")),
			Search:     q.Get("search"),
			Page:       queryInt(r, "page", 1),
			Size:       queryInt(r, "size", 0),
		}
		if v := q.Get("active"); v != "" {
			active, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_active", "active must be a boolean")
				return
			}
			f.Active = &active
		}
		members, total, err := svc.ListAccounts(r.Context(), actor(r), f)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newPage(members, total, f.Page))
	}
}

func setActiveHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req setActiveRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		acc, err := svc.SetActive(r.Context(), actor(r), id, req.Active)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}

func deleteAccountHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), actor(r), id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ownerID resolves {id}, where "me" stands for the caller.
func ownerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if chi.URLParam(r, "id") == "me" {
		return actor(r).AccountID, true
	}
	return pathID(w, r, "id")
}
