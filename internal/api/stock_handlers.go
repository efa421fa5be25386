package api

import (
	"net/http"

	"github.com/hackgods/blood-bank/internal/bloodgroup"
	"github.com/hackgods/blood-bank/internal/stock"
)

type addUnitsRequest struct {
	BloodGroup string `json:"blood_group"`
	Units      int    `json:"units"`
}

func stockSnapshotHandler(svc *stock.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		levels, err := svc.Snapshot(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, levels)
	}
}

func addUnitsHandler(svc *stock.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addUnitsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		group, err := bloodgroup.Parse(req.BloodGroup)
		if err != nil {
			handleError(w, r, err)
			return
		}
		entry, err := svc.AddUnits(r.Context(), actor(r), group, req.Units)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}
