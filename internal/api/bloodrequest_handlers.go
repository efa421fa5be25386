package api

import (
	"net/http"

	"github.com/hackgods/blood-bank/internal/bloodrequest"
)

type documentResponse struct {
	DocumentKey string `json:"document_key"`
}

type documentURLResponse struct {
	URL string `json:"url"`
}

func createBloodRequestHandler(svc *bloodrequest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bloodrequest.CreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		created, err := svc.Create(r.Context(), actor(r), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// uploadDocumentHandler accepts a multipart "file" field and returns the
// object key to reference from a new blood request.
func uploadDocumentHandler(svc *bloodrequest.Service, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "expected a multipart form within the size limit")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "missing file field")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		key, err := svc.UploadDocument(r.Context(), actor(r), header.Filename, contentType, file, header.Size)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, documentResponse{DocumentKey: key})
	}
}

func listBloodRequestsHandler(svc *bloodrequest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := bloodrequest.AdminFilter{
			Status:  bloodrequest.Status(r.URL.Query().Get("status")),
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

func patientBloodRequestsHandler(svc *bloodrequest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := ownerID(w, r)
		if !ok {
			return
		}
		list, err := svc.ListByPatient(r.Context(), actor(r), patientID, bloodrequest.Status(r.URL.Query().Get("status")))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if list == nil {
			list = []bloodrequest.Detail{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getBloodRequestHandler(svc *bloodrequest.Service) http.HandlerFunc {
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

func approveBloodRequestHandler(svc *bloodrequest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		out, err := svc.Approve(r.Context(), actor(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func bloodRequestTransitionHandler(svc *bloodrequest.Service, reject bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		apply := svc.Fulfill
		if reject {
			apply = svc.Reject
		}
		req, err := apply(r.Context(), actor(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

func documentURLHandler(svc *bloodrequest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		url, err := svc.DocumentURL(r.Context(), actor(r), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, documentURLResponse{URL: url})
	}
}
