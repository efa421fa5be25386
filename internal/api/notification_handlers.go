package api

import (
	"net/http"

	"github.com/hackgods/blood-bank/internal/notification"
)

type markReadResponse struct {
	Updated int64 `json:"updated"`
}

func notificationFilter(r *http.Request) notification.Filter {
	return notification.Filter{
		Category:   notification.Category(r.URL.Query().Get("category")),
		UnreadOnly: queryBool(r, "unread"),
	}
}

func listNotificationsHandler(svc *notification.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), actor(r), actor(r).AccountID, notificationFilter(r))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if list == nil {
			list = []notification.Notification{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func markNotificationsReadHandler(svc *notification.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.MarkAllRead(r.Context(), actor(r), actor(r).AccountID, notificationFilter(r))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, markReadResponse{Updated: n})
	}
}
