package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/account"
)

type verifyRequest struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
}

type resendRequest struct {
	AccountID string `json:"account_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string           `json:"token"`
	Account *account.Account `json:"account"`
}

type forgotPasswordRequest struct {
	Username string `json:"username"`
}

type resetPasswordRequest struct {
	AccountID   string `json:"account_id"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type accountIDResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Message   string    `json:"message"`
}

func registerHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req account.RegisterInput
		if !decodeJSON(w, r, &req) {
			return
		}
		acc, err := svc.Register(r.Context(), req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, accountIDResponse{
			AccountID: acc.ID,
			Message:   "registration code sent",
		})
	}
}

func verifyHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id, ok := parseUUID(w, req.AccountID, "account_id")
		if !ok {
			return
		}
		acc, err := svc.CompleteRegistration(r.Context(), id, req.Code)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}

func resendHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resendRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id, ok := parseUUID(w, req.AccountID, "account_id")
		if !ok {
			return
		}
		if err := svc.ResendCode(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "code sent"})
	}
}

func loginHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		token, acc, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{Token: token, Account: acc})
	}
}

func forgotPasswordHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id, err := svc.ForgotPassword(r.Context(), req.Username)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountIDResponse{AccountID: id, Message: "reset code sent"})
	}
}

func resetPasswordHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id, ok := parseUUID(w, req.AccountID, "account_id")
		if !ok {
			return
		}
		if err := svc.ResetPassword(r.Context(), id, req.Code, req.NewPassword); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
	}
}

func changePasswordHandler(svc *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.ChangePassword(r.Context(), actor(r), req.OldPassword, req.NewPassword); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
	}
}
