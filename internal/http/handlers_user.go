package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Get(r.Context(), authUserID(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req core.Profile
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}
	req.Name = sanitizeInput(req.Name)

	user, err := s.users.UpdateProfile(r.Context(), authUserID(r.Context()), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req core.Settings
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	user, err := s.users.UpdateSettings(r.Context(), authUserID(r.Context()), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, "malformed request body")
		return
	}

	if err := s.users.ChangePassword(r.Context(), authUserID(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "password updated")
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), authUserID(r.Context())); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "account deleted")
}
