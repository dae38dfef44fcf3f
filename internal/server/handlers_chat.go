package server

import (
	"net/http"
	"strings"

	"github.com/karimadel/borsa/internal/models"
)

// handleChat handles POST /api/chat. The pipeline always produces a
// well-formed envelope, so the HTTP status is 200 for anything that got
// past request decoding.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.ChatRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	p := PrincipalFromContext(r.Context())
	principal := models.Principal{Authenticated: p.Authenticated}
	if p.Authenticated {
		principal.ID = p.UserID
	} else {
		principal.ID = p.Fingerprint
	}

	env := s.app.ChatService.ProcessMessage(r.Context(), req.SessionID, principal, &req)
	WriteJSON(w, http.StatusOK, env)
}
