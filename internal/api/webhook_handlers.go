package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/twiml"
)

// writeTwiML sends rendered signaling markup. The provider contract is a 200
// with well-formed XML on every webhook, whatever happened internally.
func writeTwiML(w http.ResponseWriter, markup string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(markup))
}

// recoverToApology converts a handler panic into a spoken apology instead of
// the JSON 500 the admin middleware would produce.
func (s *Server) recoverToApology(w http.ResponseWriter, r *http.Request) {
	if rec := recover(); rec != nil {
		s.logger.Error("webhook handler panic",
			"panic", rec,
			"path", r.URL.Path,
		)
		writeTwiML(w, twiml.Apology())
	}
}

// handleIncomingWebhook receives the provider's initial webhook for an
// inbound call on a phone line.
func (s *Server) handleIncomingWebhook(w http.ResponseWriter, r *http.Request) {
	defer s.recoverToApology(w, r)

	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil {
		s.logger.Warn("incoming webhook with malformed line id", "raw", chi.URLParam(r, "lineID"))
		writeTwiML(w, twiml.Apology())
		return
	}

	if err := r.ParseForm(); err != nil {
		s.logger.Warn("incoming webhook with malformed form", "error", err)
		writeTwiML(w, twiml.Apology())
		return
	}

	writeTwiML(w, s.router.HandleIncoming(r.Context(), lineID, r.PostForm))
}

// handleDialOutcomeWebhook receives the provider's callback with the outcome
// of a team dial.
func (s *Server) handleDialOutcomeWebhook(w http.ResponseWriter, r *http.Request) {
	defer s.recoverToApology(w, r)

	if err := r.ParseForm(); err != nil {
		s.logger.Warn("dial outcome webhook with malformed form", "error", err)
		writeTwiML(w, twiml.Apology())
		return
	}

	writeTwiML(w, s.router.HandleDialOutcome(r.Context(), r.PostForm))
}
