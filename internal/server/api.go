package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cancelikay/santral/internal/session"
	"github.com/cancelikay/santral/internal/transcript"
)

// CallController is the part of the session controller the HTTP API drives.
type CallController interface {
	Connect(ctx context.Context) error
	Disconnect()
	SetMuted(muted bool)
	Muted() bool
	State() session.State
	Log() []transcript.LogMessage
}

func registerAPIRoutes(mux *http.ServeMux, ctrl CallController, warnings []string) {
	mux.HandleFunc("POST /api/call/connect", func(w http.ResponseWriter, r *http.Request) {
		if err := ctrl.Connect(r.Context()); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, session.ErrSessionActive) {
				status = http.StatusConflict
			}
			writeJSONError(w, status, fmt.Sprintf("connect: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"state": ctrl.State().String()})
	})

	mux.HandleFunc("POST /api/call/disconnect", func(w http.ResponseWriter, r *http.Request) {
		ctrl.Disconnect()
		writeJSON(w, http.StatusOK, map[string]string{"state": ctrl.State().String()})
	})

	mux.HandleFunc("POST /api/call/mute", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Muted bool `json:"muted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ctrl.SetMuted(body.Muted)
		writeJSON(w, http.StatusOK, map[string]bool{"muted": ctrl.Muted()})
	})

	mux.HandleFunc("GET /api/call/state", func(w http.ResponseWriter, r *http.Request) {
		ws := warnings
		if ws == nil {
			ws = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state":    ctrl.State().String(),
			"muted":    ctrl.Muted(),
			"warnings": ws,
		})
	})

	mux.HandleFunc("GET /api/call/log", func(w http.ResponseWriter, r *http.Request) {
		msgs := ctrl.Log()
		if msgs == nil {
			msgs = []transcript.LogMessage{}
		}
		writeJSON(w, http.StatusOK, msgs)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
