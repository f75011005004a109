package viewer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/civmodel/civkernel/internal/sim"
	"go.uber.org/zap"
)

// SessionView is the JSON form of a sim session.
type SessionView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	State     string     `json:"state"`
	Turn      int        `json:"turn"`
	Turns     int        `json:"turns"`
	Actions   int        `json:"actions"`
	Finished  bool       `json:"finished"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewHandler serves the event feed on /ws and, when sessions is not nil, the session list on
// /sessions.
func NewHandler(hub *Hub, sessions *sim.Manager, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.ServeWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if sessions != nil {
		mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
			snaps := sessions.GetAllSessions()
			out := make([]SessionView, 0, len(snaps))
			for _, s := range snaps {
				out = append(out, SessionView{
					ID:        s.ID,
					Name:      s.Name,
					State:     s.State.String(),
					Turn:      s.Turn,
					Turns:     s.Turns,
					Actions:   s.Actions,
					Finished:  s.Finished,
					Error:     s.Err,
					CreatedAt: s.CreateTime,
					StartedAt: s.StartTime,
					EndedAt:   s.EndTime,
				})
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(out); err != nil {
				logger.Warn("failed to write sessions", zap.Error(err))
			}
		})
	}
	return mux
}
