// Package web provides an HTTP status server for the cryocooler daemon.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/jhyland87/Cryocooler-Controller/internal/command"
	"github.com/jhyland87/Cryocooler-Controller/internal/journal"
	"github.com/jhyland87/Cryocooler-Controller/internal/status"
)

const defaultTransitionLimit = 50

// CommandFunc executes an operator command and returns its reply.
type CommandFunc func(command.Name) command.Reply

// JournalReader is the read side of the run journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Transition, error)
	Runs(ctx context.Context, limit int) ([]journal.Run, error)
}

// Options enables the optional routes. Nil fields leave their routes out.
type Options struct {
	Commands  CommandFunc
	Metrics   http.Handler
	Journal   JournalReader
	AccessLog io.Writer // Apache combined log; nil disables
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	opts       Options
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{tracker: tracker, opts: opts}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/history.json", s.handleHistory).Methods(http.MethodGet)
	if opts.Journal != nil {
		r.HandleFunc("/transitions.json", s.handleTransitions).Methods(http.MethodGet)
		r.HandleFunc("/runs.json", s.handleRuns).Methods(http.MethodGet)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	if opts.Commands != nil {
		r.HandleFunc("/command/{name}", s.handleCommand).Methods(http.MethodPost)
	}

	var h http.Handler = r
	if opts.AccessLog != nil {
		h = handlers.LoggingHandler(opts.AccessLog, h)
	}
	h = handlers.RecoveryHandler()(h)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: h,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.opts)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.FormatHistoryJSON(s.tracker.Snapshot()))
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	rows, err := s.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []journal.Transition{}
	}
	data, _ := json.MarshalIndent(map[string]any{"transitions": rows}, "", "  ")
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	rows, err := s.opts.Journal.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []journal.Run{}
	}
	data, _ := json.MarshalIndent(map[string]any{"runs": rows}, "", "  ")
	writeJSON(w, http.StatusOK, data)
}

// handleCommand runs the command named in the path. Rejected commands
// answer 409 with the reply body.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name, err := command.Parse(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply := s.opts.Commands(name)
	code := http.StatusOK
	if !reply.OK {
		code = http.StatusConflict
	}
	data, _ := json.Marshal(reply)
	writeJSON(w, code, data)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultTransitionLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	data, _ := json.Marshal(map[string]string{"error": msg})
	writeJSON(w, code, data)
}
