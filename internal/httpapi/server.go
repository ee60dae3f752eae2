// Package httpapi implements the HTTPS Surface: the three routes that
// delegate to the Session Controller and Ingestion Pipeline.
package httpapi

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/avidaloop/localsend-go/internal/apperr"
	"github.com/avidaloop/localsend-go/internal/ingestion"
	"github.com/avidaloop/localsend-go/internal/model"
	"github.com/avidaloop/localsend-go/internal/session"
)

// Controller is the subset of *session.Controller the surface needs,
// narrowed so tests can stub it.
type Controller interface {
	HandleSendRequest(req model.SendRequest) (map[string]string, error)
	HandleCancel() error
	ingestion.SessionLock
}

var _ Controller = (*session.Controller)(nil)

// Server is the HTTPS Surface: a plain net/http server over a self-signed
// TLS cert, routing with the standard library's ServeMux rather than a
// router package.
type Server struct {
	addr string
	ctrl Controller
	log  *slog.Logger
	srv  *http.Server
}

// New builds a Server bound to addr (host:port) that delegates to ctrl.
func New(addr string, ctrl Controller, log *slog.Logger) *Server {
	s := &Server{addr: addr, ctrl: ctrl, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/localsend/v1/send-request", s.handleSendRequest)
	mux.HandleFunc("/api/localsend/v1/send", s.handleSend)
	mux.HandleFunc("/api/localsend/v1/cancel", s.handleCancel)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServeTLS mints a self-signed cert and serves until the
// listener fails or the server is shut down. A bind failure is fatal: the
// process cannot serve the HTTPS surface without it.
func (s *Server) ListenAndServeTLS(commonName string) error {
	cert, err := selfSignedCert(commonName)
	if err != nil {
		return fmt.Errorf("mint self-signed certificate: %w", err)
	}

	s.srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	s.log.Info("https surface listening", "addr", s.addr)
	return s.srv.ListenAndServeTLS("", "")
}

func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
	} else {
		ae = apperr.Internal("", err)
	}
	http.Error(w, ae.WireBody(), ae.Status)
}

func (s *Server) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	var req model.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.BadRequest("send-request", err))
		return
	}

	tokens, err := s.ctrl.HandleSendRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokens)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	info := model.SendInfo{FileID: q.Get("fileId"), Token: q.Get("token")}

	if err := ingestion.Receive(s.ctrl, info.FileID, info.Token, r.Body); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.HandleCancel(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
