// Package portal is the HTTP surface of the provisioning portal.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/gorilla/schema"
	"github.com/shazow/wifiportal/internal/creds"
	"github.com/shazow/wifiportal/internal/led"
	"github.com/shazow/wifiportal/radio"
)

const maxBodySize = 4 << 10

var scanningSentinel = []byte(`[{"_scanning":true}]`)

// Executor runs fn on the goroutine that owns portal state.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// Scanner is the scan coordinator as seen by handlers.
type Scanner interface {
	Trigger() bool
	Running() bool
	Results() []byte
}

// Connector accepts new station credentials.
type Connector interface {
	Submit(ctx context.Context, ssid, passphrase string) error
}

// Link reports the station link.
type Link interface {
	StationStatus() radio.StationStatus
	StationSSID() string
	LocalAddr() netip.Addr
}

// Options are the collaborators of a Server. All fields are required.
type Options struct {
	Exec   Executor
	Scans  Scanner
	Conn   Connector
	Link   Link
	LED    led.LED
	Assets fs.FS
}

type Server struct {
	Options

	mux     *http.ServeMux
	logger  *slog.Logger
	decoder *schema.Decoder
}

func New(logger *slog.Logger, opts Options) *Server {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		Options: opts,
		mux:     http.NewServeMux(),
		logger:  logger.With("component", "http"),
		decoder: decoder,
	}
	s.mux.HandleFunc("/scan_trigger", s.handleScanTrigger)
	s.mux.HandleFunc("/scan", s.handleScan)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/connect", s.handleConnect)
	s.mux.HandleFunc("/led", s.handleLED)
	s.mux.HandleFunc("/", s.handleStatic)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
	s.mux.ServeHTTP(w, r)
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	IP      string `json:"ip,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, result{Success: false, Message: message})
}

// do runs fn on the executor. It writes an error response and returns false
// if the request gave up first.
func (s *Server) do(w http.ResponseWriter, r *http.Request, fn func()) bool {
	if err := s.Exec.Do(r.Context(), fn); err != nil {
		s.logger.Warn("request abandoned", "path", r.URL.Path, "error", err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleScanTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	var started bool
	if !s.do(w, r, func() { started = s.Scans.Trigger() }) {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Started bool `json:"started"`
	}{started})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var body []byte
	ok := s.do(w, r, func() {
		if s.Scans.Running() {
			body = scanningSentinel
		} else {
			body = s.Scans.Results()
		}
	})
	if ok {
		writeRawJSON(w, body)
	}
}

type status struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid"`
	IP        string `json:"ip"`
}

// stationIP formats addr for clients, with 0.0.0.0 standing in for no address.
func stationIP(addr netip.Addr) string {
	if !addr.IsValid() {
		return "0.0.0.0"
	}
	return addr.String()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	st := status{IP: stationIP(netip.Addr{})}
	ok := s.do(w, r, func() {
		if s.Link.StationStatus() != radio.Connected {
			return
		}
		st.Connected = true
		st.SSID = s.Link.StationSSID()
		st.IP = stationIP(s.Link.LocalAddr())
	})
	if ok {
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	req, err := s.readConnectRequest(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var submitErr error
	var ip string
	ctx := context.WithoutCancel(r.Context())
	ok := s.do(w, r, func() {
		submitErr = s.Conn.Submit(ctx, req.SSID, req.Pass)
		// The current station address, which is 0.0.0.0 until associated.
		ip = stationIP(s.Link.LocalAddr())
	})
	if !ok {
		return
	}

	switch {
	case submitErr == nil:
		writeJSON(w, http.StatusOK, result{Success: true, IP: ip})
	case errors.Is(submitErr, creds.ErrSSIDRequired),
		errors.Is(submitErr, creds.ErrSSIDTooLong),
		errors.Is(submitErr, creds.ErrPassphraseTooLong):
		writeJSONError(w, http.StatusBadRequest, submitErr.Error())
	default:
		s.logger.Error("failed to save credentials", "error", submitErr)
		writeJSONError(w, http.StatusInternalServerError, "failed to save credentials")
	}
}

type ledQuery struct {
	State string `schema:"state"`
}

func (s *Server) handleLED(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var q ledQuery
	if err := s.decoder.Decode(&q, r.URL.Query()); err != nil {
		s.logger.Debug("ignoring led query", "error", err)
	}

	var on bool
	var err error
	ok := s.do(w, r, func() {
		switch q.State {
		case "on":
			err = s.LED.Set(true)
		case "off":
			err = s.LED.Set(false)
		}
		if err != nil {
			return
		}
		on, err = s.LED.On()
	})
	if !ok {
		return
	}
	if err != nil {
		s.logger.Error("led", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "led unavailable")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		On bool `json:"on"`
	}{on})
}
