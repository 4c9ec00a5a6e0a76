// Package www serves the JSON API, the server-sent event stream and the
// Prometheus metrics endpoint.
package www

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/antomihe/SustainableCity/engine"
	"github.com/antomihe/SustainableCity/logging"
)

var log = logging.For("www")

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   eng.AppConfig().Web.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// SSE and metrics
	r.Get("/events", hub.SSEHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	// Public API
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/containers", h.apiListContainers)
		r.Get("/containers/live", h.apiLiveContainers)
		r.Get("/containers/{id}", h.apiGetContainer)
		r.Post("/containers/search", h.apiSearchContainers)
		r.Post("/incidents/report", h.apiReportIncident)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/containers", h.apiCreateContainer)
			r.Patch("/containers/{id}", h.apiUpdateContainer)
			r.Patch("/containers/{id}/status", h.apiUpdateContainerStatus)
			r.Post("/containers/{id}/repair", h.apiRepairContainer)
			r.Delete("/containers/{id}", h.apiDeleteContainer)
			r.Get("/incidents", h.apiListIncidents)
			r.Get("/operators", h.apiListOperators)
			r.Post("/operators", h.apiCreateOperator)
			r.Get("/assignments/operator/{operatorID}", h.apiOperatorContainers)
			r.Put("/assignments/operator/{operatorID}", h.apiAssignContainers)
			r.Get("/assignments/container/{containerID}", h.apiContainerOperators)
			r.Put("/assignments/container/{containerID}", h.apiAssignOperators)
			r.Delete("/assignments/operator/{operatorID}/container/{containerID}", h.apiRemoveAssignment)
			r.Get("/audit", h.apiAuditLog)
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	user, err := h.engine.DB().GetAdminUser(req.Username)
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		h.jsonError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = req.Username
	if err := session.Save(r, w); err != nil {
		log.Errorf("auth: session save error: %v", err)
	}
	h.jsonOK(w, map[string]string{"username": req.Username})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Values["username"] = ""
	session.Options.MaxAge = -1
	session.Save(r, w)
	w.WriteHeader(http.StatusNoContent)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
			"req_id":   middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
