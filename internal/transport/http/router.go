package http

import (
	"net/http"
	"time"

	"hightechcross/internal/app"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// Services bundles the use cases exposed over HTTP.
type Services struct {
	Crosses *app.CrossService
	Hunt    *app.HuntService
	Users   *app.UserService
	Auth    *app.AuthService
}

// RouterOptions carries build info and stream tuning.
type RouterOptions struct {
	Version        string
	BuildTime      string
	StreamInterval time.Duration
}

// NewHandler is the router wrapped in CORSMiddleware, which has to run before
// route matching to answer preflight requests.
func NewHandler(svc Services, opts RouterOptions) http.Handler {
	return CORSMiddleware(NewRouter(svc, opts))
}

func NewRouter(svc Services, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	systemHandler := &SystemHandler{version: opts.Version, buildTime: opts.BuildTime}
	authHandler := NewAuthHandler(svc.Auth)
	crossHandler := NewCrossHandler(svc.Crosses)
	taskHandler := NewTaskHandler(svc.Hunt)
	userHandler := NewUserHandler(svc.Users)
	wsHandler := NewWSHandler(svc.Crosses, opts.StreamInterval)
	requireAuth := AuthMiddleware(svc.Auth)
	loginLimit := RateLimitMiddleware(rate.Every(time.Second), 10)
	submitLimit := RateLimitMiddleware(rate.Every(200*time.Millisecond), 20)

	// Open endpoints
	r.HandleFunc("/healthz", systemHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/version", systemHandler.Version).Methods(http.MethodGet)
	r.Handle("/auth/login", loginLimit(http.HandlerFunc(authHandler.Login))).Methods(http.MethodPost)
	r.Handle("/auth/logout", requireAuth(http.HandlerFunc(authHandler.Logout))).Methods(http.MethodPost)

	// Admin endpoints
	crosses := r.PathPrefix("/crosses").Subrouter()
	crosses.Use(requireAuth, RequireStaff)
	crosses.HandleFunc("", crossHandler.Create).Methods(http.MethodPost)
	crosses.HandleFunc("", crossHandler.List).Methods(http.MethodGet)
	crosses.HandleFunc("/{id:[0-9]+}", crossHandler.Get).Methods(http.MethodGet)
	crosses.HandleFunc("/{id:[0-9]+}", crossHandler.Delete).Methods(http.MethodDelete)
	crosses.HandleFunc("/{id:[0-9]+}/start", crossHandler.Start).Methods(http.MethodPost)
	crosses.HandleFunc("/{id:[0-9]+}/results", crossHandler.Results).Methods(http.MethodGet)
	crosses.HandleFunc("/{id:[0-9]+}/results/stream", wsHandler.ServeWS).Methods(http.MethodGet)

	// Team endpoints
	tasks := r.PathPrefix("/tasks").Subrouter()
	tasks.Use(requireAuth)
	tasks.HandleFunc("", taskHandler.List).Methods(http.MethodGet)
	tasks.Handle("/{id:[0-9]+}/submit", submitLimit(http.HandlerFunc(taskHandler.Submit))).Methods(http.MethodPost)
	tasks.HandleFunc("/{id:[0-9]+}/hints/{hint_number}", taskHandler.Hint).Methods(http.MethodPost)

	users := r.PathPrefix("/users").Subrouter()
	users.Use(requireAuth)
	users.HandleFunc("", userHandler.Create).Methods(http.MethodPost)
	users.HandleFunc("", userHandler.List).Methods(http.MethodGet)
	users.HandleFunc("/{id:[0-9]+}", userHandler.Get).Methods(http.MethodGet)
	users.HandleFunc("/{id:[0-9]+}", userHandler.Update).Methods(http.MethodPut, http.MethodPatch)
	users.HandleFunc("/{id:[0-9]+}", userHandler.Delete).Methods(http.MethodDelete)

	return r
}
