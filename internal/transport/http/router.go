package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/go-classroom-api/internal/application/dispatch"
	groupapp "github.com/go-classroom-api/internal/application/group"
	"github.com/go-classroom-api/internal/application/membership"
	notifapp "github.com/go-classroom-api/internal/application/notification"
	"github.com/go-classroom-api/internal/application/session"
	userapp "github.com/go-classroom-api/internal/application/user"
	"github.com/go-classroom-api/internal/config"
	"github.com/go-classroom-api/internal/domain"
	"github.com/go-classroom-api/internal/transport/http/handler"
	appmiddleware "github.com/go-classroom-api/internal/transport/http/middleware"
	"github.com/go-classroom-api/internal/transport/ws"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	resolver := membership.NewResolver(deps.GroupRepo)
	notifSvc := notifapp.NewService(deps.NotificationRepo, deps.UserRepo)
	dispatchSvc := dispatch.NewService(dispatch.ServiceDeps{
		Groups:      deps.GroupRepo,
		Users:       deps.UserRepo,
		Messages:    deps.MessageRepo,
		Resolver:    resolver,
		Notifier:    notifSvc,
		Attachments: deps.Attachments,
		Broadcaster: deps.Registry,
		Logger:      deps.Logger,
	})
	groupSvc := groupapp.NewService(groupapp.ServiceDeps{
		Repo:        deps.GroupRepo,
		Users:       deps.UserRepo,
		Notifier:    notifSvc,
		Broadcaster: deps.Registry,
		Alerts:      deps.Alerts,
		Logger:      deps.Logger,
	})
	userSvc := userapp.NewService(deps.UserRepo)
	sessionSvc := session.NewService(deps.SessionRepo, deps.UserRepo, deps.JWTProvider)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)
	groupH := handler.NewGroupHandler(groupSvc)
	messageH := handler.NewMessageHandler(dispatchSvc, cfg.UploadTempDir, cfg.MaxAttachmentBytes, deps.Logger)
	notifH := handler.NewNotificationHandler(notifSvc)
	attachmentH := handler.NewAttachmentHandler(deps.Attachments)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)

		// Realtime endpoint. Browsers cannot set an Authorization header during
		// the websocket handshake, so subscription happens via the join protocol.
		r.Get("/ws", ws.NewHandler(deps.Registry, deps.Logger).ServeHTTP)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/roles", handler.ListRoles)

			r.Get("/users/{id}", userH.Get)
			r.Get("/users/{id}/messages", messageH.ListUserMessages)
			r.Post("/users/{id}/messages", messageH.SendToUser)

			r.Get("/groups", groupH.List)
			r.Get("/groups/{id}", groupH.Get)
			r.Get("/groups/{id}/messages", messageH.ListGroupMessages)
			r.Post("/groups/{id}/messages", messageH.SendToGroup)

			r.Get("/messages/{id}", messageH.Get)

			r.Get("/notifications", notifH.List)
			r.Put("/notifications/{id}", notifH.MarkAsRead)

			r.Get("/attachments/{name}", attachmentH.Get)

			// Instructor or admin
			r.With(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleInstructor)).
				Put("/groups/{id}/risk", groupH.SetRiskFlag)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/groups", groupH.Create)
				r.Put("/groups/{id}", groupH.Update)

				r.Delete("/users/{id}", userH.Delete)
				r.Delete("/notifications/{id}", notifH.Delete)
			})
		})
	})

	return r
}
