package auth

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/admin/signup", h.Signup)
	r.Post("/admin/login", h.Login)
	r.Get("/admin/check-auth", h.CheckAuth)
	r.Get("/admin/dashboard", h.Dashboard)
	r.Post("/admin/logout", h.Logout)
	r.Post("/admin/ws-token", h.WSToken)
}
