package ws

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/ws/visitor", h.ServeVisitor)
	r.Get("/ws/admin", h.ServeAdmin)
}
