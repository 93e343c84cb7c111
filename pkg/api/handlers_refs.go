package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elettra-ics/inau/pkg/refstore"
)

func (s *Server) refRoutes(r chi.Router) {
	r.Get("/architectures", listHandler(s.refs.Architectures))
	r.Post("/architectures", s.admin(createHandler[refstore.Architecture](s)))
	r.Get("/distributions", listHandler(s.refs.Distributions))
	r.Post("/distributions", s.admin(createHandler[refstore.Distribution](s)))
	r.Get("/platforms", listHandler(s.refs.Platforms))
	r.Post("/platforms", s.admin(createHandler[refstore.Platform](s)))
	r.Get("/providers", listHandler(s.refs.Providers))
	r.Post("/providers", s.admin(createHandler[refstore.Provider](s)))
	r.Get("/repositories", listHandler(s.refs.Repositories))
	r.Post("/repositories", s.admin(createHandler[refstore.Repository](s)))
	r.Get("/servers", listHandler(s.refs.Servers))
	r.Post("/servers", s.admin(createHandler[refstore.Server](s)))
	r.Get("/facilities", listHandler(s.refs.Facilities))
	r.Post("/facilities", s.admin(createHandler[refstore.Facility](s)))
	r.Get("/hosts", s.listHosts)
	r.Post("/hosts", s.admin(createHandler[refstore.Host](s)))
	r.Get("/users", listHandler(s.refs.Users))
	r.Post("/users", s.admin(createHandler[refstore.User](s)))
}

func listHandler[T any](list func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := list(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func createHandler[T any](s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var row T
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.refs.Create(r.Context(), &row); err != nil {
			writeStoreError(w, err)
			return
		}
		s.cacheMgr.InvalidateRefs()
		writeJSON(w, http.StatusCreated, row)
	}
}

// listHosts supports the ?facility=<name> filter on top of the plain list.
func (s *Server) listHosts(w http.ResponseWriter, r *http.Request) {
	if facility := r.URL.Query().Get("facility"); facility != "" {
		rows, err := s.refs.HostsByFacility(r.Context(), facility)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
		return
	}
	listHandler(s.refs.Hosts)(w, r)
}
