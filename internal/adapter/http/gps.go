package http

import (
	"context"
	"net/http"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/navigation"
)

// Navigator is the navigation controller as seen by the API.
type Navigator interface {
	Search(ctx context.Context, query string) ([]domain.Location, error)
	SelectByID(ctx context.Context, id string) (domain.Location, error)
	SelectDestination(ctx context.Context, loc domain.Location) (domain.Location, error)
	ClearDestination(ctx context.Context)
	Go(ctx context.Context) (navigation.Session, error)
	Stop(ctx context.Context)
	Next(ctx context.Context) (domain.NavigationInstruction, error)
	Repeat() (domain.NavigationInstruction, error)
	SetAutoCenter(enabled bool)
	Snapshot() navigation.Snapshot
}

type destinationRequest struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Address string   `json:"address,omitempty"`
}

type autoCenterRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) registerGPS(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/gps/search", s.handleSearch)
	mux.HandleFunc("POST /api/gps/destination", s.handleSelectDestination)
	mux.HandleFunc("DELETE /api/gps/destination", s.handleClearDestination)
	mux.HandleFunc("POST /api/gps/go", s.handleGo)
	mux.HandleFunc("POST /api/gps/stop", s.handleStop)
	mux.HandleFunc("POST /api/gps/next", s.handleNext)
	mux.HandleFunc("POST /api/gps/repeat", s.handleRepeat)
	mux.HandleFunc("PUT /api/gps/autocenter", s.handleAutoCenter)
	mux.HandleFunc("GET /api/gps/state", s.handleState)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	locs, err := s.deps.Nav.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, locs)
}

func (s *Server) handleSelectDestination(w http.ResponseWriter, r *http.Request) {
	var req destinationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		loc domain.Location
		err error
	)
	switch {
	case req.ID != "":
		loc, err = s.deps.Nav.SelectByID(r.Context(), req.ID)
	case req.Lat != nil && req.Lng != nil:
		at := domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
		if !at.Valid() {
			respondError(w, http.StatusBadRequest, "lat or lng out of range")
			return
		}
		loc, err = s.deps.Nav.SelectDestination(r.Context(), domain.Location{
			ID:      "manual",
			Name:    req.Name,
			Lat:     at.Lat,
			Lng:     at.Lng,
			Address: req.Address,
			Source:  "manual",
		})
	default:
		respondError(w, http.StatusBadRequest, "either id or lat and lng are required")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loc)
}

func (s *Server) handleClearDestination(w http.ResponseWriter, r *http.Request) {
	s.deps.Nav.ClearDestination(r.Context())
	respondJSON(w, http.StatusOK, s.deps.Nav.Snapshot())
}

func (s *Server) handleGo(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Nav.Go(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.deps.Nav.Stop(r.Context())
	respondJSON(w, http.StatusOK, s.deps.Nav.Snapshot())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	in, err := s.deps.Nav.Next(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, in)
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	in, err := s.deps.Nav.Repeat()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, in)
}

func (s *Server) handleAutoCenter(w http.ResponseWriter, r *http.Request) {
	var req autoCenterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.deps.Nav.SetAutoCenter(req.Enabled)
	respondJSON(w, http.StatusOK, s.deps.Nav.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Nav.Snapshot())
}
