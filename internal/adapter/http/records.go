package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/cad-navigation-service/internal/store"
)

func (s *Server) registerRecords(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/accident-reports", s.handleListAccidents)
	mux.HandleFunc("POST /api/accident-reports", s.handleCreateAccident)
	mux.HandleFunc("GET /api/accident-reports/{id}", s.handleGetAccident)

	mux.HandleFunc("GET /api/violation-reports", s.handleListViolations)
	mux.HandleFunc("POST /api/violation-reports", s.handleCreateViolation)
	mux.HandleFunc("GET /api/violation-reports/{id}", s.handleGetViolation)

	mux.HandleFunc("GET /api/wanted-persons", s.handleListWanted)
	mux.HandleFunc("POST /api/wanted-persons", s.handleCreateWanted)
	mux.HandleFunc("GET /api/wanted-persons/{id}", s.handleGetWanted)
	mux.HandleFunc("GET /api/wanted-persons/by-person/{personId}", s.handleGetWantedByPersonID)

	mux.HandleFunc("GET /api/weather/{location}", s.handleGetWeather)
	mux.HandleFunc("PUT /api/weather", s.handleUpdateWeather)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleListAccidents(w http.ResponseWriter, r *http.Request) {
	reports, err := s.deps.Records.ListAccidentReports(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCreateAccident(w http.ResponseWriter, r *http.Request) {
	var req store.AccidentReport
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Location) == "" || strings.TrimSpace(req.Description) == "" {
		respondError(w, http.StatusBadRequest, "location and description are required")
		return
	}
	created, err := s.deps.Records.CreateAccidentReport(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetAccident(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Records.GetAccidentReport(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	reports, err := s.deps.Records.ListViolationReports(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCreateViolation(w http.ResponseWriter, r *http.Request) {
	var req store.ViolationReport
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Location) == "" || strings.TrimSpace(req.ViolationType) == "" {
		respondError(w, http.StatusBadRequest, "location and violationType are required")
		return
	}
	created, err := s.deps.Records.CreateViolationReport(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetViolation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Records.GetViolationReport(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleListWanted lists wanted persons, filtered by ?q= when present.
func (s *Server) handleListWanted(w http.ResponseWriter, r *http.Request) {
	var (
		persons []store.WantedPerson
		err     error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		persons, err = s.deps.Records.SearchWantedPersons(r.Context(), q)
	} else {
		persons, err = s.deps.Records.ListWantedPersons(r.Context())
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, persons)
}

func (s *Server) handleCreateWanted(w http.ResponseWriter, r *http.Request) {
	var req store.WantedPerson
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PersonID) == "" || strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "personId and name are required")
		return
	}
	created, err := s.deps.Records.CreateWantedPerson(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetWanted(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	person, err := s.deps.Records.GetWantedPerson(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, person)
}

func (s *Server) handleGetWantedByPersonID(w http.ResponseWriter, r *http.Request) {
	person, err := s.deps.Records.GetWantedPersonByPersonID(r.Context(), r.PathValue("personId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, person)
}

func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.PathValue("location"))
	if location == "" {
		respondError(w, http.StatusBadRequest, "location is required")
		return
	}
	weather, err := s.deps.Records.GetWeather(r.Context(), location)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, weather)
}

func (s *Server) handleUpdateWeather(w http.ResponseWriter, r *http.Request) {
	var req store.Weather
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		respondError(w, http.StatusBadRequest, "location is required")
		return
	}
	updated, err := s.deps.Records.UpdateWeather(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
