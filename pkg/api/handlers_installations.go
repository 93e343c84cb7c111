package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elettra-ics/inau/pkg/builds"
	"github.com/elettra-ics/inau/pkg/ledger"
)

func (s *Server) installationRoutes(r chi.Router) {
	r.Post("/", s.putInstallation)
	r.Get("/", s.activeInstallations)
	r.Get("/current", s.currentInstallation)
	r.Get("/as-of", s.installationAsOf)
	r.Get("/history", s.installationHistory)
}

type putInstallationRequest struct {
	HostID      int64              `json:"hostId"`
	Host        string             `json:"host"`
	UserID      int64              `json:"userId"`
	BuildID     int64              `json:"buildId"`
	BuildDate   time.Time          `json:"buildDate"`
	Kind        ledger.InstallKind `json:"kind"`
	InstalledAt time.Time          `json:"installedAt"`
}

func (s *Server) putInstallation(w http.ResponseWriter, r *http.Request) {
	var req putInstallationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HostID == 0 && req.Host != "" {
		host, err := s.refs.HostByName(r.Context(), req.Host)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		req.HostID = host.ID
	}
	if req.UserID == 0 {
		if user := UserFrom(r.Context()); user != nil {
			req.UserID = user.ID
		}
	}
	version, err := s.ledger.Put(r.Context(), ledger.PutRequest{
		HostID:      req.HostID,
		UserID:      req.UserID,
		Build:       builds.Ref{ID: req.BuildID, Date: req.BuildDate},
		Kind:        req.Kind,
		InstalledAt: req.InstalledAt,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.cacheMgr.InvalidateReport()
	writeJSON(w, http.StatusCreated, version)
}

// entityFromQuery resolves the (host, repository) pair from the query
// string, by id or by name, into the ledger entity identity.
func (s *Server) entityFromQuery(r *http.Request) (string, bool) {
	hostID, err := strconv.ParseInt(r.URL.Query().Get("hostId"), 10, 64)
	if err != nil {
		name := r.URL.Query().Get("host")
		if name == "" {
			return "", false
		}
		host, herr := s.refs.HostByName(r.Context(), name)
		if herr != nil {
			return "", false
		}
		hostID = host.ID
	}
	repositoryID, err := strconv.ParseInt(r.URL.Query().Get("repositoryId"), 10, 64)
	if err != nil {
		name := r.URL.Query().Get("repository")
		if name == "" {
			return "", false
		}
		repo, rerr := s.refs.RepositoryByName(r.Context(), name)
		if rerr != nil {
			return "", false
		}
		repositoryID = repo.ID
	}
	return ledger.EntityID(hostID, repositoryID), true
}

func (s *Server) activeInstallations(w http.ResponseWriter, r *http.Request) {
	var rows []ledger.VersionRecord
	var err error
	if raw := r.URL.Query().Get("hostId"); raw != "" {
		hostID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "hostId must be an integer")
			return
		}
		rows, err = s.ledger.ActiveByHost(r.Context(), hostID)
	} else {
		rows, err = s.ledger.Active(r.Context())
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if rows == nil {
		rows = []ledger.VersionRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) currentInstallation(w http.ResponseWriter, r *http.Request) {
	entityID, ok := s.entityFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "host and repository are required, by id or by name")
		return
	}
	version, err := s.ledger.Current(r.Context(), entityID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if version == nil {
		writeError(w, http.StatusNotFound, "no active installation")
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (s *Server) installationAsOf(w http.ResponseWriter, r *http.Request) {
	entityID, ok := s.entityFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "host and repository are required, by id or by name")
		return
	}
	ts, err := time.Parse(time.RFC3339, r.URL.Query().Get("ts"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ts must be an RFC3339 timestamp")
		return
	}
	version, err := s.ledger.AsOf(r.Context(), entityID, ts)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if version == nil {
		writeError(w, http.StatusNotFound, "no installation at that instant")
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (s *Server) installationHistory(w http.ResponseWriter, r *http.Request) {
	entityID, ok := s.entityFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "host and repository are required, by id or by name")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	versions, err := s.ledger.History(r.Context(), entityID, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if versions == nil {
		versions = []ledger.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) facilityReport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ledger.ActiveCountByFacility(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if rows == nil {
		rows = []ledger.FacilityCount{}
	}
	writeJSON(w, http.StatusOK, rows)
}
