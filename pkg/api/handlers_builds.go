package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elettra-ics/inau/pkg/builds"
)

func (s *Server) buildRoutes(r chi.Router) {
	r.Post("/", s.admin(s.recordBuild))
	r.Get("/latest", s.latestBuild)
	r.Get("/{id}", s.getBuild)
	r.Post("/{id}/status", s.admin(s.setBuildStatus))
	r.Post("/{id}/artifacts", s.admin(s.recordArtifact))
	r.Get("/{id}/artifacts", s.listArtifacts)
}

type recordBuildRequest struct {
	RepositoryID int64  `json:"repositoryId"`
	Repository   string `json:"repository"`
	PlatformID   int64  `json:"platformId"`
	Tag          string `json:"tag"`
}

func (s *Server) recordBuild(w http.ResponseWriter, r *http.Request) {
	var req recordBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RepositoryID == 0 && req.Repository != "" {
		repo, err := s.refs.RepositoryByName(r.Context(), req.Repository)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		req.RepositoryID = repo.ID
	}
	ref, err := s.builds.RecordBuild(r.Context(), req.RepositoryID, req.PlatformID, req.Tag)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// buildRef reconstructs the composite build reference from the path id and
// the date query parameter. Both parts are needed to locate the segment.
func buildRef(r *http.Request) (builds.Ref, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return builds.Ref{}, false
	}
	date, err := time.Parse(time.RFC3339, r.URL.Query().Get("date"))
	if err != nil {
		return builds.Ref{}, false
	}
	return builds.Ref{ID: id, Date: date}, true
}

func (s *Server) getBuild(w http.ResponseWriter, r *http.Request) {
	ref, ok := buildRef(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id and an RFC3339 date parameter are required")
		return
	}
	rec, err := s.builds.Get(r.Context(), ref)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) latestBuild(w http.ResponseWriter, r *http.Request) {
	repositoryID, err := strconv.ParseInt(r.URL.Query().Get("repositoryId"), 10, 64)
	if err != nil {
		if name := r.URL.Query().Get("repository"); name != "" {
			repo, rerr := s.refs.RepositoryByName(r.Context(), name)
			if rerr != nil {
				writeStoreError(w, rerr)
				return
			}
			repositoryID = repo.ID
		} else {
			writeError(w, http.StatusBadRequest, "repositoryId or repository is required")
			return
		}
	}
	rec, err := s.builds.LatestSuccessful(r.Context(), repositoryID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no successful build")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type setStatusRequest struct {
	Status builds.Status `json:"status"`
	Output string        `json:"output"`
}

func (s *Server) setBuildStatus(w http.ResponseWriter, r *http.Request) {
	ref, ok := buildRef(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id and an RFC3339 date parameter are required")
		return
	}
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.builds.SetStatus(r.Context(), ref, req.Status, req.Output); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordArtifactRequest struct {
	Filename      string  `json:"filename"`
	Hash          *string `json:"hash,omitempty"`
	SymlinkTarget *string `json:"symlinkTarget,omitempty"`
}

func (s *Server) recordArtifact(w http.ResponseWriter, r *http.Request) {
	ref, ok := buildRef(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id and an RFC3339 date parameter are required")
		return
	}
	var req recordArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.builds.RecordArtifact(r.Context(), ref, req.Filename, req.Hash, req.SymlinkTarget)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	ref, ok := buildRef(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id and an RFC3339 date parameter are required")
		return
	}
	rows, err := s.builds.Artifacts(r.Context(), ref)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if rows == nil {
		rows = []builds.Artifact{}
	}
	writeJSON(w, http.StatusOK, rows)
}
