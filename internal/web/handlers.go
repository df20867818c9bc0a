package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/praxishq/intake/internal/logging"
	"github.com/praxishq/intake/internal/pipeline"
	"github.com/praxishq/intake/internal/schema"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// entityInfo describes one importable entity type for clients building
// job requests.
type entityInfo struct {
	Entity    schema.EntityType   `json:"entity"`
	Label     string              `json:"label"`
	DependsOn []schema.EntityType `json:"depends_on,omitempty"`
}

// handleListEntities lists the entity types the engine understands.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	defs := schema.All()
	out := make([]entityInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, entityInfo{Entity: def.Entity, Label: def.Label, DependsOn: def.DependsOn})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })

	writeJSON(w, http.StatusOK, out)
}

// createJobRequest is the body of POST /api/jobs.
type createJobRequest struct {
	Files []pipeline.File `json:"files"`
}

// handleCreateJob registers a queued job from file descriptors.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	snap, err := s.jobs.Create(req.Files)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	logging.WithJob(r.Context(), snap.ID).Info("job created", "files", len(req.Files))
	writeJSON(w, http.StatusCreated, snap)
}

// handleListJobs returns every known job.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	snaps := s.jobs.Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.Before(snaps[j].CreatedAt) })
	writeJSON(w, http.StatusOK, snaps)
}

// handleStartJob launches the pipeline for a queued job.
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.jobs.Start(jobID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.WithJob(r.Context(), jobID).Info("job started")

	snap, err := s.jobs.Snapshot(jobID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// handleJobStatus returns a job's status and counters.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.Snapshot(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleJobLogs returns a job's import narrative. The optional ?since=N
// query returns only entries with a larger sequence number, for polling.
func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		since = n
	}

	logs, err := s.jobs.Logs(chi.URLParam(r, "jobID"), since)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// handleJobQuestions returns a job's pending questions.
func (s *Server) handleJobQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.jobs.Questions(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

// answerRequest is the body of POST /api/questions/{questionID}/answer.
type answerRequest struct {
	Answer string `json:"answer"`
}

// handleAnswer routes a responder's answer to the owning job.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "questionID")

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.jobs.Answer(questionID, req.Answer); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("question answered", "question_id", questionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleCancelJob cancels a job and unblocks any pending question.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.jobs.Cancel(jobID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.WithJob(r.Context(), jobID).Info("job cancelled")

	snap, err := s.jobs.Snapshot(jobID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
