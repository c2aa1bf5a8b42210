package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	rewardservice "questline/contexts/player-progression/reward-service"
	rewarderrors "questline/contexts/player-progression/reward-service/domain/errors"
	rewardhttp "questline/contexts/player-progression/reward-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "questline/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	rewards rewardservice.Module
}

func New(rewards rewardservice.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		rewards: rewards,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/rewards", s.handleAwardReward)
	s.mux.HandleFunc("GET /v1/rewards/profile/{user_id}", s.handleGetProfile)
	s.mux.HandleFunc("GET /v1/leaderboards/{window}", s.handleGetLeaderboard)
	s.mux.HandleFunc("GET /v1/leaderboards/{window}/rank/{user_id}", s.handleGetRank)
	s.mux.HandleFunc("GET /v1/leaderboards/{window}/around/{user_id}", s.handleGetAround)
	s.mux.HandleFunc("GET /v1/leaderboards/{window}/snapshots/{period_id}", s.handleGetSnapshot)
}

func (s *Server) handleAwardReward(w http.ResponseWriter, r *http.Request) {
	var req rewardhttp.AwardRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRewardError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.rewards.Handler.AwardRewardHandler(
		r.Context(),
		req,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeRewardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	resp, err := s.rewards.Handler.GetProfileHandler(r.Context(), userID)
	if err != nil {
		writeRewardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeRewardError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = value
	}
	offset := 0
	if raw := query.Get("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeRewardError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}
		offset = value
	}

	resp, err := s.rewards.Handler.GetLeaderboardHandler(r.Context(), r.PathValue("window"), limit, offset)
	if err != nil {
		writeRewardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRank(w http.ResponseWriter, r *http.Request) {
	resp, err := s.rewards.Handler.GetRankHandler(r.Context(), r.PathValue("window"), r.PathValue("user_id"))
	if err != nil {
		writeRewardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAround(w http.ResponseWriter, r *http.Request) {
	radius := 0
	if raw := r.URL.Query().Get("radius"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeRewardError(w, http.StatusBadRequest, "invalid_radius", "radius must be an integer")
			return
		}
		radius = value
	}

	resp, err := s.rewards.Handler.GetAroundHandler(r.Context(), r.PathValue("window"), r.PathValue("user_id"), radius)
	if err != nil {
		writeRewardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	resp, err := s.rewards.Handler.GetSnapshotHandler(r.Context(), r.PathValue("window"), r.PathValue("period_id"))
	if err != nil {
		writeRewardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRewardDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rewarderrors.ErrInvalidAction):
		writeRewardError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, rewarderrors.ErrInvalidAwardRequest):
		writeRewardError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, rewarderrors.ErrUnknownWindow):
		writeRewardError(w, http.StatusBadRequest, "unknown_window", err.Error())
	case errors.Is(err, rewarderrors.ErrThrottled):
		writeRewardError(w, http.StatusTooManyRequests, "throttled", err.Error())
	case errors.Is(err, rewarderrors.ErrProfileNotFound):
		writeRewardError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, rewarderrors.ErrSnapshotNotFound):
		writeRewardError(w, http.StatusNotFound, "snapshot_not_found", err.Error())
	case errors.Is(err, rewarderrors.ErrIdempotencyKeyConflict):
		writeRewardError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, rewarderrors.ErrPersistenceFailed):
		writeRewardError(w, http.StatusServiceUnavailable, "persistence_failed", err.Error())
	default:
		writeRewardError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRewardError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, rewardhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
