package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/citybrief/citybrief/internal/agent"
	"github.com/citybrief/citybrief/internal/cache"
	"github.com/citybrief/citybrief/internal/cryptoutil"
	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/requestctx"
	"github.com/citybrief/citybrief/internal/session"
	"github.com/citybrief/citybrief/internal/weather"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// handleSessionCreate issues a fresh session id plus its signed token. The
// client presents both on every subsequent call.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"token":      cryptoutil.SignSession(sessionID, s.signingKey),
	})
}

type chatRequest struct {
	Place    string `json:"place"`
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	req.Place = strings.TrimSpace(req.Place)
	if req.Place == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "place is required")
		return
	}

	resp, err := s.orchestrator.Chat(r.Context(), agent.ChatRequest{
		SessionID: requestctx.SessionID(r.Context()),
		Place:     req.Place,
		Question:  req.Question,
		Debug:     r.URL.Query().Get("debug") == "true",
	})
	if err != nil {
		log.Error().Err(err).Str("place", req.Place).Msg("chat_turn_failed")
		writeError(w, http.StatusInternalServerError, "internal", "could not complete the briefing")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWeather serves the raw forecast summary. Today views are memoized
// briefly per place; tomorrow views are always fetched fresh.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	place := strings.TrimSpace(r.URL.Query().Get("place"))
	if place == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "place is required")
		return
	}
	horizon := weather.ParseHorizon(r.URL.Query().Get("horizon"))

	if horizon == weather.HorizonToday {
		var cached weather.Summary
		if s.viewCache.GetJSON(r.Context(), cache.WeatherViewKey(place), &cached) {
			writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	summary, err := s.weatherClient.Summary(r.Context(), place, horizon)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream_failed", err.Error())
		return
	}
	if horizon == weather.HorizonToday {
		s.viewCache.SetJSON(r.Context(), cache.WeatherViewKey(place), summary)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	place := strings.TrimSpace(r.URL.Query().Get("place"))
	if place == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "place is required")
		return
	}

	key := cache.NewsViewKey(place)
	var cached []news.Item
	if s.viewCache.GetJSON(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, newsViewBody(place, cached))
		return
	}

	countryCode := ""
	if loc, err := s.weatherClient.Geocode(r.Context(), place); err == nil {
		countryCode = loc.CountryCode
	}
	items, err := s.newsClient.Fetch(r.Context(), place, countryCode)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream_failed", err.Error())
		return
	}
	s.viewCache.SetJSON(r.Context(), key, items)
	writeJSON(w, http.StatusOK, newsViewBody(place, items))
}

func newsViewBody(place string, items []news.Item) map[string]interface{} {
	body := map[string]interface{}{
		"count": len(items),
		"items": items,
	}
	if len(items) == 0 {
		body["items"] = []news.Item{}
		body["note"] = "No recent local news found for " + place + "."
	}
	return body
}

type purgeRequest struct {
	Patterns []string `json:"patterns"`
}

// handleAdminPurge deletes every key matching the requested glob patterns
// (the standard cache/session namespaces when none are given).
func (s *Server) handleAdminPurge(w http.ResponseWriter, r *http.Request) {
	patterns := session.PurgePatterns
	if r.Body != nil {
		var req purgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Patterns) > 0 {
			patterns = req.Patterns
		}
	}

	removed, err := s.store.DeleteByPatterns(r.Context(), patterns)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	log.Info().Int("removed", removed).Strs("patterns", patterns).Msg("admin_purge_complete")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed":  removed,
		"patterns": patterns,
	})
}

func (s *Server) handleAdminMemory(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.Usage(r.Context(), s.memoryThresholdMB)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
