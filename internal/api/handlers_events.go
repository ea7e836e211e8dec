package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// pageParam reads the 1-indexed page query parameter, defaulting to 1.
func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, werr.Validation("Page must be a number")
	}
	return page, nil
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	query := r.URL.Query()
	filter := types.EventsFilter{
		EventType:  types.Flavour(query.Get("eventType")),
		ProgramID:  query.Get("programId"),
		FunctionID: query.Get("functionId"),
	}

	events, err := s.eventService.GetEvents(r.Context(), filter, page)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, werr.Validation("Event id must be a UUID"))
		return
	}

	event, err := s.eventService.GetEvent(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (s *Server) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		respondError(w, err)
		return
	}

	query := r.URL.Query()
	filter := types.RecordsFilter{
		Scope:      types.RecordScope(query.Get("scope")),
		FunctionID: query.Get("functionId"),
		RecordName: query.Get("recordName"),
	}
	if raw := query.Get("programIds"); raw != "" {
		filter.ProgramIDs = strings.Split(raw, ",")
	}

	records, err := s.eventService.GetRecords(r.Context(), filter, page)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.eventService.GetBalance(r.Context(), r.URL.Query().Get("recordName"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"microcredits": balance})
}

type decryptRecordsRequest struct {
	Ciphertexts []string `json:"ciphertexts"`
}

func (s *Server) handleDecryptRecords(w http.ResponseWriter, r *http.Request) {
	var req decryptRecordsRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	records, err := s.eventService.DecryptRecords(r.Context(), req.Ciphertexts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}
