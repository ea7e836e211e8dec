package api

import (
	"net/http"

	"github.com/obscura-systems/wallet-core/internal/service"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

func (s *Server) handleRequestCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEventRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	txID, err := s.actionService.RequestCreateEvent(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"transactionId": txID})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req service.TransferRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	txID, err := s.actionService.Transfer(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"transactionId": txID})
}

type signRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	signature, err := s.actionService.Sign([]byte(req.Message))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"signature": signature})
}

type verifyRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	valid, err := s.actionService.Verify(req.Address, []byte(req.Message), req.Signature)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// deeplinkRequest is an external sign or transfer hand-off. The kind
// selects which of the embedded payloads applies.
type deeplinkRequest struct {
	Kind     string                      `json:"kind"`
	Sign     *signRequest                `json:"sign,omitempty"`
	Transfer *service.TransferRequest    `json:"transfer,omitempty"`
	Event    *service.CreateEventRequest `json:"event,omitempty"`
}

func (s *Server) handleDeeplink(w http.ResponseWriter, r *http.Request) {
	var req deeplinkRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	switch req.Kind {
	case "sign":
		if req.Sign == nil {
			respondError(w, werr.Validation("Sign payload is required"))
			return
		}
		signature, err := s.actionService.Sign([]byte(req.Sign.Message))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"signature": signature})
	case "transfer":
		if req.Transfer == nil {
			respondError(w, werr.Validation("Transfer payload is required"))
			return
		}
		txID, err := s.actionService.Transfer(r.Context(), req.Transfer)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"transactionId": txID})
	case "event":
		if req.Event == nil {
			respondError(w, werr.Validation("Event payload is required"))
			return
		}
		txID, err := s.actionService.RequestCreateEvent(r.Context(), req.Event)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"transactionId": txID})
	default:
		respondError(w, werr.Validation("Unknown deep link kind"))
	}
}
