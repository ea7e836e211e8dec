package api

import (
	"net/http"

	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/types"
)

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := s.authService.GetSession(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"cookie": cookie})
}

func (s *Server) handleGetAuthType(w http.ResponseWriter, r *http.Request) {
	authType, err := s.authService.GetAuthType(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]types.AuthType{"authType": authType})
}

type syncResult struct {
	Scanned int `json:"scanned"`
}

func (s *Server) handleBlocksSync(w http.ResponseWriter, r *http.Request) {
	scanned, err := s.syncService.BlocksSync(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, syncResult{Scanned: scanned})
}

func (s *Server) handleTxsSync(w http.ResponseWriter, r *http.Request) {
	scanned, err := s.syncService.TxsSync(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, syncResult{Scanned: scanned})
}

func (s *Server) handleSyncBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.syncService.SyncBackup(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"synced": true})
}

func (s *Server) handleTransactionMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.TransactionMessage
	if err := parseJSONBody(r, &msg); err != nil {
		respondError(w, err)
		return
	}

	scanned, err := s.syncService.ReceiveTransactionMessage(r.Context(), &msg)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, syncResult{Scanned: scanned})
}
