package api

import (
	"net/http"

	"github.com/obscura-systems/wallet-core/internal/types"
)

type createWalletRequest struct {
	Password  string         `json:"password"`
	WordCount int            `json:"wordCount"`
	Language  types.Language `json:"language"`
}

func (s *Server) handleCreateSeedPhraseWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := s.accountService.CreateSeedPhraseWallet(r.Context(), req.Password, req.WordCount, req.Language)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

type importWalletRequest struct {
	Password   string `json:"password"`
	PrivateKey string `json:"privateKey"`
}

func (s *Server) handleImportWallet(w http.ResponseWriter, r *http.Request) {
	var req importWalletRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := s.accountService.ImportWallet(r.Context(), req.Password, req.PrivateKey)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

type recoverWalletRequest struct {
	Password   string         `json:"password"`
	SeedPhrase string         `json:"seedPhrase"`
	Language   types.Language `json:"language"`
}

func (s *Server) handleRecoverWallet(w http.ResponseWriter, r *http.Request) {
	var req recoverWalletRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := s.accountService.RecoverWalletFromSeedPhrase(r.Context(), req.Password, req.SeedPhrase, req.Language, s.backup)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleDeleteLocal(w http.ResponseWriter, r *http.Request) {
	if err := s.accountService.DeleteLocalForRecovery(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type deleteWalletRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	var req deleteWalletRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.accountService.DeleteUtil(r.Context(), req.Password); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	address, err := s.accountService.GetAddressString(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"address": address})
}

func (s *Server) handleGetUsername(w http.ResponseWriter, r *http.Request) {
	username, err := s.accountService.GetUsername(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"username": username})
}

type updateUsernameRequest struct {
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

func (s *Server) handleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	var req updateUsernameRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.accountService.UpdateUsername(r.Context(), req.Username, req.Discriminator); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleGetBackupFlag(w http.ResponseWriter, r *http.Request) {
	on, err := s.accountService.GetBackupFlag(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"backup": on})
}

type updateBackupFlagRequest struct {
	Backup bool `json:"backup"`
}

func (s *Server) handleUpdateBackupFlag(w http.ResponseWriter, r *http.Request) {
	var req updateBackupFlagRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.accountService.UpdateBackupFlag(r.Context(), req.Backup, s.backup); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"backup": req.Backup})
}

func (s *Server) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := s.accountService.GetNetwork(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]types.Network{"network": network})
}

type updateNetworkRequest struct {
	Network types.Network `json:"network"`
}

func (s *Server) handleUpdateNetwork(w http.ResponseWriter, r *http.Request) {
	var req updateNetworkRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.accountService.UpdateNetwork(r.Context(), req.Network); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]types.Network{"network": req.Network})
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	language, err := s.accountService.GetLanguage(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]types.Language{"language": language})
}

type updateLanguageRequest struct {
	Language types.Language `json:"language"`
}

func (s *Server) handleUpdateLanguage(w http.ResponseWriter, r *http.Request) {
	var req updateLanguageRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.accountService.UpdateLanguage(r.Context(), req.Language); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]types.Language{"language": req.Language})
}

func (s *Server) handleGetLastSync(w http.ResponseWriter, r *http.Request) {
	lastSync, err := s.accountService.GetLastSync(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lastSync)
}

type openURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleOpenURL(w http.ResponseWriter, r *http.Request) {
	var req openURLRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := s.accountService.OpenURL(req.URL); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"opened": true})
}
