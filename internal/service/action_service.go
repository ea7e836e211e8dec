package service

import (
	"context"
	"strconv"
	"time"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/session"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/vault"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// ProveRequest describes one program execution to prove.
type ProveRequest struct {
	PrivateKey string   `json:"-"`
	ProgramID  string   `json:"programId"`
	FunctionID string   `json:"functionId"`
	Inputs     []string `json:"inputs"`
	Fee        uint64   `json:"fee"`
}

// Prover turns an execution request into a proved transaction string.
// Proving internals live behind this boundary.
type Prover interface {
	Prove(ctx context.Context, req *ProveRequest) (string, error)
}

// ActionService executes state-changing wallet operations: program
// executions, transfers, and message signing.
type ActionService struct {
	vault     *vault.Vault
	sessions  *session.Sessions
	dataRepo  *storage.EncryptedDataRepository
	prefsRepo *storage.PreferencesRepository
	chain     adapter.ChainClient
	prover    Prover
}

// NewActionService creates a new action service.
func NewActionService(v *vault.Vault, sessions *session.Sessions, dataRepo *storage.EncryptedDataRepository, prefsRepo *storage.PreferencesRepository, chain adapter.ChainClient, prover Prover) *ActionService {
	return &ActionService{
		vault:     v,
		sessions:  sessions,
		dataRepo:  dataRepo,
		prefsRepo: prefsRepo,
		chain:     chain,
		prover:    prover,
	}
}

// spendingKey re-derives the spending key, consuming the password session.
func (s *ActionService) spendingKey() (*keys.SpendingKey, error) {
	password, err := s.sessions.Password.Get()
	if err != nil {
		return nil, err
	}
	privateKey, err := s.vault.Read(password, types.KeySpending)
	if err != nil {
		return nil, err
	}
	return keys.ParsePrivateKey(privateKey)
}

// CreateEventRequest describes a program execution requested by the UI
// or a deep link.
type CreateEventRequest struct {
	ProgramID  string   `json:"programId"`
	FunctionID string   `json:"functionId"`
	Inputs     []string `json:"inputs"`
	Fee        uint64   `json:"fee"`
}

// RequestCreateEvent proves and broadcasts a program execution, tracking
// it locally as a pending transaction.
func (s *ActionService) RequestCreateEvent(ctx context.Context, req *CreateEventRequest) (string, error) {
	if req.ProgramID == "" || req.FunctionID == "" {
		return "", werr.Validation("Program and function are required")
	}
	if s.prover == nil {
		return "", werr.Internal("no prover configured", nil)
	}

	sk, err := s.spendingKey()
	if err != nil {
		return "", err
	}
	vk := sk.ViewingKey()

	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}

	proved, err := s.prover.Prove(ctx, &ProveRequest{
		PrivateKey: sk.String(),
		ProgramID:  req.ProgramID,
		FunctionID: req.FunctionID,
		Inputs:     req.Inputs,
		Fee:        req.Fee,
	})
	if err != nil {
		return "", err
	}

	txID, err := s.chain.BroadcastTransaction(ctx, proved)
	if err != nil {
		return "", err
	}

	row, err := models.ToEncryptedData(vk, prefs.Address, prefs.Network, &models.TransactionPointer{
		TransactionID: txID,
		State:         types.StatePending,
		Timestamp:     time.Now().UTC(),
		ProgramID:     req.ProgramID,
		FunctionID:    req.FunctionID,
		Fee:           req.Fee,
		Inputs:        req.Inputs,
	})
	if err != nil {
		return "", err
	}
	if err := s.dataRepo.Insert(ctx, row); err != nil && !werr.Is(err, werr.KindDuplicate) {
		return "", err
	}
	return txID, nil
}

// TransferRequest describes a credits transfer.
type TransferRequest struct {
	Recipient    string `json:"recipient"`
	Microcredits uint64 `json:"microcredits"`
	Fee          uint64 `json:"fee"`
	Private      bool   `json:"private"`
}

// Transfer sends credits to another address.
func (s *ActionService) Transfer(ctx context.Context, req *TransferRequest) (string, error) {
	if err := keys.ValidateAddress(req.Recipient); err != nil {
		return "", err
	}
	if req.Microcredits == 0 {
		return "", werr.Validation("Transfer amount must be positive")
	}

	function := "transfer_public"
	if req.Private {
		function = "transfer_private"
	}
	return s.RequestCreateEvent(ctx, &CreateEventRequest{
		ProgramID:  "credits.aleo",
		FunctionID: function,
		Inputs:     []string{req.Recipient, formatMicrocredits(req.Microcredits)},
		Fee:        req.Fee,
	})
}

// Sign produces a wallet signature over an arbitrary message.
func (s *ActionService) Sign(message []byte) (string, error) {
	if len(message) == 0 {
		return "", werr.Validation("Message is required")
	}
	sk, err := s.spendingKey()
	if err != nil {
		return "", err
	}
	return sk.Sign(message)
}

// Verify checks a signature, optionally binding it to an address.
func (s *ActionService) Verify(address string, message []byte, signature string) (bool, error) {
	if len(message) == 0 || signature == "" {
		return false, werr.Validation("Message and signature are required")
	}
	return keys.Verify(address, message, signature)
}

func formatMicrocredits(amount uint64) string {
	return strconv.FormatUint(amount, 10) + "u64"
}
