// Package models defines the encrypted row shape persisted by the local
// store and the typed pointer payloads sealed inside it.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// EncryptedData is one row of the encrypted_data table. The ciphertext is
// opaque to the store; only the owner's viewing key can open it.
type EncryptedData struct {
	ID               uuid.UUID               `json:"id"`
	Owner            string                  `json:"owner"`
	Ciphertext       []byte                  `json:"ciphertext"`
	Nonce            []byte                  `json:"nonce"`
	Flavour          types.Flavour           `json:"flavour"`
	ExternalID       string                  `json:"externalId"`
	ProgramID        *string                 `json:"programId,omitempty"`
	FunctionID       *string                 `json:"functionId,omitempty"`
	RecordType       *string                 `json:"recordType,omitempty"`
	RecordName       *string                 `json:"recordName,omitempty"`
	TransactionState *types.TransactionState `json:"transactionState,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        *time.Time              `json:"updatedAt,omitempty"`
	SyncedOn         *time.Time              `json:"syncedOn,omitempty"`
	Network          types.Network           `json:"network"`
	Spent            *bool                   `json:"spent,omitempty"`
}

// Pointer is a decryptable payload that knows how to describe itself as
// row metadata. The authoritative form is always the sealed ciphertext.
type Pointer interface {
	Flavour() types.Flavour
	// ExternalID dedupes rows across scanner re-runs and backup pulls.
	ExternalID() string
	annotate(row *EncryptedData)
}

// RecordPointer locates an owned record output on chain.
type RecordPointer struct {
	Commitment   string `json:"commitment"`
	TransitionID string `json:"transitionId"`
	TransactionID string `json:"transactionId"`
	Owner        string `json:"owner"`
	BlockHeight  uint64 `json:"blockHeight"`
	ProgramID    string `json:"programId"`
	FunctionID   string `json:"functionId"`
	RecordName   string `json:"recordName"`
	RecordType   string `json:"recordType"`
	Ciphertext   string `json:"ciphertext"`
	Microcredits uint64 `json:"microcredits"`
	Tag          string `json:"tag"`
	Spent        bool   `json:"spent"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

func (p *RecordPointer) Flavour() types.Flavour { return types.FlavourRecord }

func (p *RecordPointer) ExternalID() string {
	return p.TransactionID + ":" + p.Commitment
}

func (p *RecordPointer) annotate(row *EncryptedData) {
	row.ProgramID = &p.ProgramID
	row.FunctionID = &p.FunctionID
	row.RecordType = &p.RecordType
	row.RecordName = &p.RecordName
	spent := p.Spent
	row.Spent = &spent
}

// EventTransition is one transition constituting a transaction the wallet
// is a party to.
type EventTransition struct {
	TransitionID string   `json:"transitionId"`
	ProgramID    string   `json:"programId"`
	FunctionID   string   `json:"functionId"`
	Inputs       []string `json:"inputs,omitempty"`
	Outputs      []string `json:"outputs,omitempty"`
}

// TransactionPointer tracks a transaction the wallet sent or spent in.
// A locally submitted transaction starts Pending with no height.
type TransactionPointer struct {
	TransactionID string                 `json:"transactionId,omitempty"`
	State         types.TransactionState `json:"state"`
	BlockHeight   uint64                 `json:"blockHeight,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	CompletedAt   *time.Time             `json:"completedAt,omitempty"`
	ProgramID     string                 `json:"programId"`
	FunctionID    string                 `json:"functionId"`
	Fee           uint64                 `json:"fee"`
	Inputs        []string               `json:"inputs,omitempty"`
	Transitions   []EventTransition      `json:"transitions,omitempty"`
	Message       string                 `json:"message,omitempty"`
}

func (p *TransactionPointer) Flavour() types.Flavour { return types.FlavourTransaction }

func (p *TransactionPointer) ExternalID() string { return p.TransactionID }

func (p *TransactionPointer) annotate(row *EncryptedData) {
	row.ProgramID = &p.ProgramID
	row.FunctionID = &p.FunctionID
	state := p.State
	row.TransactionState = &state
}

// TransitionPointer is the narrow view for an on-chain interaction the
// wallet is a counterparty to but did not send.
type TransitionPointer struct {
	TransitionID  string    `json:"transitionId"`
	TransactionID string    `json:"transactionId"`
	ProgramID     string    `json:"programId"`
	FunctionID    string    `json:"functionId"`
	BlockHeight   uint64    `json:"blockHeight"`
	Timestamp     time.Time `json:"timestamp"`
}

func (p *TransitionPointer) Flavour() types.Flavour { return types.FlavourTransition }

func (p *TransitionPointer) ExternalID() string {
	return p.TransactionID + ":" + p.TransitionID
}

func (p *TransitionPointer) annotate(row *EncryptedData) {
	row.ProgramID = &p.ProgramID
	row.FunctionID = &p.FunctionID
}

// DeploymentPointer tracks a program deployment sent by the wallet owner.
type DeploymentPointer struct {
	TransactionID string                 `json:"transactionId"`
	ProgramID     string                 `json:"programId"`
	State         types.TransactionState `json:"state"`
	BlockHeight   uint64                 `json:"blockHeight"`
	Fee           uint64                 `json:"fee"`
	Timestamp     time.Time              `json:"timestamp"`
}

func (p *DeploymentPointer) Flavour() types.Flavour { return types.FlavourDeployment }

func (p *DeploymentPointer) ExternalID() string { return p.TransactionID }

func (p *DeploymentPointer) annotate(row *EncryptedData) {
	row.ProgramID = &p.ProgramID
	state := p.State
	row.TransactionState = &state
}

// TransactionMessage is an out-of-band hint letting the receiver find a
// transaction at a known height without range scanning.
type TransactionMessage struct {
	TransactionID string    `json:"transactionId"`
	BlockHeight   uint64    `json:"blockHeight"`
	From          string    `json:"from"`
	Note          string    `json:"note,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (p *TransactionMessage) Flavour() types.Flavour { return types.FlavourTransactionMessage }

func (p *TransactionMessage) ExternalID() string { return "msg:" + p.TransactionID }

func (p *TransactionMessage) annotate(row *EncryptedData) {}

// ToEncryptedData seals a pointer into a fresh row for the given owner.
func ToEncryptedData(vk *keys.ViewingKey, owner string, network types.Network, p Pointer) (*EncryptedData, error) {
	plain, err := json.Marshal(p)
	if err != nil {
		return nil, werr.Internal("pointer marshal failed", err)
	}

	ciphertext, nonce, err := vk.SealPayload(plain)
	if err != nil {
		return nil, err
	}

	row := &EncryptedData{
		ID:         uuid.New(),
		Owner:      owner,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Flavour:    p.Flavour(),
		ExternalID: p.ExternalID(),
		CreatedAt:  time.Now().UTC(),
		Network:    network,
	}
	p.annotate(row)
	return row, nil
}

// Reseal replaces the row's ciphertext with a fresh sealing of the updated
// pointer, preserving identity columns. Used for spent marking and state
// transitions.
func Reseal(vk *keys.ViewingKey, row *EncryptedData, p Pointer) error {
	if row.Flavour != p.Flavour() {
		return werr.Internal("pointer flavour does not match row", nil)
	}

	plain, err := json.Marshal(p)
	if err != nil {
		return werr.Internal("pointer marshal failed", err)
	}
	ciphertext, nonce, err := vk.SealPayload(plain)
	if err != nil {
		return err
	}

	row.Ciphertext = ciphertext
	row.Nonce = nonce
	now := time.Now().UTC()
	row.UpdatedAt = &now
	p.annotate(row)
	return nil
}

// DecryptPointer opens a row's payload as the given pointer type.
func DecryptPointer[T any](vk *keys.ViewingKey, row *EncryptedData) (*T, error) {
	plain, err := vk.OpenPayload(row.Ciphertext, row.Nonce)
	if err != nil {
		return nil, err
	}

	var p T
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, werr.InvalidData("pointer payload malformed", "Stored data is corrupted")
	}
	return &p, nil
}
