// Package adapter holds the HTTP clients for the chain API and the
// remote backup and user services.
package adapter

// Block is the chain API's block shape, narrowed to the fields the
// scanner consumes.
type Block struct {
	Height       uint64             `json:"height"`
	Hash         string             `json:"blockHash"`
	Timestamp    int64              `json:"timestamp"`
	Transactions []ChainTransaction `json:"transactions"`
}

// Transaction type and status strings used by the chain API.
const (
	TxTypeExecute = "execute"
	TxTypeDeploy  = "deploy"

	TxStatusAccepted = "accepted"
	TxStatusRejected = "rejected"
)

// ChainTransaction is one transaction inside a block.
type ChainTransaction struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Owner       string            `json:"owner,omitempty"`
	ProgramID   string            `json:"programId,omitempty"`
	BaseFee     uint64            `json:"baseFee"`
	PriorityFee uint64            `json:"priorityFee"`
	Transitions []ChainTransition `json:"transitions,omitempty"`
}

// Fee is the transaction's total fee.
func (t *ChainTransaction) Fee() uint64 {
	return t.BaseFee + t.PriorityFee
}

// Rejected reports whether the chain rejected the transaction.
func (t *ChainTransaction) Rejected() bool {
	return t.Status == TxStatusRejected
}

// ChainTransition is one transition of an execute transaction.
type ChainTransition struct {
	ID        string             `json:"id"`
	ProgramID string             `json:"program"`
	Function  string             `json:"function"`
	Inputs    []TransitionInput  `json:"inputs,omitempty"`
	Outputs   []TransitionOutput `json:"outputs,omitempty"`
}

// Input and output kind strings used by the chain API.
const (
	IOKindRecord  = "record"
	IOKindPublic  = "public"
	IOKindPrivate = "private"
)

// TransitionInput is a consumed transition input. Record inputs reveal
// the serial number of the spent record.
type TransitionInput struct {
	Kind         string `json:"type"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Value        string `json:"value,omitempty"`
}

// TransitionOutput is a produced transition output. Record outputs carry
// the commitment and the owner-decryptable ciphertext.
type TransitionOutput struct {
	Kind       string `json:"type"`
	Commitment string `json:"commitment,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
	RecordName string `json:"recordName,omitempty"`
	Value      string `json:"value,omitempty"`
}
