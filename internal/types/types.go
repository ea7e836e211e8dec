// Package types provides common type definitions shared across the wallet core.
package types

// Network represents a supported chain network
type Network string

const (
	// NetworkTestnet represents the public test network
	NetworkTestnet Network = "testnet"
	// NetworkDevnet represents a local development network
	NetworkDevnet Network = "devnet"
	// NetworkMainnet represents the main network
	NetworkMainnet Network = "mainnet"
)

// Valid reports whether the network is one of the known networks.
func (n Network) Valid() bool {
	switch n {
	case NetworkTestnet, NetworkDevnet, NetworkMainnet:
		return true
	}
	return false
}

// Flavour identifies the decrypted shape of an encrypted data row
type Flavour string

const (
	// FlavourRecord represents an owned record pointer
	FlavourRecord Flavour = "record"
	// FlavourTransaction represents a transaction pointer
	FlavourTransaction Flavour = "transaction"
	// FlavourTransition represents a transition pointer
	FlavourTransition Flavour = "transition"
	// FlavourDeployment represents a deployment pointer
	FlavourDeployment Flavour = "deployment"
	// FlavourTransactionMessage represents an out-of-band transaction hint
	FlavourTransactionMessage Flavour = "transaction_message"
)

// Valid reports whether the flavour is one of the known flavours.
func (f Flavour) Valid() bool {
	switch f {
	case FlavourRecord, FlavourTransaction, FlavourTransition,
		FlavourDeployment, FlavourTransactionMessage:
		return true
	}
	return false
}

// TransactionState represents the lifecycle state of a locally tracked transaction
type TransactionState string

const (
	// StatePending represents a submitted transaction not yet seen on chain
	StatePending TransactionState = "pending"
	// StateConfirmed represents a transaction accepted on chain
	StateConfirmed TransactionState = "confirmed"
	// StateFailed represents a transaction whose execution failed on chain
	StateFailed TransactionState = "failed"
	// StateRejected represents a transaction rejected by the chain
	StateRejected TransactionState = "rejected"
	// StateAborted represents a pending transaction given up on after max age
	StateAborted TransactionState = "aborted"
)

// IsTerminal reports whether the state admits no further transitions.
func (s TransactionState) IsTerminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateRejected, StateAborted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a state change from s to next is legal.
// Terminal states are immutable; pending may move to any terminal state.
func (s TransactionState) CanTransitionTo(next TransactionState) bool {
	if s.IsTerminal() {
		return false
	}
	return next.IsTerminal()
}

// KeyKind distinguishes the two long-lived keys held by the vault
type KeyKind string

const (
	// KeySpending represents the spending key entry
	KeySpending KeyKind = "spending"
	// KeyViewing represents the viewing key entry
	KeyViewing KeyKind = "viewing"
)

// AuthType represents how the user authenticates against the remote services
type AuthType string

const (
	// AuthLocal represents password-only local authentication
	AuthLocal AuthType = "local"
	// AuthSession represents signature-based server session authentication
	AuthSession AuthType = "session"
)

// Language represents a mnemonic wordlist language
type Language string

const (
	LanguageEnglish            Language = "english"
	LanguageChineseSimplified  Language = "chinese_simplified"
	LanguageChineseTraditional Language = "chinese_traditional"
	LanguageRussian            Language = "russian"
	LanguageSpanish            Language = "spanish"
	LanguageItalian            Language = "italian"
	LanguageTurkish            Language = "turkish"
	LanguageEstonian           Language = "estonian"
	LanguageLithuanian         Language = "lithuanian"
	LanguageLatvian            Language = "latvian"
	LanguageDutch              Language = "dutch"
	LanguageJapanese           Language = "japanese"
)

// RecordScope selects which records a filter matches by spent state
type RecordScope string

const (
	// ScopeAll matches spent and unspent records alike
	ScopeAll RecordScope = "all"
	// ScopeSpent matches only spent records
	ScopeSpent RecordScope = "spent"
	// ScopeUnspent matches only unspent records
	ScopeUnspent RecordScope = "unspent"
)

// RecordsFilter narrows record queries
type RecordsFilter struct {
	ProgramIDs []string    `json:"programIds,omitempty"`
	FunctionID string      `json:"functionId,omitempty"`
	Scope      RecordScope `json:"type,omitempty"`
	RecordName string      `json:"recordName,omitempty"`
}

// EventsFilter narrows event queries
type EventsFilter struct {
	EventType  Flavour `json:"eventType,omitempty"`
	ProgramID  string  `json:"programId,omitempty"`
	FunctionID string  `json:"functionId,omitempty"`
}

// PageSize is the fixed number of rows per page for paged queries.
const PageSize = 50

// Page describes one page of a 1-indexed paged response
type Page struct {
	Number    int `json:"page"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// PageCount returns the number of pages needed for total rows.
func PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}
