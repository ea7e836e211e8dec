package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkValid(t *testing.T) {
	assert.True(t, NetworkTestnet.Valid())
	assert.True(t, NetworkDevnet.Valid())
	assert.True(t, NetworkMainnet.Valid())
	assert.False(t, Network("").Valid())
	assert.False(t, Network("regtest").Valid())
}

func TestFlavourValid(t *testing.T) {
	for _, f := range []Flavour{
		FlavourRecord, FlavourTransaction, FlavourTransition,
		FlavourDeployment, FlavourTransactionMessage,
	} {
		assert.True(t, f.Valid(), string(f))
	}
	assert.False(t, Flavour("block").Valid())
}

func TestTransactionStateTerminal(t *testing.T) {
	assert.False(t, StatePending.IsTerminal())
	assert.True(t, StateConfirmed.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateRejected.IsTerminal())
	assert.True(t, StateAborted.IsTerminal())
}

func TestTransactionStateTransitions(t *testing.T) {
	terminals := []TransactionState{StateConfirmed, StateFailed, StateRejected, StateAborted}

	for _, next := range terminals {
		assert.True(t, StatePending.CanTransitionTo(next), string(next))
	}

	// pending never moves back to pending
	assert.False(t, StatePending.CanTransitionTo(StatePending))

	// terminal states are frozen
	for _, s := range terminals {
		for _, next := range append(terminals, StatePending) {
			assert.False(t, s.CanTransitionTo(next), "%s -> %s", s, next)
		}
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0))
	assert.Equal(t, 0, PageCount(-3))
	assert.Equal(t, 1, PageCount(1))
	assert.Equal(t, 1, PageCount(PageSize))
	assert.Equal(t, 2, PageCount(PageSize+1))
	assert.Equal(t, 3, PageCount(2*PageSize+PageSize-1))
}
