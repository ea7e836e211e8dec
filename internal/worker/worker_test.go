package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/config"
	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/retry"
	"github.com/obscura-systems/wallet-core/internal/session"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// fakeChain serves a fixed sequence of blocks.
type fakeChain struct {
	blocks []adapter.Block
	head   uint64
	// range-start -> error returned instead of blocks
	failAt  map[uint64]error
	fetches map[uint64]int
}

func (c *fakeChain) LatestHeight(ctx context.Context) (uint64, error) {
	if c.head > 0 {
		return c.head, nil
	}
	if len(c.blocks) == 0 {
		return 0, nil
	}
	return c.blocks[len(c.blocks)-1].Height, nil
}

func (c *fakeChain) GetBlocks(ctx context.Context, start, end uint64) ([]adapter.Block, error) {
	if c.fetches != nil {
		c.fetches[start]++
	}
	if err, ok := c.failAt[start]; ok {
		return nil, err
	}
	var out []adapter.Block
	for _, b := range c.blocks {
		if b.Height >= start && b.Height <= end {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *fakeChain) GetBlock(ctx context.Context, height uint64) (*adapter.Block, error) {
	for i := range c.blocks {
		if c.blocks[i].Height == height {
			return &c.blocks[i], nil
		}
	}
	return nil, werr.NotFound("block")
}

func (c *fakeChain) GetProgram(ctx context.Context, programID string) (string, error) {
	return "", werr.NotFound("program")
}

func (c *fakeChain) BroadcastTransaction(ctx context.Context, transaction string) (string, error) {
	return "at1fake", nil
}

type scanFixture struct {
	worker   *ScanWorker
	chain    *fakeChain
	dataRepo *storage.EncryptedDataRepository
	syncRepo *storage.SyncStateRepository
	sk       *keys.SpendingKey
	vk       *keys.ViewingKey
	address  string
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sk, err := keys.NewSpendingKey()
	require.NoError(t, err)
	vk := sk.ViewingKey()
	address, err := sk.Address()
	require.NoError(t, err)

	sessions := session.NewSessions(5 * time.Minute)
	sessions.View.Set(vk.String())

	chain := &fakeChain{}
	dataRepo := storage.NewEncryptedDataRepository(store)
	syncRepo := storage.NewSyncStateRepository(store)

	w, err := NewScanWorker(&ScanWorkerConfig{
		Network:  types.NetworkTestnet,
		Address:  address,
		Chain:    chain,
		DataRepo: dataRepo,
		SyncRepo: syncRepo,
		Sessions: sessions,
		Scanner: config.ScannerConfig{
			ChunkSize:     5,
			PollInterval:  15 * time.Second,
			MaxPendingAge: time.Hour,
		},
	})
	require.NoError(t, err)

	return &scanFixture{
		worker:   w,
		chain:    chain,
		dataRepo: dataRepo,
		syncRepo: syncRepo,
		sk:       sk,
		vk:       vk,
		address:  address,
	}
}

func (f *scanFixture) recordOutput(t *testing.T, commitment string, microcredits uint64) adapter.TransitionOutput {
	t.Helper()
	ct, err := f.vk.EncryptRecord(&keys.RecordPlaintext{
		Owner:        f.address,
		Microcredits: microcredits,
		Name:         "credits",
	})
	require.NoError(t, err)
	return adapter.TransitionOutput{
		Kind:       adapter.IOKindRecord,
		Commitment: commitment,
		Ciphertext: ct,
		RecordName: "credits",
	}
}

func strangerRecordOutput(t *testing.T, commitment string) adapter.TransitionOutput {
	t.Helper()
	sk, err := keys.NewSpendingKey()
	require.NoError(t, err)
	ct, err := sk.ViewingKey().EncryptRecord(&keys.RecordPlaintext{Owner: "aleo1other", Microcredits: 1})
	require.NoError(t, err)
	return adapter.TransitionOutput{Kind: adapter.IOKindRecord, Commitment: commitment, Ciphertext: ct}
}

func TestScanDiscoversOwnedRecords(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.chain.blocks = []adapter.Block{{
		Height:    1,
		Timestamp: time.Now().Unix(),
		Transactions: []adapter.ChainTransaction{{
			ID:     "at1recv",
			Type:   adapter.TxTypeExecute,
			Status: adapter.TxStatusAccepted,
			Transitions: []adapter.ChainTransition{{
				ID:        "au1a",
				ProgramID: "credits.aleo",
				Function:  "transfer_private",
				Outputs: []adapter.TransitionOutput{
					f.recordOutput(t, "cm1ours", 5_000_000),
					strangerRecordOutput(t, "cm1theirs"),
				},
			}},
		}},
	}}

	written, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	rows, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourRecord, types.NetworkTestnet)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	ptr, err := models.DecryptPointer[models.RecordPointer](f.vk, rows[0])
	require.NoError(t, err)
	assert.Equal(t, "cm1ours", ptr.Commitment)
	assert.Equal(t, uint64(5_000_000), ptr.Microcredits)
	assert.Equal(t, f.vk.Tag("cm1ours"), ptr.Tag)
	assert.False(t, ptr.Spent)

	state, err := f.syncRepo.Get(ctx, f.address, types.NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.LastSyncHeight)
}

func TestScanIdempotence(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.chain.blocks = []adapter.Block{{
		Height:    1,
		Timestamp: time.Now().Unix(),
		Transactions: []adapter.ChainTransaction{{
			ID:   "at1recv",
			Type: adapter.TxTypeExecute,
			Transitions: []adapter.ChainTransition{{
				ID: "au1a", ProgramID: "credits.aleo", Function: "transfer_private",
				Outputs: []adapter.TransitionOutput{f.recordOutput(t, "cm1ours", 10)},
			}},
		}},
	}}

	written, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	// rescanning the same range writes nothing new
	require.NoError(t, f.syncRepo.Reset(ctx, f.address, types.NetworkTestnet))
	written, err = f.worker.ScanPass(ctx)
	require.NoError(t, err)
	assert.Zero(t, written)
}

func TestScanMarksSpentRecords(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	tag := f.vk.Tag("cm1ours")
	f.chain.blocks = []adapter.Block{
		{
			Height:    1,
			Timestamp: time.Now().Unix(),
			Transactions: []adapter.ChainTransaction{{
				ID:   "at1recv",
				Type: adapter.TxTypeExecute,
				Transitions: []adapter.ChainTransition{{
					ID: "au1a", ProgramID: "credits.aleo", Function: "transfer_private",
					Outputs: []adapter.TransitionOutput{f.recordOutput(t, "cm1ours", 10)},
				}},
			}},
		},
		{
			Height:    2,
			Timestamp: time.Now().Unix(),
			Transactions: []adapter.ChainTransaction{{
				ID:   "at1spend",
				Type: adapter.TxTypeExecute,
				Transitions: []adapter.ChainTransition{{
					ID: "au1b", ProgramID: "credits.aleo", Function: "transfer_private",
					Inputs: []adapter.TransitionInput{{Kind: adapter.IOKindRecord, SerialNumber: tag}},
				}},
			}},
		},
	}

	_, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)

	records, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourRecord, types.NetworkTestnet)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Spent)
	assert.True(t, *records[0].Spent)

	ptr, err := models.DecryptPointer[models.RecordPointer](f.vk, records[0])
	require.NoError(t, err)
	assert.True(t, ptr.Spent)
	assert.Equal(t, tag, ptr.SerialNumber)

	// spending our record also yields a transaction pointer
	txs, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourTransaction, types.NetworkTestnet)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "at1spend", txs[0].ExternalID)
}

func TestScanEmitsDeploymentPointer(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.chain.blocks = []adapter.Block{{
		Height:    1,
		Timestamp: time.Now().Unix(),
		Transactions: []adapter.ChainTransaction{
			{ID: "at1deploy", Type: adapter.TxTypeDeploy, Owner: f.address, ProgramID: "token.aleo", BaseFee: 100, PriorityFee: 10},
			{ID: "at1otherdeploy", Type: adapter.TxTypeDeploy, Owner: "aleo1someoneelse", ProgramID: "x.aleo"},
		},
	}}

	written, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	rows, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourDeployment, types.NetworkTestnet)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	ptr, err := models.DecryptPointer[models.DeploymentPointer](f.vk, rows[0])
	require.NoError(t, err)
	assert.Equal(t, "token.aleo", ptr.ProgramID)
	assert.Equal(t, uint64(110), ptr.Fee)
	assert.Equal(t, types.StateConfirmed, ptr.State)
}

func insertPendingTx(t *testing.T, f *scanFixture, txID string, createdAt time.Time) {
	t.Helper()
	ptr := &models.TransactionPointer{
		TransactionID: txID,
		State:         types.StatePending,
		Timestamp:     createdAt,
		ProgramID:     "credits.aleo",
		FunctionID:    "transfer_public",
	}
	row, err := models.ToEncryptedData(f.vk, f.address, types.NetworkTestnet, ptr)
	require.NoError(t, err)
	row.CreatedAt = createdAt
	require.NoError(t, f.dataRepo.Insert(context.Background(), row))
}

func TestScanResolvesPendingTransaction(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	insertPendingTx(t, f, "at1send", time.Now().UTC())

	f.chain.blocks = []adapter.Block{{
		Height:    3,
		Timestamp: time.Now().Unix(),
		Transactions: []adapter.ChainTransaction{{
			ID: "at1send", Type: adapter.TxTypeExecute, Status: adapter.TxStatusAccepted,
		}},
	}}

	_, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)

	rows, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourTransaction, types.NetworkTestnet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].TransactionState)
	assert.Equal(t, types.StateConfirmed, *rows[0].TransactionState)

	ptr, err := models.DecryptPointer[models.TransactionPointer](f.vk, rows[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ptr.BlockHeight)
	assert.NotNil(t, ptr.CompletedAt)
}

func TestScanRejectedTransaction(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	insertPendingTx(t, f, "at1send", time.Now().UTC())

	f.chain.blocks = []adapter.Block{{
		Height:    3,
		Timestamp: time.Now().Unix(),
		Transactions: []adapter.ChainTransaction{{
			ID: "at1send", Type: adapter.TxTypeExecute, Status: adapter.TxStatusRejected,
		}},
	}}

	_, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)

	rows, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourTransaction, types.NetworkTestnet)
	require.NoError(t, err)
	require.NotNil(t, rows[0].TransactionState)
	assert.Equal(t, types.StateRejected, *rows[0].TransactionState)
}

func TestScanAbortsStalePending(t *testing.T) {
	f := newScanFixture(t)
	f.worker.maxPendingAge = time.Minute
	ctx := context.Background()

	insertPendingTx(t, f, "at1lost", time.Now().UTC().Add(-time.Hour))

	_, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)

	rows, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourTransaction, types.NetworkTestnet)
	require.NoError(t, err)
	require.NotNil(t, rows[0].TransactionState)
	assert.Equal(t, types.StateAborted, *rows[0].TransactionState)
}

func TestScanSkipsUndecodableChunk(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.chain.head = 20
	f.chain.fetches = map[uint64]int{}
	f.chain.failAt = map[uint64]error{
		5: werr.InvalidData("block 7 failed to decode", "Malformed block"),
	}

	_, err := f.worker.ScanPass(ctx)
	require.NoError(t, err)

	state, err := f.syncRepo.Get(ctx, f.address, types.NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), state.LastSyncHeight)

	// the skipped range is never refetched
	from := f.chain.fetches[5]
	_, err = f.worker.ScanPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, from, f.chain.fetches[5])
}

func TestScanTransientErrorKeepsWatermark(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.worker.retryCfg = &retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	f.chain.head = 20
	f.chain.failAt = map[uint64]error{
		5: werr.Network("connection reset", nil),
	}

	_, err := f.worker.ScanPass(ctx)
	require.Error(t, err)

	state, err := f.syncRepo.Get(ctx, f.address, types.NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), state.LastSyncHeight)
}

func TestScanSkipsWhenLocked(t *testing.T) {
	f := newScanFixture(t)
	f.worker.sessions.View.Clear()

	f.chain.blocks = []adapter.Block{{Height: 1}}

	written, err := f.worker.ScanPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, written)

	state, err := f.syncRepo.Get(context.Background(), f.address, types.NetworkTestnet)
	require.NoError(t, err)
	assert.Zero(t, state.LastSyncHeight)
}

func TestProcessTransactionMessage(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	f.chain.blocks = []adapter.Block{{
		Height:    900,
		Timestamp: time.Now().Unix(),
		Transactions: []adapter.ChainTransaction{{
			ID:   "at1hint",
			Type: adapter.TxTypeExecute,
			Transitions: []adapter.ChainTransition{{
				ID: "au1m", ProgramID: "credits.aleo", Function: "transfer_private",
				Outputs: []adapter.TransitionOutput{f.recordOutput(t, "cm1gift", 77)},
			}},
		}},
	}}

	written, err := f.worker.ProcessTransactionMessage(ctx, &models.TransactionMessage{
		TransactionID: "at1hint",
		BlockHeight:   900,
		From:          "aleo1sender",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	// a hint naming a transaction not at that height fails
	_, err = f.worker.ProcessTransactionMessage(ctx, &models.TransactionMessage{
		TransactionID: "at1bogus",
		BlockHeight:   900,
	})
	assert.True(t, werr.Is(err, werr.KindNotFound))
}
