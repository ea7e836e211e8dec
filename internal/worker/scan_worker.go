// Package worker runs the long-lived scan and backup loops.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/config"
	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/logging"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/retry"
	"github.com/obscura-systems/wallet-core/internal/session"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// ScanWorker discovers on-chain state belonging to the wallet and
// materializes encrypted pointer rows.
type ScanWorker struct {
	network       types.Network
	address       string
	chain         adapter.ChainClient
	dataRepo      *storage.EncryptedDataRepository
	prefsRepo     *storage.PreferencesRepository
	syncRepo      *storage.SyncStateRepository
	sessions      *session.Sessions
	chunkSize     uint64
	pollInterval  time.Duration
	maxPendingAge time.Duration
	retryCfg      *retry.Config
	logger        *logging.Logger

	running      bool
	mu           sync.RWMutex
	stopCh       chan struct{}
	doneCh       chan struct{}
	lastPollTime time.Time
}

// ScanWorkerConfig holds configuration for a scan worker.
type ScanWorkerConfig struct {
	Network types.Network
	// Address pins the wallet owner. When empty, the owner is resolved
	// from preferences at the start of every pass.
	Address   string
	Chain     adapter.ChainClient
	DataRepo  *storage.EncryptedDataRepository
	PrefsRepo *storage.PreferencesRepository
	SyncRepo  *storage.SyncStateRepository
	Sessions  *session.Sessions
	Scanner   config.ScannerConfig
	Logger    *logging.Logger
}

// NewScanWorker creates a new scan worker.
func NewScanWorker(cfg *ScanWorkerConfig) (*ScanWorker, error) {
	if cfg.Chain == nil {
		return nil, werr.Internal("chain client cannot be nil", nil)
	}
	if cfg.DataRepo == nil || cfg.SyncRepo == nil {
		return nil, werr.Internal("repositories cannot be nil", nil)
	}
	if cfg.Sessions == nil {
		return nil, werr.Internal("sessions cannot be nil", nil)
	}
	if cfg.Address == "" && cfg.PrefsRepo == nil {
		return nil, werr.Internal("either a fixed address or a preferences repository is required", nil)
	}

	chunkSize := uint64(cfg.Scanner.ChunkSize)
	if chunkSize == 0 || chunkSize > 49 {
		chunkSize = 49
	}
	pollInterval := cfg.Scanner.PollInterval
	if pollInterval == 0 {
		pollInterval = 15 * time.Second
	}
	maxPendingAge := cfg.Scanner.MaxPendingAge
	if maxPendingAge == 0 {
		maxPendingAge = 30 * time.Minute
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Global()
	}

	return &ScanWorker{
		network:       cfg.Network,
		address:       cfg.Address,
		chain:         cfg.Chain,
		dataRepo:      cfg.DataRepo,
		prefsRepo:     cfg.PrefsRepo,
		syncRepo:      cfg.SyncRepo,
		sessions:      cfg.Sessions,
		chunkSize:     chunkSize,
		pollInterval:  pollInterval,
		maxPendingAge: maxPendingAge,
		retryCfg:      retry.DefaultConfig(),
		logger:        logger.WithField("worker", "scan"),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

// Start begins the polling loop.
func (w *ScanWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return werr.Internal("scan worker already running", nil)
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithField("pollInterval", w.pollInterval.String()).Info("starting scan worker")
	go w.pollLoop(ctx)
	return nil
}

// Stop signals the loop and waits for the in-flight chunk to finish.
func (w *ScanWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return werr.Internal("scan worker is not running", nil)
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("scan worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// Running reports worker liveness.
func (w *ScanWorker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *ScanWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			w.lastPollTime = time.Now()
			w.mu.Unlock()

			if _, err := w.ScanPass(ctx); err != nil {
				w.logger.WithError(err).Warn("scan pass failed")
			}
		}
	}
}

// owner resolves the wallet address a pass scans for.
func (w *ScanWorker) owner(ctx context.Context) (string, error) {
	if w.address != "" {
		return w.address, nil
	}
	prefs, err := w.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	return prefs.Address, nil
}

// ScanPass runs one full catch-up: chunked range scan, spent marking, and
// pending transaction resolution. Returns the number of rows written.
// A locked wallet or a missing wallet is not an error; the pass is
// simply skipped.
func (w *ScanWorker) ScanPass(ctx context.Context) (int, error) {
	viewKey, err := w.sessions.View.Get()
	if err != nil {
		return 0, nil
	}
	vk, err := keys.ParseViewKey(viewKey)
	if err != nil {
		return 0, err
	}

	owner, err := w.owner(ctx)
	if err != nil {
		if werr.Is(err, werr.KindNotFound) {
			return 0, nil
		}
		return 0, err
	}

	state, err := w.syncRepo.Get(ctx, owner, w.network)
	if err != nil {
		return 0, err
	}

	head, err := w.chain.LatestHeight(ctx)
	if err != nil {
		return 0, err
	}

	start := state.LastSyncHeight
	if start > 0 {
		start++
	}
	if start > head {
		return w.finishPass(ctx, vk, owner, 0)
	}

	pass, err := w.newPass(ctx, vk, owner)
	if err != nil {
		return 0, err
	}

	written := 0
	for start <= head {
		end := start + w.chunkSize - 1
		if end > head {
			end = head
		}

		var blocks []adapter.Block
		err := retry.Do(ctx, w.retryCfg, func(ctx context.Context, _ int) error {
			var ferr error
			blocks, ferr = w.chain.GetBlocks(ctx, start, end)
			return ferr
		})
		if err != nil {
			// A transient failure ends the pass and leaves the watermark
			// untouched. A deterministic one, a malformed block for
			// instance, would fail the same way forever, so the chunk is
			// skipped past instead.
			if werr.IsRetryable(err) {
				return written, err
			}
			w.logger.WithError(err).WithFields(map[string]interface{}{
				"chunkStart": start,
				"chunkEnd":   end,
			}).Error("skipping undecodable chunk")
			if err := w.syncRepo.AdvanceSyncHeight(ctx, owner, w.network, end); err != nil {
				return written, err
			}
			start = end + 1
			continue
		}

		for i := range blocks {
			n, err := pass.processBlock(ctx, &blocks[i])
			if err != nil {
				return written, err
			}
			written += n
		}

		if err := w.syncRepo.AdvanceSyncHeight(ctx, owner, w.network, end); err != nil {
			return written, err
		}

		// cooperative cancellation at the chunk boundary
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case <-w.stopCh:
			return written, nil
		default:
		}

		start = end + 1
	}

	return w.finishPass(ctx, vk, owner, written)
}

func (w *ScanWorker) finishPass(ctx context.Context, vk *keys.ViewingKey, owner string, written int) (int, error) {
	if err := w.abortStalePending(ctx, vk, owner); err != nil {
		return written, err
	}
	return written, nil
}

// ProcessTransactionMessage handles an out-of-band transaction hint by
// jumping straight to its height instead of range scanning.
func (w *ScanWorker) ProcessTransactionMessage(ctx context.Context, msg *models.TransactionMessage) (int, error) {
	viewKey, err := w.sessions.View.Get()
	if err != nil {
		return 0, err
	}
	vk, err := keys.ParseViewKey(viewKey)
	if err != nil {
		return 0, err
	}
	owner, err := w.owner(ctx)
	if err != nil {
		return 0, err
	}

	block, err := w.chain.GetBlock(ctx, msg.BlockHeight)
	if err != nil {
		return 0, err
	}

	found := false
	for i := range block.Transactions {
		if block.Transactions[i].ID == msg.TransactionID {
			found = true
			break
		}
	}
	if !found {
		return 0, werr.NotFound("transaction at hinted height")
	}

	pass, err := w.newPass(ctx, vk, owner)
	if err != nil {
		return 0, err
	}
	return pass.processBlock(ctx, block)
}

// scanPass carries the per-pass indexes: the wallet's record tags for
// spent detection and its pending sends for state resolution.
type scanPass struct {
	w     *ScanWorker
	vk    *keys.ViewingKey
	owner string

	// record tag -> row holding that record
	tagIndex map[string]*taggedRecord
	// transaction id -> pending row
	pending map[string]*pendingTx
}

type taggedRecord struct {
	row     *models.EncryptedData
	pointer *models.RecordPointer
}

type pendingTx struct {
	row     *models.EncryptedData
	pointer *models.TransactionPointer
}

func (w *ScanWorker) newPass(ctx context.Context, vk *keys.ViewingKey, owner string) (*scanPass, error) {
	pass := &scanPass{
		w:        w,
		vk:       vk,
		owner:    owner,
		tagIndex: make(map[string]*taggedRecord),
		pending:  make(map[string]*pendingTx),
	}

	records, err := w.dataRepo.GetByFlavour(ctx, owner, types.FlavourRecord, w.network)
	if err != nil {
		return nil, err
	}
	for _, row := range records {
		if row.Spent != nil && *row.Spent {
			continue
		}
		ptr, err := models.DecryptPointer[models.RecordPointer](vk, row)
		if err != nil {
			return nil, err
		}
		pass.tagIndex[ptr.Tag] = &taggedRecord{row: row, pointer: ptr}
	}

	txs, err := w.dataRepo.GetByFlavour(ctx, owner, types.FlavourTransaction, w.network)
	if err != nil {
		return nil, err
	}
	for _, row := range txs {
		if row.TransactionState == nil || *row.TransactionState != types.StatePending {
			continue
		}
		ptr, err := models.DecryptPointer[models.TransactionPointer](vk, row)
		if err != nil {
			return nil, err
		}
		pass.pending[ptr.TransactionID] = &pendingTx{row: row, pointer: ptr}
	}

	return pass, nil
}

// processBlock walks one block's transactions in block-local order and
// writes every pointer the wallet is a party to.
func (p *scanPass) processBlock(ctx context.Context, block *adapter.Block) (int, error) {
	written := 0
	blockTime := time.Unix(block.Timestamp, 0).UTC()

	for i := range block.Transactions {
		tx := &block.Transactions[i]

		if err := p.resolvePending(ctx, tx, block.Height, blockTime); err != nil {
			return written, err
		}

		known, err := p.w.dataRepo.HasExternalID(ctx, p.owner, tx.ID, p.w.network)
		if err != nil {
			return written, err
		}

		n, err := p.processTransaction(ctx, tx, block.Height, blockTime, known)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (p *scanPass) processTransaction(ctx context.Context, tx *adapter.ChainTransaction, height uint64, blockTime time.Time, known bool) (int, error) {
	switch tx.Type {
	case adapter.TxTypeDeploy:
		if known || tx.Owner != p.owner {
			return 0, nil
		}
		return p.insert(ctx, &models.DeploymentPointer{
			TransactionID: tx.ID,
			ProgramID:     tx.ProgramID,
			State:         types.StateConfirmed,
			BlockHeight:   height,
			Fee:           tx.Fee(),
			Timestamp:     blockTime,
		})
	case adapter.TxTypeExecute:
		return p.processExecution(ctx, tx, height, blockTime, known)
	}
	return 0, nil
}

func (p *scanPass) processExecution(ctx context.Context, tx *adapter.ChainTransaction, height uint64, blockTime time.Time, known bool) (int, error) {
	written := 0
	spentOurs := false
	counterparty := false

	for ti := range tx.Transitions {
		transition := &tx.Transitions[ti]

		for _, out := range transition.Outputs {
			switch out.Kind {
			case adapter.IOKindRecord:
				n, err := p.tryDecryptRecord(ctx, tx, transition, &out, height)
				if err != nil {
					return written, err
				}
				written += n
			case adapter.IOKindPublic:
				if out.Value == p.owner {
					counterparty = true
				}
			}
		}

		for _, in := range transition.Inputs {
			switch in.Kind {
			case adapter.IOKindRecord:
				owned, err := p.markSpent(ctx, in.SerialNumber)
				if err != nil {
					return written, err
				}
				if owned {
					spentOurs = true
				}
			case adapter.IOKindPublic:
				if in.Value == p.owner {
					counterparty = true
				}
			}
		}
	}

	if known {
		return written, nil
	}

	if spentOurs {
		transitions := make([]models.EventTransition, 0, len(tx.Transitions))
		var programID, functionID string
		for _, t := range tx.Transitions {
			transitions = append(transitions, models.EventTransition{
				TransitionID: t.ID,
				ProgramID:    t.ProgramID,
				FunctionID:   t.Function,
			})
			programID, functionID = t.ProgramID, t.Function
		}
		n, err := p.insert(ctx, &models.TransactionPointer{
			TransactionID: tx.ID,
			State:         types.StateConfirmed,
			BlockHeight:   height,
			Timestamp:     blockTime,
			ProgramID:     programID,
			FunctionID:    functionID,
			Fee:           tx.Fee(),
			Transitions:   transitions,
		})
		if err != nil {
			return written, err
		}
		return written + n, nil
	}

	if counterparty {
		for _, t := range tx.Transitions {
			n, err := p.insert(ctx, &models.TransitionPointer{
				TransitionID:  t.ID,
				TransactionID: tx.ID,
				ProgramID:     t.ProgramID,
				FunctionID:    t.Function,
				BlockHeight:   height,
				Timestamp:     blockTime,
			})
			if err != nil {
				return written, err
			}
			written += n
		}
	}
	return written, nil
}

// tryDecryptRecord attempts record decryption; failure only means the
// record belongs to someone else.
func (p *scanPass) tryDecryptRecord(ctx context.Context, tx *adapter.ChainTransaction, transition *adapter.ChainTransition, out *adapter.TransitionOutput, height uint64) (int, error) {
	plain, err := p.vk.DecryptRecord(out.Ciphertext)
	if err != nil {
		if werr.Is(err, werr.KindDecryption) {
			return 0, nil
		}
		return 0, err
	}

	ptr := &models.RecordPointer{
		Commitment:    out.Commitment,
		TransitionID:  transition.ID,
		TransactionID: tx.ID,
		Owner:         p.owner,
		BlockHeight:   height,
		ProgramID:     transition.ProgramID,
		FunctionID:    transition.Function,
		RecordName:    out.RecordName,
		RecordType:    transition.ProgramID + "/" + out.RecordName,
		Ciphertext:    out.Ciphertext,
		Microcredits:  plain.Microcredits,
		Tag:           p.vk.Tag(out.Commitment),
	}

	n, err := p.insert(ctx, ptr)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		row, err := p.w.dataRepo.GetByExternalID(ctx, p.owner, ptr.ExternalID(), p.w.network)
		if err != nil {
			return n, err
		}
		p.tagIndex[ptr.Tag] = &taggedRecord{row: row, pointer: ptr}
	}
	return n, nil
}

// markSpent matches a revealed serial number against the wallet's record
// tags and rewrites the matching row. This is the only mutation of an
// existing record row.
func (p *scanPass) markSpent(ctx context.Context, serialNumber string) (bool, error) {
	tagged, ok := p.tagIndex[serialNumber]
	if !ok {
		return false, nil
	}
	if tagged.pointer.Spent {
		return true, nil
	}

	tagged.pointer.Spent = true
	tagged.pointer.SerialNumber = serialNumber
	if err := models.Reseal(p.vk, tagged.row, tagged.pointer); err != nil {
		return true, err
	}
	if err := p.w.dataRepo.UpdateSpent(ctx, tagged.row.ID, tagged.row.Ciphertext, tagged.row.Nonce, time.Now().UTC()); err != nil {
		return true, err
	}
	return true, nil
}

// resolvePending transitions a locally submitted transaction when its id
// shows up in a fetched block.
func (p *scanPass) resolvePending(ctx context.Context, tx *adapter.ChainTransaction, height uint64, blockTime time.Time) error {
	entry, ok := p.pending[tx.ID]
	if !ok {
		return nil
	}
	delete(p.pending, tx.ID)

	next := types.StateConfirmed
	if tx.Rejected() {
		next = types.StateRejected
	}
	return p.w.transitionTx(ctx, p.vk, entry, next, height, blockTime)
}

func (w *ScanWorker) transitionTx(ctx context.Context, vk *keys.ViewingKey, entry *pendingTx, next types.TransactionState, height uint64, at time.Time) error {
	if !entry.pointer.State.CanTransitionTo(next) {
		return werr.Internal("illegal transaction state transition", nil)
	}

	entry.pointer.State = next
	entry.pointer.BlockHeight = height
	completed := at
	entry.pointer.CompletedAt = &completed
	if err := models.Reseal(vk, entry.row, entry.pointer); err != nil {
		return err
	}
	return w.dataRepo.UpdateTransactionState(ctx, entry.row.ID, entry.row.Ciphertext, entry.row.Nonce, next, time.Now().UTC())
}

// abortStalePending gives up on pending sends older than the configured
// max age.
func (w *ScanWorker) abortStalePending(ctx context.Context, vk *keys.ViewingKey, owner string) error {
	rows, err := w.dataRepo.GetByFlavour(ctx, owner, types.FlavourTransaction, w.network)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-w.maxPendingAge)
	for _, row := range rows {
		if row.TransactionState == nil || *row.TransactionState != types.StatePending {
			continue
		}
		if !row.CreatedAt.Before(cutoff) {
			continue
		}
		ptr, err := models.DecryptPointer[models.TransactionPointer](vk, row)
		if err != nil {
			return err
		}
		entry := &pendingTx{row: row, pointer: ptr}
		if err := w.transitionTx(ctx, vk, entry, types.StateAborted, 0, time.Now().UTC()); err != nil {
			return err
		}
		w.logger.WithField("transactionId", ptr.TransactionID).Warn("pending transaction aborted after max age")
	}
	return nil
}

// insert writes one pointer row, treating duplicates as already-scanned.
func (p *scanPass) insert(ctx context.Context, pointer models.Pointer) (int, error) {
	row, err := models.ToEncryptedData(p.vk, p.owner, p.w.network, pointer)
	if err != nil {
		return 0, err
	}
	if err := p.w.dataRepo.Insert(ctx, row); err != nil {
		if werr.Is(err, werr.KindDuplicate) {
			return 0, nil
		}
		return 0, err
	}
	return 1, nil
}
