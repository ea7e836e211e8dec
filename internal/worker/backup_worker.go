package worker

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/logging"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// CookieProvider returns a live session cookie for the remote services,
// signing in again when the cached one has expired.
type CookieProvider func(ctx context.Context) (string, error)

// BackupWorker keeps the remote ciphertext mirror and the local store in
// agreement. The server never sees anything but ciphertexts, indexing
// metadata, and the owner address.
type BackupWorker struct {
	network   types.Network
	address   string
	backup    adapter.BackupClient
	dataRepo  *storage.EncryptedDataRepository
	prefsRepo *storage.PreferencesRepository
	syncRepo  *storage.SyncStateRepository
	cookie    CookieProvider
	logger    *logging.Logger

	pollInterval time.Duration
	running      bool
	mu           sync.RWMutex
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// BackupWorkerConfig holds configuration for a backup worker.
type BackupWorkerConfig struct {
	Network types.Network
	// Address pins the wallet owner. When empty, the owner is resolved
	// from preferences at the start of every pass.
	Address      string
	Backup       adapter.BackupClient
	DataRepo     *storage.EncryptedDataRepository
	PrefsRepo    *storage.PreferencesRepository
	SyncRepo     *storage.SyncStateRepository
	Cookie       CookieProvider
	PollInterval time.Duration
	Logger       *logging.Logger
}

// NewBackupWorker creates a new backup worker.
func NewBackupWorker(cfg *BackupWorkerConfig) (*BackupWorker, error) {
	if cfg.Backup == nil {
		return nil, werr.Internal("backup client cannot be nil", nil)
	}
	if cfg.DataRepo == nil || cfg.SyncRepo == nil {
		return nil, werr.Internal("repositories cannot be nil", nil)
	}
	if cfg.Cookie == nil {
		return nil, werr.Internal("cookie provider cannot be nil", nil)
	}
	if cfg.Address == "" && cfg.PrefsRepo == nil {
		return nil, werr.Internal("either a fixed address or a preferences repository is required", nil)
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Global()
	}

	return &BackupWorker{
		network:      cfg.Network,
		address:      cfg.Address,
		backup:       cfg.Backup,
		dataRepo:     cfg.DataRepo,
		prefsRepo:    cfg.PrefsRepo,
		syncRepo:     cfg.SyncRepo,
		cookie:       cfg.Cookie,
		logger:       logger.WithField("worker", "backup"),
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins the polling loop.
func (w *BackupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return werr.Internal("backup worker already running", nil)
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithField("pollInterval", w.pollInterval.String()).Info("starting backup worker")
	go w.pollLoop(ctx)
	return nil
}

// Stop signals the loop and waits for the in-flight pass to finish.
func (w *BackupWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return werr.Internal("backup worker is not running", nil)
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("backup worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *BackupWorker) pollLoop(ctx context.Context) {
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
			if err := w.SyncPass(ctx); err != nil {
				w.logger.WithError(err).Warn("backup pass failed")
			}
		}
	}
}

// owner resolves the wallet address a pass syncs for.
func (w *BackupWorker) owner(ctx context.Context) (string, error) {
	if w.address != "" {
		return w.address, nil
	}
	prefs, err := w.prefsRepo.Get(ctx)
	if err != nil {
		return "", err
	}
	return prefs.Address, nil
}

// SyncPass runs one pull-then-push round trip. A missing wallet is not
// an error; the pass is simply skipped.
func (w *BackupWorker) SyncPass(ctx context.Context) error {
	if _, err := w.owner(ctx); werr.Is(err, werr.KindNotFound) {
		return nil
	}
	if err := w.Pull(ctx); err != nil {
		return err
	}
	return w.Push(ctx)
}

// Push uploads rows never synced or changed since the last push, then
// advances the server watermark. An expired session aborts the pass.
func (w *BackupWorker) Push(ctx context.Context) error {
	owner, err := w.owner(ctx)
	if err != nil {
		return err
	}
	cookie, err := w.cookie(ctx)
	if err != nil {
		return err
	}

	state, err := w.syncRepo.Get(ctx, owner, w.network)
	if err != nil {
		return err
	}

	lastPush := time.Unix(0, 0).UTC()
	if state.BackupTimestamp != nil {
		lastPush = *state.BackupTimestamp
	}

	rows, err := w.dataRepo.ListUnsynced(ctx, owner, w.network, lastPush)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for start := 0; start < len(rows); start += types.PageSize {
		end := start + types.PageSize
		if end > len(rows) {
			end = len(rows)
		}
		page := rows[start:end]

		if err := w.backup.PushEncryptedData(ctx, cookie, owner, page); err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(page))
		for i, row := range page {
			ids[i] = row.ID
		}
		if err := w.dataRepo.MarkSynced(ctx, ids, now); err != nil {
			return err
		}
	}

	if err := w.backup.PostSyncHeight(ctx, cookie, owner, state.LastSyncHeight); err != nil {
		return err
	}
	if err := w.backup.PostBackupTimestamp(ctx, cookie, owner, now); err != nil {
		return err
	}
	return w.syncRepo.SetBackupTimestamp(ctx, owner, w.network, now)
}

// Pull installs server rows the local store is missing. Rows are
// content-addressed by external id; a differing ciphertext for a known id
// means corruption and nothing is overwritten.
func (w *BackupWorker) Pull(ctx context.Context) error {
	owner, err := w.owner(ctx)
	if err != nil {
		return err
	}
	cookie, err := w.cookie(ctx)
	if err != nil {
		return err
	}

	serverHeight, err := w.backup.GetSyncHeight(ctx, cookie, owner)
	if err != nil {
		if werr.Is(err, werr.KindNotFound) {
			return nil
		}
		return err
	}

	state, err := w.syncRepo.Get(ctx, owner, w.network)
	if err != nil {
		return err
	}
	if serverHeight <= state.LastSyncHeight {
		return nil
	}

	since := time.Unix(0, 0).UTC()
	if state.BackupTimestamp != nil {
		since = *state.BackupTimestamp
	}
	if err := w.pullRows(ctx, cookie, owner, since); err != nil {
		return err
	}

	serverTS, err := w.backup.GetBackupTimestamp(ctx, cookie, owner)
	if err != nil && !werr.Is(err, werr.KindNotFound) {
		return err
	}

	if err := w.syncRepo.AdvanceSyncHeight(ctx, owner, w.network, serverHeight); err != nil {
		return err
	}
	if !serverTS.IsZero() {
		return w.syncRepo.SetBackupTimestamp(ctx, owner, w.network, serverTS)
	}
	return nil
}

func (w *BackupWorker) pullRows(ctx context.Context, cookie, owner string, since time.Time) error {
	for page := 1; ; page++ {
		resp, err := w.backup.PullEncryptedData(ctx, cookie, owner, since, page)
		if err != nil {
			if werr.Is(err, werr.KindNotFound) {
				return nil
			}
			return err
		}

		for _, row := range resp.Rows {
			if err := w.installRow(ctx, owner, row); err != nil {
				return err
			}
		}

		if page >= resp.PageCount || len(resp.Rows) == 0 {
			return nil
		}
	}
}

// installRow inserts one pulled row, skipping known uuids and refusing
// conflicting ciphertexts.
func (w *BackupWorker) installRow(ctx context.Context, owner string, row *models.EncryptedData) error {
	exists, err := w.dataRepo.HasID(ctx, row.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	local, err := w.dataRepo.GetByExternalID(ctx, owner, row.ExternalID, w.network)
	if err == nil {
		if !bytes.Equal(local.Ciphertext, row.Ciphertext) {
			return werr.Integrity("conflicting ciphertexts for external id " + row.ExternalID)
		}
		return nil
	}
	if !werr.Is(err, werr.KindNotFound) {
		return err
	}

	synced := time.Now().UTC()
	row.SyncedOn = &synced
	return w.dataRepo.Insert(ctx, row)
}

// Recover installs the full remote backup during import-from-seed and
// returns the server sync height the scanner should catch up from.
func (w *BackupWorker) Recover(ctx context.Context) (uint64, error) {
	owner, err := w.owner(ctx)
	if err != nil {
		return 0, err
	}
	cookie, err := w.cookie(ctx)
	if err != nil {
		return 0, err
	}

	serverHeight, err := w.backup.GetSyncHeight(ctx, cookie, owner)
	if err != nil {
		if werr.Is(err, werr.KindNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if err := w.pullRows(ctx, cookie, owner, time.Unix(0, 0).UTC()); err != nil {
		return 0, err
	}

	if err := w.syncRepo.AdvanceSyncHeight(ctx, owner, w.network, serverHeight); err != nil {
		return 0, err
	}
	return serverHeight, nil
}

// DisableBackup deletes the server-side backup and clears every local
// synced stamp so a later re-enable re-uploads from scratch.
func (w *BackupWorker) DisableBackup(ctx context.Context) error {
	owner, err := w.owner(ctx)
	if err != nil {
		return err
	}
	cookie, err := w.cookie(ctx)
	if err != nil {
		return err
	}
	if err := w.backup.DeleteBackup(ctx, cookie, owner); err != nil {
		return err
	}
	return w.dataRepo.ClearSynced(ctx, owner, w.network)
}
