package service

import (
	"context"

	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/werr"
	"github.com/obscura-systems/wallet-core/internal/worker"
)

// SyncService exposes on-demand sync passes to the UI, alongside the
// workers' periodic ones.
type SyncService struct {
	scan      *worker.ScanWorker
	backup    *worker.BackupWorker
	dataRepo  *storage.EncryptedDataRepository
	prefsRepo *storage.PreferencesRepository
	syncRepo  *storage.SyncStateRepository
	sessions  viewKeySource
}

// viewKeySource is satisfied by session.ViewSession.
type viewKeySource interface {
	Get() (string, error)
}

// NewSyncService creates a new sync service.
func NewSyncService(scan *worker.ScanWorker, backup *worker.BackupWorker, dataRepo *storage.EncryptedDataRepository, prefsRepo *storage.PreferencesRepository, syncRepo *storage.SyncStateRepository, sessions viewKeySource) *SyncService {
	return &SyncService{
		scan:      scan,
		backup:    backup,
		dataRepo:  dataRepo,
		prefsRepo: prefsRepo,
		syncRepo:  syncRepo,
		sessions:  sessions,
	}
}

// BlocksSync runs one full block-range scan pass now.
func (s *SyncService) BlocksSync(ctx context.Context) (int, error) {
	return s.scan.ScanPass(ctx)
}

// TxsSync runs a scan pass and advances the transaction watermark to the
// new scan height.
func (s *SyncService) TxsSync(ctx context.Context) (int, error) {
	written, err := s.scan.ScanPass(ctx)
	if err != nil {
		return written, err
	}

	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return written, err
	}
	state, err := s.syncRepo.Get(ctx, prefs.Address, prefs.Network)
	if err != nil {
		return written, err
	}
	return written, s.syncRepo.AdvanceTxSyncHeight(ctx, prefs.Address, prefs.Network, state.LastSyncHeight)
}

// SyncBackup runs one backup round trip now. Disabled wallets fail with
// Validation.
func (s *SyncService) SyncBackup(ctx context.Context) error {
	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return err
	}
	if !prefs.BackupFlag {
		return werr.Validation("Backup is disabled for this wallet")
	}
	return s.backup.SyncPass(ctx)
}

// ReceiveTransactionMessage stores an out-of-band transaction hint and
// immediately scans its height.
func (s *SyncService) ReceiveTransactionMessage(ctx context.Context, msg *models.TransactionMessage) (int, error) {
	if msg.TransactionID == "" {
		return 0, werr.Validation("Transaction id is required")
	}

	viewKey, err := s.sessions.Get()
	if err != nil {
		return 0, err
	}
	vk, err := keys.ParseViewKey(viewKey)
	if err != nil {
		return 0, err
	}

	prefs, err := s.prefsRepo.Get(ctx)
	if err != nil {
		return 0, err
	}

	row, err := models.ToEncryptedData(vk, prefs.Address, prefs.Network, msg)
	if err != nil {
		return 0, err
	}
	if err := s.dataRepo.Insert(ctx, row); err != nil && !werr.Is(err, werr.KindDuplicate) {
		return 0, err
	}

	written, err := s.scan.ProcessTransactionMessage(ctx, msg)
	if werr.Is(err, werr.KindNotFound) {
		// the hint outruns the chain; the range scan will catch it
		return 0, nil
	}
	return written, err
}
