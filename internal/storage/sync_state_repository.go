package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// SyncState is the per-wallet watermark row.
type SyncState struct {
	Address          string        `json:"address"`
	Network          types.Network `json:"network"`
	LastSyncHeight   uint64        `json:"lastSyncHeight"`
	LastTxSyncHeight uint64        `json:"lastTxSyncHeight"`
	BackupTimestamp  *time.Time    `json:"backupTimestamp,omitempty"`
}

// SyncStateRepository tracks scan and backup watermarks. Heights advance
// monotonically; the only rollback is the explicit recovery reset.
type SyncStateRepository struct {
	store *Store
}

// NewSyncStateRepository creates a new sync state repository.
func NewSyncStateRepository(store *Store) *SyncStateRepository {
	return &SyncStateRepository{store: store}
}

// Get reads the watermark, returning a zero state for a fresh wallet.
func (r *SyncStateRepository) Get(ctx context.Context, address string, network types.Network) (*SyncState, error) {
	var (
		state           SyncState
		backupTimestamp sql.NullTime
	)
	err := r.store.db.QueryRowContext(ctx,
		`SELECT address, network, last_sync_height, last_tx_sync_height, backup_timestamp
		 FROM sync_state WHERE address = ? AND network = ?`,
		address, string(network),
	).Scan(&state.Address, &state.Network, &state.LastSyncHeight, &state.LastTxSyncHeight, &backupTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return &SyncState{Address: address, Network: network}, nil
	}
	if err != nil {
		return nil, werr.Internal("sync state read failed", err)
	}
	if backupTimestamp.Valid {
		t := backupTimestamp.Time
		state.BackupTimestamp = &t
	}
	return &state, nil
}

func (r *SyncStateRepository) ensureRow(ctx context.Context, address string, network types.Network) error {
	query := `
		INSERT INTO sync_state (address, network)
		VALUES (?, ?)
		ON CONFLICT (address, network) DO NOTHING
	`
	if _, err := r.store.db.ExecContext(ctx, query, address, string(network)); err != nil {
		return werr.Internal("sync state init failed", err)
	}
	return nil
}

// AdvanceSyncHeight bumps last_sync_height, never moving it backward.
func (r *SyncStateRepository) AdvanceSyncHeight(ctx context.Context, address string, network types.Network, height uint64) error {
	if err := r.ensureRow(ctx, address, network); err != nil {
		return err
	}
	query := `
		UPDATE sync_state SET last_sync_height = MAX(last_sync_height, ?)
		WHERE address = ? AND network = ?
	`
	if _, err := r.store.db.ExecContext(ctx, query, height, address, string(network)); err != nil {
		return werr.Internal("sync height update failed", err)
	}
	return nil
}

// AdvanceTxSyncHeight bumps last_tx_sync_height monotonically.
func (r *SyncStateRepository) AdvanceTxSyncHeight(ctx context.Context, address string, network types.Network, height uint64) error {
	if err := r.ensureRow(ctx, address, network); err != nil {
		return err
	}
	query := `
		UPDATE sync_state SET last_tx_sync_height = MAX(last_tx_sync_height, ?)
		WHERE address = ? AND network = ?
	`
	if _, err := r.store.db.ExecContext(ctx, query, height, address, string(network)); err != nil {
		return werr.Internal("tx sync height update failed", err)
	}
	return nil
}

// SetBackupTimestamp records the time of the last successful backup push
// or pull.
func (r *SyncStateRepository) SetBackupTimestamp(ctx context.Context, address string, network types.Network, ts time.Time) error {
	if err := r.ensureRow(ctx, address, network); err != nil {
		return err
	}
	query := `UPDATE sync_state SET backup_timestamp = ? WHERE address = ? AND network = ?`
	if _, err := r.store.db.ExecContext(ctx, query, ts, address, string(network)); err != nil {
		return werr.Internal("backup timestamp update failed", err)
	}
	return nil
}

// Reset wipes the watermark during the delete-local-for-recovery flow.
// This is the only path that moves heights backward.
func (r *SyncStateRepository) Reset(ctx context.Context, address string, network types.Network) error {
	query := `DELETE FROM sync_state WHERE address = ? AND network = ?`
	if _, err := r.store.db.ExecContext(ctx, query, address, string(network)); err != nil {
		return werr.Internal("sync state reset failed", err)
	}
	return nil
}
