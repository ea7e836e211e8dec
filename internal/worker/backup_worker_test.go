package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-systems/wallet-core/internal/adapter"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/storage"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// fakeBackup is an in-memory backup service.
type fakeBackup struct {
	syncHeight      uint64
	backupTimestamp time.Time
	rows            []*models.EncryptedData
	deleted         bool
	unauthorized    bool
}

func (b *fakeBackup) check() error {
	if b.unauthorized {
		return werr.SessionExpired()
	}
	return nil
}

func (b *fakeBackup) GetSyncHeight(ctx context.Context, cookie, address string) (uint64, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	return b.syncHeight, nil
}

func (b *fakeBackup) PostSyncHeight(ctx context.Context, cookie, address string, height uint64) error {
	if err := b.check(); err != nil {
		return err
	}
	b.syncHeight = height
	return nil
}

func (b *fakeBackup) GetBackupTimestamp(ctx context.Context, cookie, address string) (time.Time, error) {
	if err := b.check(); err != nil {
		return time.Time{}, err
	}
	return b.backupTimestamp, nil
}

func (b *fakeBackup) PostBackupTimestamp(ctx context.Context, cookie, address string, ts time.Time) error {
	if err := b.check(); err != nil {
		return err
	}
	b.backupTimestamp = ts
	return nil
}

func (b *fakeBackup) PushEncryptedData(ctx context.Context, cookie, address string, rows []*models.EncryptedData) error {
	if err := b.check(); err != nil {
		return err
	}
	b.rows = append(b.rows, rows...)
	return nil
}

func (b *fakeBackup) PullEncryptedData(ctx context.Context, cookie, address string, since time.Time, page int) (*adapter.EncryptedDataPage, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	var match []*models.EncryptedData
	for _, row := range b.rows {
		if row.CreatedAt.After(since) {
			match = append(match, row)
		}
	}
	pageCount := types.PageCount(len(match))
	start := (page - 1) * types.PageSize
	if start >= len(match) {
		return &adapter.EncryptedDataPage{Page: page, PageCount: pageCount}, nil
	}
	end := start + types.PageSize
	if end > len(match) {
		end = len(match)
	}
	return &adapter.EncryptedDataPage{Rows: match[start:end], Page: page, PageCount: pageCount}, nil
}

func (b *fakeBackup) DeleteBackup(ctx context.Context, cookie, address string) error {
	if err := b.check(); err != nil {
		return err
	}
	b.rows = nil
	b.deleted = true
	return nil
}

type backupFixture struct {
	worker   *BackupWorker
	backup   *fakeBackup
	dataRepo *storage.EncryptedDataRepository
	syncRepo *storage.SyncStateRepository
	address  string
}

func newBackupFixture(t *testing.T) *backupFixture {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	backup := &fakeBackup{}
	dataRepo := storage.NewEncryptedDataRepository(store)
	syncRepo := storage.NewSyncStateRepository(store)
	address := "aleo1backuptest"

	w, err := NewBackupWorker(&BackupWorkerConfig{
		Network:  types.NetworkTestnet,
		Address:  address,
		Backup:   backup,
		DataRepo: dataRepo,
		SyncRepo: syncRepo,
		Cookie: func(ctx context.Context) (string, error) {
			return "sess-1", nil
		},
	})
	require.NoError(t, err)

	return &backupFixture{worker: w, backup: backup, dataRepo: dataRepo, syncRepo: syncRepo, address: address}
}

func (f *backupFixture) newRow(externalID string, createdAt time.Time) *models.EncryptedData {
	return &models.EncryptedData{
		ID:         uuid.New(),
		Owner:      f.address,
		Ciphertext: []byte(externalID + "-ct"),
		Nonce:      []byte{1, 2, 3},
		Flavour:    types.FlavourTransaction,
		ExternalID: externalID,
		CreatedAt:  createdAt,
		Network:    types.NetworkTestnet,
	}
}

func TestBackupPush(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dataRepo.Insert(ctx, f.newRow("at1a", time.Now().UTC())))
	require.NoError(t, f.dataRepo.Insert(ctx, f.newRow("at1b", time.Now().UTC())))
	require.NoError(t, f.syncRepo.AdvanceSyncHeight(ctx, f.address, types.NetworkTestnet, 500))

	require.NoError(t, f.worker.Push(ctx))

	assert.Len(t, f.backup.rows, 2)
	assert.Equal(t, uint64(500), f.backup.syncHeight)
	assert.False(t, f.backup.backupTimestamp.IsZero())

	state, err := f.syncRepo.Get(ctx, f.address, types.NetworkTestnet)
	require.NoError(t, err)
	require.NotNil(t, state.BackupTimestamp)

	// nothing new on a second pass
	require.NoError(t, f.worker.Push(ctx))
	assert.Len(t, f.backup.rows, 2)
}

func TestBackupPushUnauthorizedAborts(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dataRepo.Insert(ctx, f.newRow("at1a", time.Now().UTC())))
	f.backup.unauthorized = true

	err := f.worker.Push(ctx)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindUnauthorized))

	// nothing marked synced
	rows, err := f.dataRepo.ListUnsynced(ctx, f.address, types.NetworkTestnet, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBackupPullInstallsMissingRows(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	remote := f.newRow("at1remote", time.Now().UTC())
	f.backup.rows = []*models.EncryptedData{remote}
	f.backup.syncHeight = 700
	f.backup.backupTimestamp = time.Now().UTC()

	require.NoError(t, f.worker.Pull(ctx))

	got, err := f.dataRepo.GetByExternalID(ctx, f.address, "at1remote", types.NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, remote.ID, got.ID)

	state, err := f.syncRepo.Get(ctx, f.address, types.NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), state.LastSyncHeight)
}

func TestBackupPullSkipsWhenServerBehind(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.syncRepo.AdvanceSyncHeight(ctx, f.address, types.NetworkTestnet, 1000))
	f.backup.syncHeight = 700
	f.backup.rows = []*models.EncryptedData{f.newRow("at1remote", time.Now().UTC())}

	require.NoError(t, f.worker.Pull(ctx))

	_, err := f.dataRepo.GetByExternalID(ctx, f.address, "at1remote", types.NetworkTestnet)
	assert.True(t, werr.Is(err, werr.KindNotFound))
}

func TestBackupPullConflictingCiphertext(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	local := f.newRow("at1same", time.Now().UTC())
	require.NoError(t, f.dataRepo.Insert(ctx, local))

	remote := f.newRow("at1same", time.Now().UTC())
	remote.Ciphertext = []byte("different-ct")
	f.backup.rows = []*models.EncryptedData{remote}
	f.backup.syncHeight = 50

	err := f.worker.Pull(ctx)
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindIntegrity))

	// the local row is untouched
	got, err := f.dataRepo.GetByID(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, local.Ciphertext, got.Ciphertext)
}

func TestBackupRecover(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	f.backup.rows = []*models.EncryptedData{
		f.newRow("at1a", time.Now().UTC().Add(-time.Hour)),
		f.newRow("at1b", time.Now().UTC()),
	}
	f.backup.syncHeight = 1200

	height, err := f.worker.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), height)

	rows, err := f.dataRepo.GetByFlavour(ctx, f.address, types.FlavourTransaction, types.NetworkTestnet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDisableBackup(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	row := f.newRow("at1a", time.Now().UTC())
	require.NoError(t, f.dataRepo.Insert(ctx, row))
	require.NoError(t, f.worker.Push(ctx))
	require.Len(t, f.backup.rows, 1)

	require.NoError(t, f.worker.DisableBackup(ctx))

	assert.True(t, f.backup.deleted)
	assert.Empty(t, f.backup.rows)

	// everything is unsynced again
	rows, err := f.dataRepo.ListUnsynced(ctx, f.address, types.NetworkTestnet, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
