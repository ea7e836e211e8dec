package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// EncryptedDataRepository handles encrypted pointer row persistence.
type EncryptedDataRepository struct {
	store *Store
}

// NewEncryptedDataRepository creates a new encrypted data repository.
func NewEncryptedDataRepository(store *Store) *EncryptedDataRepository {
	return &EncryptedDataRepository{store: store}
}

const encryptedDataColumns = `
	id, owner, ciphertext, nonce, flavour, external_id,
	program_id, function_id, record_type, record_name, transaction_state,
	created_at, updated_at, synced_on, network, spent
`

// Insert stores a new row. A row with the same (owner, external_id,
// network) already present fails with Duplicate.
func (r *EncryptedDataRepository) Insert(ctx context.Context, row *models.EncryptedData) error {
	query := `
		INSERT INTO encrypted_data (` + encryptedDataColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var state *string
	if row.TransactionState != nil {
		s := string(*row.TransactionState)
		state = &s
	}

	_, err := r.store.db.ExecContext(ctx, query,
		row.ID.String(),
		row.Owner,
		row.Ciphertext,
		row.Nonce,
		string(row.Flavour),
		row.ExternalID,
		row.ProgramID,
		row.FunctionID,
		row.RecordType,
		row.RecordName,
		state,
		row.CreatedAt,
		row.UpdatedAt,
		row.SyncedOn,
		string(row.Network),
		row.Spent,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return werr.Duplicate("encrypted data row already exists: " + row.ExternalID)
		}
		return werr.Internal("encrypted data insert failed", err)
	}
	return nil
}

func scanEncryptedData(scan func(dest ...any) error) (*models.EncryptedData, error) {
	var (
		row       models.EncryptedData
		id        string
		flavour   string
		network   string
		programID sql.NullString
		function  sql.NullString
		recType   sql.NullString
		recName   sql.NullString
		txState   sql.NullString
		updatedAt sql.NullTime
		syncedOn  sql.NullTime
		spent     sql.NullBool
	)

	err := scan(
		&id, &row.Owner, &row.Ciphertext, &row.Nonce, &flavour, &row.ExternalID,
		&programID, &function, &recType, &recName, &txState,
		&row.CreatedAt, &updatedAt, &syncedOn, &network, &spent,
	)
	if err != nil {
		return nil, err
	}

	row.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	row.Flavour = types.Flavour(flavour)
	row.Network = types.Network(network)
	if programID.Valid {
		row.ProgramID = &programID.String
	}
	if function.Valid {
		row.FunctionID = &function.String
	}
	if recType.Valid {
		row.RecordType = &recType.String
	}
	if recName.Valid {
		row.RecordName = &recName.String
	}
	if txState.Valid {
		state := types.TransactionState(txState.String)
		row.TransactionState = &state
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		row.UpdatedAt = &t
	}
	if syncedOn.Valid {
		t := syncedOn.Time
		row.SyncedOn = &t
	}
	if spent.Valid {
		b := spent.Bool
		row.Spent = &b
	}
	return &row, nil
}

func (r *EncryptedDataRepository) queryRows(ctx context.Context, query string, args ...any) ([]*models.EncryptedData, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, werr.Internal("encrypted data query failed", err)
	}
	defer rows.Close()

	var out []*models.EncryptedData
	for rows.Next() {
		row, err := scanEncryptedData(rows.Scan)
		if err != nil {
			return nil, werr.Internal("encrypted data scan failed", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, werr.Internal("encrypted data iteration failed", err)
	}
	return out, nil
}

// GetByID retrieves one row by uuid.
func (r *EncryptedDataRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EncryptedData, error) {
	query := `SELECT ` + encryptedDataColumns + ` FROM encrypted_data WHERE id = ?`

	row, err := scanEncryptedData(r.store.db.QueryRowContext(ctx, query, id.String()).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, werr.NotFound("encrypted data row")
	}
	if err != nil {
		return nil, werr.Internal("encrypted data scan failed", err)
	}
	return row, nil
}

// GetByFlavour lists an owner's rows of one flavour, oldest first.
func (r *EncryptedDataRepository) GetByFlavour(ctx context.Context, owner string, flavour types.Flavour, network types.Network) ([]*models.EncryptedData, error) {
	query := `
		SELECT ` + encryptedDataColumns + `
		FROM encrypted_data
		WHERE owner = ? AND flavour = ? AND network = ?
		ORDER BY created_at ASC, id ASC
	`
	return r.queryRows(ctx, query, owner, string(flavour), string(network))
}

// GetEvents lists rows of every flavour except records, oldest first.
func (r *EncryptedDataRepository) GetEvents(ctx context.Context, owner string, network types.Network) ([]*models.EncryptedData, error) {
	query := `
		SELECT ` + encryptedDataColumns + `
		FROM encrypted_data
		WHERE owner = ? AND flavour != ? AND network = ?
		ORDER BY created_at ASC, id ASC
	`
	return r.queryRows(ctx, query, owner, string(types.FlavourRecord), string(network))
}

// GetByTransactionID lists rows whose external id names the transaction,
// including record rows keyed "txid:commitment".
func (r *EncryptedDataRepository) GetByTransactionID(ctx context.Context, owner, txID string, network types.Network) ([]*models.EncryptedData, error) {
	query := `
		SELECT ` + encryptedDataColumns + `
		FROM encrypted_data
		WHERE owner = ? AND network = ?
		  AND (external_id = ? OR external_id LIKE ? || ':%')
		ORDER BY created_at ASC, id ASC
	`
	return r.queryRows(ctx, query, owner, string(network), txID, txID)
}

// GetByExternalID retrieves the row with the given external id, if any.
func (r *EncryptedDataRepository) GetByExternalID(ctx context.Context, owner, externalID string, network types.Network) (*models.EncryptedData, error) {
	query := `
		SELECT ` + encryptedDataColumns + `
		FROM encrypted_data
		WHERE owner = ? AND external_id = ? AND network = ?
	`

	row, err := scanEncryptedData(r.store.db.QueryRowContext(ctx, query, owner, externalID, string(network)).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, werr.NotFound("encrypted data row")
	}
	if err != nil {
		return nil, werr.Internal("encrypted data scan failed", err)
	}
	return row, nil
}

// HasExternalID reports whether a row with the external id exists.
func (r *EncryptedDataRepository) HasExternalID(ctx context.Context, owner, externalID string, network types.Network) (bool, error) {
	query := `SELECT 1 FROM encrypted_data WHERE owner = ? AND external_id = ? AND network = ?`

	var one int
	err := r.store.db.QueryRowContext(ctx, query, owner, externalID, string(network)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, werr.Internal("encrypted data lookup failed", err)
	}
	return true, nil
}

// HasID reports whether a row with the uuid exists.
func (r *EncryptedDataRepository) HasID(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := r.store.db.QueryRowContext(ctx, `SELECT 1 FROM encrypted_data WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, werr.Internal("encrypted data lookup failed", err)
	}
	return true, nil
}

// UpdateSpent rewrites a record row's ciphertext after spent marking.
// Only Record rows may be updated this way.
func (r *EncryptedDataRepository) UpdateSpent(ctx context.Context, id uuid.UUID, ciphertext, nonce []byte, updatedAt time.Time) error {
	query := `
		UPDATE encrypted_data
		SET ciphertext = ?, nonce = ?, spent = 1, updated_at = ?, synced_on = NULL
		WHERE id = ? AND flavour = ?
	`

	res, err := r.store.db.ExecContext(ctx, query, ciphertext, nonce, updatedAt, id.String(), string(types.FlavourRecord))
	if err != nil {
		return werr.Internal("spent update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return werr.Internal("spent update failed", err)
	}
	if n == 0 {
		return werr.NotFound("record row")
	}
	return nil
}

// UpdateTransactionState rewrites a pending transaction row when its state
// changes. The resealed ciphertext carries the full updated pointer.
func (r *EncryptedDataRepository) UpdateTransactionState(ctx context.Context, id uuid.UUID, ciphertext, nonce []byte, state types.TransactionState, updatedAt time.Time) error {
	query := `
		UPDATE encrypted_data
		SET ciphertext = ?, nonce = ?, transaction_state = ?, updated_at = ?, synced_on = NULL
		WHERE id = ? AND flavour = ? AND transaction_state = ?
	`

	res, err := r.store.db.ExecContext(ctx, query,
		ciphertext, nonce, string(state), updatedAt,
		id.String(), string(types.FlavourTransaction), string(types.StatePending),
	)
	if err != nil {
		return werr.Internal("transaction state update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return werr.Internal("transaction state update failed", err)
	}
	if n == 0 {
		return werr.NotFound("pending transaction row")
	}
	return nil
}

// MarkSynced stamps rows as uploaded to the backup service.
func (r *EncryptedDataRepository) MarkSynced(ctx context.Context, ids []uuid.UUID, syncedOn time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, syncedOn)
	for _, id := range ids {
		args = append(args, id.String())
	}

	query := `UPDATE encrypted_data SET synced_on = ? WHERE id IN (` + placeholders + `)`
	if _, err := r.store.db.ExecContext(ctx, query, args...); err != nil {
		return werr.Internal("synced_on update failed", err)
	}
	return nil
}

// ClearSynced drops the synced stamp for an owner so the next backup pass
// re-uploads everything. Used when the backup flag is turned off.
func (r *EncryptedDataRepository) ClearSynced(ctx context.Context, owner string, network types.Network) error {
	query := `UPDATE encrypted_data SET synced_on = NULL WHERE owner = ? AND network = ?`
	if _, err := r.store.db.ExecContext(ctx, query, owner, string(network)); err != nil {
		return werr.Internal("synced_on clear failed", err)
	}
	return nil
}

// ListUnsynced fetches rows never uploaded or changed since the last push.
func (r *EncryptedDataRepository) ListUnsynced(ctx context.Context, owner string, network types.Network, lastPush time.Time) ([]*models.EncryptedData, error) {
	query := `
		SELECT ` + encryptedDataColumns + `
		FROM encrypted_data
		WHERE owner = ? AND network = ?
		  AND (synced_on IS NULL OR synced_on < ?)
		ORDER BY created_at ASC, id ASC
	`
	return r.queryRows(ctx, query, owner, string(network), lastPush)
}

// DeleteAllForRecovery removes every local row before a re-sync from
// seed. The vault entries are untouched.
func (r *EncryptedDataRepository) DeleteAllForRecovery(ctx context.Context, owner string) error {
	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM encrypted_data WHERE owner = ?`, owner); err != nil {
		return werr.Internal("recovery delete failed", err)
	}
	return nil
}

// CountByFlavour counts an owner's rows of one flavour for paging.
func (r *EncryptedDataRepository) CountByFlavour(ctx context.Context, owner string, flavour types.Flavour, network types.Network) (int, error) {
	var n int
	err := r.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM encrypted_data WHERE owner = ? AND flavour = ? AND network = ?`,
		owner, string(flavour), string(network),
	).Scan(&n)
	if err != nil {
		return 0, werr.Internal("encrypted data count failed", err)
	}
	return n, nil
}
