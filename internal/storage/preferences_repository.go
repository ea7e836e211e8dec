package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// Preferences is the single wallet preferences row.
type Preferences struct {
	Address       string         `json:"address"`
	Username      *string        `json:"username,omitempty"`
	Discriminator *string        `json:"discriminator,omitempty"`
	Language      types.Language `json:"language"`
	Network       types.Network  `json:"network"`
	BackupFlag    bool           `json:"backupFlag"`
	AuthType      types.AuthType `json:"authType"`
}

// PreferencesRepository handles the single-row preferences table.
type PreferencesRepository struct {
	store *Store
}

// NewPreferencesRepository creates a new preferences repository.
func NewPreferencesRepository(store *Store) *PreferencesRepository {
	return &PreferencesRepository{store: store}
}

// Init writes the preferences row at wallet creation, replacing any
// previous wallet's row.
func (r *PreferencesRepository) Init(ctx context.Context, p *Preferences) error {
	query := `
		INSERT INTO preferences (id, address, username, discriminator, language, network, backup_flag, auth_type)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			address = excluded.address,
			username = excluded.username,
			discriminator = excluded.discriminator,
			language = excluded.language,
			network = excluded.network,
			backup_flag = excluded.backup_flag,
			auth_type = excluded.auth_type
	`

	_, err := r.store.db.ExecContext(ctx, query,
		p.Address, p.Username, p.Discriminator,
		string(p.Language), string(p.Network), p.BackupFlag, string(p.AuthType),
	)
	if err != nil {
		return werr.Internal("preferences init failed", err)
	}
	return nil
}

// Get reads the preferences row; NotFound before wallet creation.
func (r *PreferencesRepository) Get(ctx context.Context) (*Preferences, error) {
	query := `
		SELECT address, username, discriminator, language, network, backup_flag, auth_type
		FROM preferences WHERE id = 1
	`

	var (
		p             Preferences
		username      sql.NullString
		discriminator sql.NullString
		language      string
		network       string
		authType      string
	)
	err := r.store.db.QueryRowContext(ctx, query).Scan(
		&p.Address, &username, &discriminator, &language, &network, &p.BackupFlag, &authType,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, werr.NotFound("wallet preferences")
	}
	if err != nil {
		return nil, werr.Internal("preferences read failed", err)
	}

	if username.Valid {
		p.Username = &username.String
	}
	if discriminator.Valid {
		p.Discriminator = &discriminator.String
	}
	p.Language = types.Language(language)
	p.Network = types.Network(network)
	p.AuthType = types.AuthType(authType)
	return &p, nil
}

func (r *PreferencesRepository) update(ctx context.Context, column string, value any) error {
	res, err := r.store.db.ExecContext(ctx, `UPDATE preferences SET `+column+` = ? WHERE id = 1`, value)
	if err != nil {
		return werr.Internal("preferences update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return werr.Internal("preferences update failed", err)
	}
	if n == 0 {
		return werr.NotFound("wallet preferences")
	}
	return nil
}

// UpdateUsername sets the username chosen on the user service.
func (r *PreferencesRepository) UpdateUsername(ctx context.Context, username, discriminator string) error {
	res, err := r.store.db.ExecContext(ctx,
		`UPDATE preferences SET username = ?, discriminator = ? WHERE id = 1`,
		username, discriminator,
	)
	if err != nil {
		return werr.Internal("preferences update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return werr.Internal("preferences update failed", err)
	}
	if n == 0 {
		return werr.NotFound("wallet preferences")
	}
	return nil
}

// UpdateLanguage sets the mnemonic and UI language.
func (r *PreferencesRepository) UpdateLanguage(ctx context.Context, language types.Language) error {
	return r.update(ctx, "language", string(language))
}

// UpdateBackupFlag toggles remote backup participation.
func (r *PreferencesRepository) UpdateBackupFlag(ctx context.Context, on bool) error {
	return r.update(ctx, "backup_flag", on)
}

// UpdateNetwork switches the active network.
func (r *PreferencesRepository) UpdateNetwork(ctx context.Context, network types.Network) error {
	return r.update(ctx, "network", string(network))
}

// UpdateAuthType records how the wallet authenticates remotely.
func (r *PreferencesRepository) UpdateAuthType(ctx context.Context, authType types.AuthType) error {
	return r.update(ctx, "auth_type", string(authType))
}

// Delete removes the preferences row during a full local wipe.
func (r *PreferencesRepository) Delete(ctx context.Context) error {
	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM preferences WHERE id = 1`); err != nil {
		return werr.Internal("preferences delete failed", err)
	}
	return nil
}
