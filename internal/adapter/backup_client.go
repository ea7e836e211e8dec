package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/obscura-systems/wallet-core/internal/config"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// BackupClient mirrors encrypted rows to the backup service. The server
// sees only ciphertexts, row metadata, and the owner address.
type BackupClient interface {
	GetSyncHeight(ctx context.Context, cookie, address string) (uint64, error)
	PostSyncHeight(ctx context.Context, cookie, address string, height uint64) error
	GetBackupTimestamp(ctx context.Context, cookie, address string) (time.Time, error)
	PostBackupTimestamp(ctx context.Context, cookie, address string, ts time.Time) error
	PushEncryptedData(ctx context.Context, cookie, address string, rows []*models.EncryptedData) error
	PullEncryptedData(ctx context.Context, cookie, address string, since time.Time, page int) (*EncryptedDataPage, error)
	DeleteBackup(ctx context.Context, cookie, address string) error
}

// EncryptedDataPage is one page of a backup pull.
type EncryptedDataPage struct {
	Rows      []*models.EncryptedData `json:"data"`
	Page      int                     `json:"page"`
	PageCount int                     `json:"pageCount"`
}

// HTTPBackupClient is the HTTP implementation of BackupClient.
type HTTPBackupClient struct {
	base    string
	client  *http.Client
	service string
}

// NewBackupClient builds a client against the remote API base.
func NewBackupClient(cfg *config.RemoteConfig) *HTTPBackupClient {
	return &HTTPBackupClient{
		base:    strings.TrimSuffix(cfg.APIBase, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		service: "backup service",
	}
}

// GetSyncHeight reads the server-side scan watermark for the address.
func (c *HTTPBackupClient) GetSyncHeight(ctx context.Context, cookie, address string) (uint64, error) {
	req, err := newRequest(ctx, http.MethodGet, c.base+"/backup-recovery/sync-height/"+address, nil, cookie)
	if err != nil {
		return 0, err
	}
	var height uint64
	if err := doJSON(c.client, req, c.service, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// PostSyncHeight stores a new server-side scan watermark.
func (c *HTTPBackupClient) PostSyncHeight(ctx context.Context, cookie, address string, height uint64) error {
	url := fmt.Sprintf("%s/backup-recovery/sync-height/%s/%d", c.base, address, height)
	req, err := newRequest(ctx, http.MethodPost, url, nil, cookie)
	if err != nil {
		return err
	}
	return doJSON(c.client, req, c.service, nil)
}

// GetBackupTimestamp reads the time of the last accepted backup push.
func (c *HTTPBackupClient) GetBackupTimestamp(ctx context.Context, cookie, address string) (time.Time, error) {
	req, err := newRequest(ctx, http.MethodGet, c.base+"/backup-recovery/backup-timestamp/"+address, nil, cookie)
	if err != nil {
		return time.Time{}, err
	}
	var unix int64
	if err := doJSON(c.client, req, c.service, &unix); err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}

// PostBackupTimestamp stores the time of the push just completed.
func (c *HTTPBackupClient) PostBackupTimestamp(ctx context.Context, cookie, address string, ts time.Time) error {
	url := fmt.Sprintf("%s/backup-recovery/backup-timestamp/%s/%d", c.base, address, ts.Unix())
	req, err := newRequest(ctx, http.MethodPost, url, nil, cookie)
	if err != nil {
		return err
	}
	return doJSON(c.client, req, c.service, nil)
}

// PushEncryptedData uploads one page of rows.
func (c *HTTPBackupClient) PushEncryptedData(ctx context.Context, cookie, address string, rows []*models.EncryptedData) error {
	if len(rows) == 0 {
		return nil
	}
	body, err := jsonBody(rows)
	if err != nil {
		return err
	}
	req, err := newRequest(ctx, http.MethodPost, c.base+"/backup-recovery/encrypted-data/"+address, body, cookie)
	if err != nil {
		return err
	}
	return doJSON(c.client, req, c.service, nil)
}

// PullEncryptedData fetches one page of rows created after since.
func (c *HTTPBackupClient) PullEncryptedData(ctx context.Context, cookie, address string, since time.Time, page int) (*EncryptedDataPage, error) {
	if page < 1 {
		return nil, werr.Validation("Page numbers start at 1")
	}
	url := fmt.Sprintf("%s/backup-recovery/encrypted-data/%s?since=%d&page=%d", c.base, address, since.Unix(), page)
	req, err := newRequest(ctx, http.MethodGet, url, nil, cookie)
	if err != nil {
		return nil, err
	}
	var out EncryptedDataPage
	if err := doJSON(c.client, req, c.service, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteBackup removes all server-side rows for the address. A missing
// backup is not an error.
func (c *HTTPBackupClient) DeleteBackup(ctx context.Context, cookie, address string) error {
	req, err := newRequest(ctx, http.MethodDelete, c.base+"/backup-recovery/encrypted-data/"+address, nil, cookie)
	if err != nil {
		return err
	}
	err = doJSON(c.client, req, c.service, nil)
	if werr.Is(err, werr.KindNotFound) {
		return nil
	}
	return err
}
