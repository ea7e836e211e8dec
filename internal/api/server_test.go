package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-systems/wallet-core/internal/logging"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/service"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

type stubAccount struct {
	AccountServiceInterface
	network types.Network
}

func (a *stubAccount) CreateSeedPhraseWallet(ctx context.Context, password string, wordCount int, language types.Language) (*service.NewWalletResult, error) {
	if password == "weak" {
		return nil, werr.Validation("Password must be at least 12 characters")
	}
	return &service.NewWalletResult{Address: "aleo1stub", SeedPhrase: "word1 word2"}, nil
}

func (a *stubAccount) GetNetwork(ctx context.Context) (types.Network, error) {
	return a.network, nil
}

func (a *stubAccount) GetAddressString(ctx context.Context) (string, error) {
	return "", werr.NotFound("wallet")
}

type stubKeys struct {
	KeyServiceInterface
	locked bool
}

func (k *stubKeys) GetPrivateKey(password string) (string, error) {
	if k.locked && password == "" {
		return "", werr.Unauthorized("Wallet is locked")
	}
	return "APrivateKey1stub", nil
}

type stubEvents struct {
	EventServiceInterface
	lastFilter types.EventsFilter
	lastPage   int
}

func (e *stubEvents) GetEvents(ctx context.Context, filter types.EventsFilter, page int) (*service.EventsPage, error) {
	e.lastFilter = filter
	e.lastPage = page
	return &service.EventsPage{
		Events: []*service.Event{{ID: uuid.New(), Flavour: types.FlavourTransaction, CreatedAt: time.Now()}},
		Page:   types.Page{Number: page, PageCount: 1, Total: 1},
	}, nil
}

func (e *stubEvents) GetBalance(ctx context.Context, recordName string) (uint64, error) {
	return 1500, nil
}

type stubActions struct {
	ActionServiceInterface
	transfers []*service.TransferRequest
}

func (a *stubActions) Sign(message []byte) (string, error) {
	return "sign1stub", nil
}

func (a *stubActions) Transfer(ctx context.Context, req *service.TransferRequest) (string, error) {
	a.transfers = append(a.transfers, req)
	return "at1transfer", nil
}

type stubSync struct {
	SyncServiceInterface
	messages []*models.TransactionMessage
}

func (s *stubSync) BlocksSync(ctx context.Context) (int, error) { return 7, nil }

func (s *stubSync) ReceiveTransactionMessage(ctx context.Context, msg *models.TransactionMessage) (int, error) {
	s.messages = append(s.messages, msg)
	return 1, nil
}

type testServer struct {
	server  *Server
	account *stubAccount
	keys    *stubKeys
	events  *stubEvents
	actions *stubActions
	sync    *stubSync
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		account: &stubAccount{network: types.NetworkTestnet},
		keys:    &stubKeys{},
		events:  &stubEvents{},
		actions: &stubActions{},
		sync:    &stubSync{},
	}
	ts.server = NewServer(
		&ServerConfig{Host: "127.0.0.1", Port: "0", ShellOrigin: "app://wallet"},
		&Services{
			Account: ts.account,
			Keys:    ts.keys,
			Events:  ts.events,
			Actions: ts.actions,
			Sync:    ts.sync,
		},
		logging.New(logging.LevelError, logging.FormatText),
	)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestCreateWallet(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/account/seed-phrase-wallet", map[string]interface{}{
		"password": "Correct-Horse-Battery-9", "wordCount": 12, "language": "english",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var result service.NewWalletResult
	decodeBody(t, rec, &result)
	assert.Equal(t, "aleo1stub", result.Address)
}

func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/account/seed-phrase-wallet", map[string]interface{}{
		"password": "weak", "wordCount": 12, "language": "english",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "Password must be at least 12 characters", body.Error.Message)
}

func TestAddressNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/account/address", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrivateKeyLockedWallet(t *testing.T) {
	ts := newTestServer(t)
	ts.keys.locked = true

	rec := ts.do(t, http.MethodPost, "/api/keys/private-key", map[string]string{"password": ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "Wallet is locked", body.Error.Message)

	rec = ts.do(t, http.MethodPost, "/api/keys/private-key", map[string]string{"password": "Correct-Horse-Battery-9"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetEventsQueryParsing(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/events?page=3&eventType=transition&programId=credits.aleo", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, ts.events.lastPage)
	assert.Equal(t, types.FlavourTransition, ts.events.lastFilter.EventType)
	assert.Equal(t, "credits.aleo", ts.events.lastFilter.ProgramID)

	// page defaults to 1
	rec = ts.do(t, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.events.lastPage)

	rec = ts.do(t, http.MethodGet, "/api/events?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBalance(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/balance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]uint64
	decodeBody(t, rec, &body)
	assert.Equal(t, uint64(1500), body["microcredits"])
}

func TestDeeplinkSign(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/deeplink", map[string]interface{}{
		"kind": "sign",
		"sign": map[string]string{"message": "hello"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "sign1stub", body["signature"])
}

func TestDeeplinkTransfer(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/deeplink", map[string]interface{}{
		"kind":     "transfer",
		"transfer": map[string]interface{}{"recipient": "aleo1dest", "microcredits": 900, "fee": 25},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ts.actions.transfers, 1)
	assert.Equal(t, uint64(900), ts.actions.transfers[0].Microcredits)
}

func TestDeeplinkUnknownKind(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/deeplink", map[string]string{"kind": "format-disk"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionMessage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sync/message", map[string]interface{}{
		"transactionId": "at1msg",
		"blockHeight":   42,
		"from":          "aleo1friend",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.sync.messages, 1)
	assert.Equal(t, "at1msg", ts.sync.messages[0].TransactionID)
	assert.Equal(t, uint64(42), ts.sync.messages[0].BlockHeight)
}

func TestBlocksSync(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sync/blocks", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body syncResult
	decodeBody(t, rec, &body)
	assert.Equal(t, 7, body.Scanned)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/account/address", nil)
	req.Header.Set("Origin", "app://wallet")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "app://wallet", rec.Header().Get("Access-Control-Allow-Origin"))
}
