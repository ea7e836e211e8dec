// Package api exposes the wallet command surface over localhost HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/obscura-systems/wallet-core/internal/keys"
	"github.com/obscura-systems/wallet-core/internal/logging"
	"github.com/obscura-systems/wallet-core/internal/models"
	"github.com/obscura-systems/wallet-core/internal/service"
	"github.com/obscura-systems/wallet-core/internal/types"
)

// Service interfaces for dependency injection and testing

// AccountServiceInterface defines the account service operations the API uses.
type AccountServiceInterface interface {
	CreateSeedPhraseWallet(ctx context.Context, password string, wordCount int, language types.Language) (*service.NewWalletResult, error)
	ImportWallet(ctx context.Context, password, privateKey string) (*service.NewWalletResult, error)
	RecoverWalletFromSeedPhrase(ctx context.Context, password, mnemonic string, language types.Language, backup service.BackupRecoverer) (*service.NewWalletResult, error)
	DeleteLocalForRecovery(ctx context.Context) error
	DeleteUtil(ctx context.Context, password string) error
	OpenURL(raw string) error
	GetUsername(ctx context.Context) (string, error)
	UpdateUsername(ctx context.Context, username, discriminator string) error
	GetBackupFlag(ctx context.Context) (bool, error)
	UpdateBackupFlag(ctx context.Context, on bool, backup service.BackupRecoverer) error
	GetNetwork(ctx context.Context) (types.Network, error)
	UpdateNetwork(ctx context.Context, network types.Network) error
	GetLanguage(ctx context.Context) (types.Language, error)
	UpdateLanguage(ctx context.Context, language types.Language) error
	GetAddressString(ctx context.Context) (string, error)
	GetLastSync(ctx context.Context) (*service.LastSync, error)
}

// KeyServiceInterface defines the key material operations.
type KeyServiceInterface interface {
	GetPrivateKey(password string) (string, error)
	GetViewKey(password string) (string, error)
	GetSeedPhrase(password string) (string, error)
	Unlock(password string) (string, error)
	Lock()
}

// AuthServiceInterface defines the server authentication operations.
type AuthServiceInterface interface {
	GetSession(ctx context.Context) (string, error)
	GetAuthType(ctx context.Context) (types.AuthType, error)
}

// SyncServiceInterface defines the sync trigger operations.
type SyncServiceInterface interface {
	BlocksSync(ctx context.Context) (int, error)
	TxsSync(ctx context.Context) (int, error)
	SyncBackup(ctx context.Context) error
	ReceiveTransactionMessage(ctx context.Context, msg *models.TransactionMessage) (int, error)
}

// EventServiceInterface defines the decrypted read operations.
type EventServiceInterface interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*service.Event, error)
	GetEvents(ctx context.Context, filter types.EventsFilter, page int) (*service.EventsPage, error)
	GetRecords(ctx context.Context, filter types.RecordsFilter, page int) (*service.RecordsPage, error)
	GetBalance(ctx context.Context, recordName string) (uint64, error)
	DecryptRecords(ctx context.Context, ciphertexts []string) ([]*keys.RecordPlaintext, error)
}

// ActionServiceInterface defines the state-changing wallet operations.
type ActionServiceInterface interface {
	RequestCreateEvent(ctx context.Context, req *service.CreateEventRequest) (string, error)
	Transfer(ctx context.Context, req *service.TransferRequest) (string, error)
	Sign(message []byte) (string, error)
	Verify(address string, message []byte, signature string) (bool, error)
}

// Server is the localhost HTTP server the wallet shell talks to.
type Server struct {
	router         *mux.Router
	handler        http.Handler
	httpServer     *http.Server
	accountService AccountServiceInterface
	keyService     KeyServiceInterface
	authService    AuthServiceInterface
	syncService    SyncServiceInterface
	eventService   EventServiceInterface
	actionService  ActionServiceInterface
	backup         service.BackupRecoverer
	config         *ServerConfig
	logger         *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ShellOrigin     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Services bundles the command surface handed to the server.
type Services struct {
	Account AccountServiceInterface
	Keys    KeyServiceInterface
	Auth    AuthServiceInterface
	Sync    SyncServiceInterface
	Events  EventServiceInterface
	Actions ActionServiceInterface
	Backup  service.BackupRecoverer
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services *Services, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Global()
	}
	s := &Server{
		router:         mux.NewRouter(),
		accountService: services.Account,
		keyService:     services.Keys,
		authService:    services.Auth,
		syncService:    services.Sync,
		eventService:   services.Events,
		actionService:  services.Actions,
		backup:         services.Backup,
		config:         config,
		logger:         logger.WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))

	s.setupRoutes()

	// CORS wraps the router itself so preflight requests reach it even
	// when no route matches the OPTIONS method.
	s.handler = CORSMiddleware(s.config.ShellOrigin)(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Account endpoints
	api.HandleFunc("/account/seed-phrase-wallet", s.handleCreateSeedPhraseWallet).Methods("POST")
	api.HandleFunc("/account/import", s.handleImportWallet).Methods("POST")
	api.HandleFunc("/account/recover", s.handleRecoverWallet).Methods("POST")
	api.HandleFunc("/account/local", s.handleDeleteLocal).Methods("DELETE")
	api.HandleFunc("/account", s.handleDeleteWallet).Methods("DELETE")
	api.HandleFunc("/account/address", s.handleGetAddress).Methods("GET")
	api.HandleFunc("/account/username", s.handleGetUsername).Methods("GET")
	api.HandleFunc("/account/username", s.handleUpdateUsername).Methods("PUT")
	api.HandleFunc("/account/backup", s.handleGetBackupFlag).Methods("GET")
	api.HandleFunc("/account/backup", s.handleUpdateBackupFlag).Methods("PUT")
	api.HandleFunc("/account/network", s.handleGetNetwork).Methods("GET")
	api.HandleFunc("/account/network", s.handleUpdateNetwork).Methods("PUT")
	api.HandleFunc("/account/language", s.handleGetLanguage).Methods("GET")
	api.HandleFunc("/account/language", s.handleUpdateLanguage).Methods("PUT")
	api.HandleFunc("/account/last-sync", s.handleGetLastSync).Methods("GET")
	api.HandleFunc("/account/open-url", s.handleOpenURL).Methods("POST")

	// Key material endpoints. Secrets travel in POST bodies, never in URLs.
	api.HandleFunc("/keys/private-key", s.handleGetPrivateKey).Methods("POST")
	api.HandleFunc("/keys/view-key", s.handleGetViewKey).Methods("POST")
	api.HandleFunc("/keys/seed-phrase", s.handleGetSeedPhrase).Methods("POST")
	api.HandleFunc("/keys/unlock", s.handleUnlock).Methods("POST")
	api.HandleFunc("/keys/lock", s.handleLock).Methods("POST")

	// Auth endpoints
	api.HandleFunc("/auth/session", s.handleGetSession).Methods("POST")
	api.HandleFunc("/auth/type", s.handleGetAuthType).Methods("GET")

	// Sync endpoints
	api.HandleFunc("/sync/blocks", s.handleBlocksSync).Methods("POST")
	api.HandleFunc("/sync/txs", s.handleTxsSync).Methods("POST")
	api.HandleFunc("/sync/backup", s.handleSyncBackup).Methods("POST")
	api.HandleFunc("/sync/message", s.handleTransactionMessage).Methods("POST")

	// Event and record endpoints
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")
	api.HandleFunc("/events/{id}", s.handleGetEvent).Methods("GET")
	api.HandleFunc("/records", s.handleGetRecords).Methods("GET")
	api.HandleFunc("/records/decrypt", s.handleDecryptRecords).Methods("POST")
	api.HandleFunc("/balance", s.handleGetBalance).Methods("GET")

	// Action endpoints
	api.HandleFunc("/actions/event", s.handleRequestCreateEvent).Methods("POST")
	api.HandleFunc("/actions/transfer", s.handleTransfer).Methods("POST")
	api.HandleFunc("/actions/sign", s.handleSign).Methods("POST")
	api.HandleFunc("/actions/verify", s.handleVerify).Methods("POST")

	// Deep-link hand-off from outside the shell
	s.router.HandleFunc("/deeplink", s.handleDeeplink).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "wallet-core",
	})
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
