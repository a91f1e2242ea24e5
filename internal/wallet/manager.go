package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"agentwallet/internal/platform/metrics"
)

// Manager owns wallet lifecycle and tracks open handles. Opening a wallet that
// is already open returns the same handle; it is closed once every Open has
// been matched by a Close.
type Manager struct {
	mu        sync.Mutex
	providers map[string]Provider
	open      map[string]*Handle
	logger    *slog.Logger
	metrics   *metrics.Metrics
	keyCost   int
}

type Option func(*Manager)

// WithProvider registers the backend used for a storage_type.
func WithProvider(storageType string, p Provider) Option {
	return func(m *Manager) {
		m.providers[storageType] = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithKeyCost sets the bcrypt cost used when hashing new wallet keys.
func WithKeyCost(cost int) Option {
	return func(m *Manager) {
		m.keyCost = cost
	}
}

// NewManager constructs a Manager. Register at least one provider.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		providers: make(map[string]Provider),
		open:      make(map[string]*Handle),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		keyCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) resolve(configJSON, credentialsJSON []byte) (Config, Credentials, Provider, error) {
	cfg, err := ParseConfig(configJSON)
	if err != nil {
		return Config{}, Credentials{}, nil, err
	}
	creds, err := ParseCredentials(credentialsJSON)
	if err != nil {
		return Config{}, Credentials{}, nil, err
	}
	p, ok := m.providers[cfg.StorageType]
	if !ok {
		return Config{}, Credentials{}, nil, fmt.Errorf("%w: %q", ErrUnknownStorage, cfg.StorageType)
	}
	return cfg, creds, p, nil
}

func handleKey(cfg Config) string {
	return cfg.StorageType + "/" + cfg.ID
}

// Create provisions a new wallet. It returns ErrAlreadyExists when the wallet
// is already provisioned.
func (m *Manager) Create(ctx context.Context, configJSON, credentialsJSON []byte) error {
	cfg, creds, p, err := m.resolve(configJSON, credentialsJSON)
	if err != nil {
		return err
	}
	meta, err := newMetadata(creds.Key, m.keyCost)
	if err != nil {
		return err
	}
	if err := p.Create(ctx, cfg, creds, meta); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("create wallet %q: %w", cfg.ID, err)
	}
	m.logger.InfoContext(ctx, "wallet created", "wallet_id", cfg.ID, "storage_type", cfg.StorageType)
	return nil
}

// Open opens a wallet after verifying the credentials key. Every failure is
// wrapped with ErrOpenFailure.
func (m *Manager) Open(ctx context.Context, configJSON, credentialsJSON []byte) (*Handle, error) {
	cfg, creds, p, err := m.resolve(configJSON, credentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailure, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := handleKey(cfg)
	if h, ok := m.open[key]; ok {
		if err := verifyKey(h.meta, creds.Key); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpenFailure, err)
		}
		h.refs++
		m.logger.DebugContext(ctx, "wallet handle reused", "wallet_id", cfg.ID, "refs", h.refs)
		return h, nil
	}

	storage, err := p.Open(ctx, cfg, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailure, err)
	}
	meta, err := storage.Metadata(ctx)
	if err == nil {
		err = verifyKey(meta, creds.Key)
	}
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpenFailure, err)
	}

	h := &Handle{id: cfg.ID, key: key, storage: storage, meta: meta, refs: 1}
	m.open[key] = h
	if m.metrics != nil {
		m.metrics.WalletsOpen.Inc()
	}
	m.logger.InfoContext(ctx, "wallet opened", "wallet_id", cfg.ID, "storage_type", cfg.StorageType)
	return h, nil
}

// CreateOrOpen creates the wallet if needed and opens it.
func (m *Manager) CreateOrOpen(ctx context.Context, configJSON, credentialsJSON []byte) (*Handle, error) {
	if err := m.Create(ctx, configJSON, credentialsJSON); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return nil, err
	}
	return m.Open(ctx, configJSON, credentialsJSON)
}

// Close releases one reference to h and closes the backend when none remain.
func (m *Manager) Close(ctx context.Context, h *Handle) error {
	if h == nil {
		return ErrNotOpen
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.closed.Load() {
		return ErrNotOpen
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	h.closed.Store(true)
	delete(m.open, h.key)
	if m.metrics != nil {
		m.metrics.WalletsOpen.Dec()
	}
	if err := h.storage.Close(); err != nil {
		return fmt.Errorf("close wallet %q: %w", h.id, err)
	}
	m.logger.InfoContext(ctx, "wallet closed", "wallet_id", h.id)
	return nil
}

// Delete removes a wallet and all of its records after verifying the key.
// Open wallets cannot be deleted.
func (m *Manager) Delete(ctx context.Context, configJSON, credentialsJSON []byte) error {
	cfg, creds, p, err := m.resolve(configJSON, credentialsJSON)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[handleKey(cfg)]; ok {
		return fmt.Errorf("delete wallet %q: %w", cfg.ID, ErrWalletOpen)
	}

	storage, err := p.Open(ctx, cfg, creds)
	if err != nil {
		return fmt.Errorf("delete wallet %q: %w", cfg.ID, err)
	}
	meta, err := storage.Metadata(ctx)
	if err == nil {
		err = verifyKey(meta, creds.Key)
	}
	if closeErr := storage.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("delete wallet %q: %w", cfg.ID, err)
	}

	if err := p.Delete(ctx, cfg, creds); err != nil {
		return fmt.Errorf("delete wallet %q: %w", cfg.ID, err)
	}
	m.logger.InfoContext(ctx, "wallet deleted", "wallet_id", cfg.ID, "storage_type", cfg.StorageType)
	return nil
}
