package wallet_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"agentwallet/internal/platform/metrics"
	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/memory"
	"agentwallet/pkg/platform/sentinel"
)

const (
	testConfig = `{"id":"agent-under-test","storage_type":"memory"}`
	testCreds  = `{"key":"test_wallet_key"}`
)

type ManagerSuite struct {
	suite.Suite
	manager *wallet.Manager
	metrics *metrics.Metrics
	ctx     context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.manager = wallet.NewManager(
		wallet.WithProvider(wallet.StorageMemory, memory.NewProvider()),
		wallet.WithKeyCost(bcrypt.MinCost),
		wallet.WithMetrics(s.metrics),
	)
}

// TestCreateAndOpen verifies the create/open contract including the
// duplicate-create pattern callers rely on.
func (s *ManagerSuite) TestCreateAndOpen() {
	s.Run("open before create fails", func() {
		_, err := s.manager.Open(s.ctx, []byte(testConfig), []byte(testCreds))
		s.Require().ErrorIs(err, wallet.ErrOpenFailure)
		s.ErrorIs(err, wallet.ErrWalletNotFound)
	})

	s.Run("create then duplicate create", func() {
		s.Require().NoError(s.manager.Create(s.ctx, []byte(testConfig), []byte(testCreds)))
		err := s.manager.Create(s.ctx, []byte(testConfig), []byte(testCreds))
		s.Require().ErrorIs(err, wallet.ErrAlreadyExists)
	})

	s.Run("open with the right key", func() {
		h, err := s.manager.Open(s.ctx, []byte(testConfig), []byte(testCreds))
		s.Require().NoError(err)
		s.Equal("agent-under-test", h.ID())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.WalletsOpen))
		s.Require().NoError(s.manager.Close(s.ctx, h))
		s.Equal(0.0, testutil.ToFloat64(s.metrics.WalletsOpen))
	})

	s.Run("open with the wrong key fails", func() {
		_, err := s.manager.Open(s.ctx, []byte(testConfig), []byte(`{"key":"wrong"}`))
		s.Require().ErrorIs(err, wallet.ErrOpenFailure)
		s.ErrorIs(err, wallet.ErrInvalidKey)
	})
}

func (s *ManagerSuite) TestCreateOrOpen() {
	h1, err := s.manager.CreateOrOpen(s.ctx, []byte(testConfig), []byte(testCreds))
	s.Require().NoError(err)

	h2, err := s.manager.CreateOrOpen(s.ctx, []byte(testConfig), []byte(testCreds))
	s.Require().NoError(err)
	s.Same(h1, h2, "opening an open wallet returns the same handle")

	s.Require().NoError(s.manager.Close(s.ctx, h1))
	s.Require().NoError(h2.Put(s.ctx, "t", "1", []byte("x"), nil), "handle stays open while referenced")

	s.Require().NoError(s.manager.Close(s.ctx, h2))
	s.Require().ErrorIs(h2.Put(s.ctx, "t", "2", []byte("x"), nil), wallet.ErrNotOpen)
	s.Require().ErrorIs(s.manager.Close(s.ctx, h2), wallet.ErrNotOpen)
}

func (s *ManagerSuite) TestHandlePrimitivesDelegate() {
	h, err := s.manager.CreateOrOpen(s.ctx, []byte(testConfig), []byte(testCreds))
	s.Require().NoError(err)
	defer s.manager.Close(s.ctx, h)

	s.Require().NoError(h.Put(s.ctx, "t", "1", []byte("a"), map[string]string{"k": "v"}))
	s.Require().ErrorIs(h.Put(s.ctx, "t", "1", []byte("a"), nil), sentinel.ErrConflict)
	s.Require().NoError(h.Update(s.ctx, "t", "1", []byte("b"), map[string]string{"k": "w"}))

	item, err := h.Get(s.ctx, "t", "1")
	s.Require().NoError(err)
	s.Equal([]byte("b"), item.Value)

	items, err := h.Search(s.ctx, "t", json.RawMessage(`{"k":"w"}`), wallet.SearchOptions{})
	s.Require().NoError(err)
	s.Len(items, 1)

	s.Require().NoError(h.Delete(s.ctx, "t", "1"))
	_, err = h.Get(s.ctx, "t", "1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ManagerSuite) TestDelete() {
	s.Require().NoError(s.manager.Create(s.ctx, []byte(testConfig), []byte(testCreds)))

	s.Run("refuses while open", func() {
		h, err := s.manager.Open(s.ctx, []byte(testConfig), []byte(testCreds))
		s.Require().NoError(err)
		s.Require().ErrorIs(s.manager.Delete(s.ctx, []byte(testConfig), []byte(testCreds)), wallet.ErrWalletOpen)
		s.Require().NoError(s.manager.Close(s.ctx, h))
	})

	s.Run("refuses the wrong key", func() {
		err := s.manager.Delete(s.ctx, []byte(testConfig), []byte(`{"key":"nope"}`))
		s.Require().ErrorIs(err, wallet.ErrInvalidKey)
	})

	s.Run("deletes with the right key", func() {
		s.Require().NoError(s.manager.Delete(s.ctx, []byte(testConfig), []byte(testCreds)))
		_, err := s.manager.Open(s.ctx, []byte(testConfig), []byte(testCreds))
		s.Require().ErrorIs(err, wallet.ErrWalletNotFound)
	})
}

func (s *ManagerSuite) TestConfigValidation() {
	s.Run("unknown storage type", func() {
		err := s.manager.Create(s.ctx, []byte(`{"id":"x","storage_type":"floppy"}`), []byte(testCreds))
		s.Require().ErrorIs(err, wallet.ErrUnknownStorage)
	})

	s.Run("missing id", func() {
		err := s.manager.Create(s.ctx, []byte(`{"storage_type":"memory"}`), []byte(testCreds))
		s.Require().ErrorIs(err, wallet.ErrInvalidConfig)
	})

	s.Run("missing key", func() {
		_, err := s.manager.Open(s.ctx, []byte(testConfig), []byte(`{}`))
		s.Require().ErrorIs(err, wallet.ErrOpenFailure)
		s.ErrorIs(err, wallet.ErrInvalidCredentials)
	})
}
