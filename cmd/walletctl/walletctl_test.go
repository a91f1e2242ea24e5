package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"agentwallet/internal/platform/config"
	"agentwallet/internal/record"
	"agentwallet/internal/recordstore"
	"agentwallet/internal/wallet"
	"agentwallet/internal/wallet/backends"
	"agentwallet/pkg/requestcontext"
)

const (
	cliConfig = `{"id":"cli","storage_type":"sqlite"}`
	cliCreds  = `{"key":"cli-key"}`
)

type WalletctlSuite struct {
	suite.Suite
	dir string
}

func TestWalletctlSuite(t *testing.T) {
	suite.Run(t, new(WalletctlSuite))
}

func (s *WalletctlSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

// run executes walletctl with args and returns stdout.
func (s *WalletctlSuite) run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", cliConfig, "--credentials", cliCreds, "--wallet-dir", s.dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seed writes records through the record store directly.
func (s *WalletctlSuite) seed(recs ...record.Record) {
	cfg := config.FromEnv()
	cfg.Wallet.Dir = s.dir
	m := backends.NewManager(cfg, wallet.WithKeyCost(bcrypt.MinCost))
	ctx := context.Background()
	h, err := m.CreateOrOpen(ctx, []byte(cliConfig), []byte(cliCreds))
	s.Require().NoError(err)
	defer func() { s.Require().NoError(m.Close(ctx, h)) }()

	store := recordstore.New()
	base := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range recs {
		s.Require().NoError(store.Add(requestcontext.WithTime(ctx, base.Add(time.Duration(i)*time.Hour)), h, r))
	}
}

func (s *WalletctlSuite) views(out string) []record.View {
	var raw []struct {
		Type   string            `json:"type"`
		Record json.RawMessage   `json:"record"`
		Tags   map[string]string `json:"tags"`
	}
	s.Require().NoError(json.Unmarshal([]byte(out), &raw))
	views := make([]record.View, 0, len(raw))
	for _, v := range raw {
		views = append(views, record.View{Type: v.Type, Tags: v.Tags})
	}
	return views
}

func (s *WalletctlSuite) TestWalletLifecycle() {
	out, err := s.run("wallet", "create")
	s.Require().NoError(err)
	s.JSONEq(`{"status":"created"}`, out)

	_, err = s.run("wallet", "create")
	s.ErrorIs(err, wallet.ErrAlreadyExists)

	out, err = s.run("wallet", "delete")
	s.Require().NoError(err)
	s.JSONEq(`{"status":"deleted"}`, out)

	_, err = s.run("record", "list", record.ConnectionTypeName)
	s.ErrorIs(err, wallet.ErrWalletNotFound)
}

func (s *WalletctlSuite) TestRecordCommands() {
	issued := record.NewCredentialRecord("cred-issued")
	issued.State = record.CredentialIssued
	s.seed(
		record.NewCredentialRecord("cred-offered"),
		issued,
		record.NewConnectionRecord("conn-1"),
	)

	s.Run("list", func() {
		out, err := s.run("record", "list", record.CredentialTypeName, "--sort", "-created_at")
		s.Require().NoError(err)
		views := s.views(out)
		s.Require().Len(views, 2)
		s.Equal("Issued", views[0].Tags["state"])
		s.Equal("Offered", views[1].Tags["state"])
	})

	s.Run("search by tag", func() {
		out, err := s.run("record", "search", record.CredentialTypeName, "--tag", "state=Issued")
		s.Require().NoError(err)
		views := s.views(out)
		s.Require().Len(views, 1)
		s.Equal(record.CredentialTypeName, views[0].Type)
	})

	s.Run("search after a time", func() {
		out, err := s.run("record", "search", record.CredentialTypeName, "--after", "created_at=2024-09-01T00:30:00Z")
		s.Require().NoError(err)
		s.Len(s.views(out), 1)
	})

	s.Run("search rejects malformed filters", func() {
		_, err := s.run("record", "search", record.CredentialTypeName, "--tag", "state")
		s.Error(err)
	})

	s.Run("get", func() {
		out, err := s.run("record", "get", record.ConnectionTypeName, "conn-1")
		s.Require().NoError(err)
		var view struct {
			Record map[string]any `json:"record"`
		}
		s.Require().NoError(json.Unmarshal([]byte(out), &view))
		s.Equal("conn-1", view.Record["id"])
		s.Equal("Invited", view.Record["state"])
	})

	s.Run("get missing", func() {
		_, err := s.run("record", "get", record.ConnectionTypeName, "nope")
		s.Error(err)
	})

	s.Run("delete", func() {
		_, err := s.run("record", "delete", record.ConnectionTypeName, "conn-1")
		s.Require().NoError(err)

		_, err = s.run("record", "delete", record.ConnectionTypeName, "conn-1")
		s.True(recordstore.IsNotFound(err))
	})

	s.Run("types", func() {
		out, err := s.run("record", "types")
		s.Require().NoError(err)
		s.JSONEq(`["ConnectionRecord","CredentialRecord"]`, out)
	})

	s.Run("wrong key", func() {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--config", cliConfig, "--credentials", `{"key":"other"}`, "--wallet-dir", s.dir,
			"record", "list", record.ConnectionTypeName})
		s.ErrorIs(cmd.ExecuteContext(context.Background()), wallet.ErrInvalidKey)
	})
}
