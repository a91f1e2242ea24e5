// Package wallettest holds the behaviour every wallet backend must share. Each
// backend's tests embed StorageSuite and supply a fresh Storage per test.
package wallettest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"agentwallet/internal/wallet"
	"agentwallet/pkg/platform/sentinel"
)

// StorageSuite exercises the single-record primitives and WQL search.
type StorageSuite struct {
	suite.Suite

	// NewStorage returns an empty, open storage for one test.
	NewStorage func(t *testing.T) wallet.Storage

	storage wallet.Storage
	ctx     context.Context
}

func (s *StorageSuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = s.NewStorage(s.T())
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		s.Require().NoError(s.storage.Close())
	}
}

func (s *StorageSuite) put(typeName, id string, tags map[string]string) {
	s.Require().NoError(s.storage.Put(s.ctx, typeName, id, []byte("body-"+id), tags))
}

func (s *StorageSuite) search(typeName, query string, opts wallet.SearchOptions) []string {
	items, err := s.storage.Search(s.ctx, typeName, json.RawMessage(query), opts)
	s.Require().NoError(err)
	s.Require().NotNil(items)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (s *StorageSuite) TestSingleRecordPrimitives() {
	s.Run("put then get round-trips body and tags", func() {
		s.put("conn", "a", map[string]string{"state": "Invited", "k": "v"})

		item, err := s.storage.Get(s.ctx, "conn", "a")
		s.Require().NoError(err)
		s.Equal("a", item.ID)
		s.Equal("conn", item.Type)
		s.Equal([]byte("body-a"), item.Value)
		s.Equal(map[string]string{"state": "Invited", "k": "v"}, item.Tags)
	})

	s.Run("put on existing id conflicts", func() {
		err := s.storage.Put(s.ctx, "conn", "a", []byte("other"), nil)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("same id under another type is independent", func() {
		s.put("cred", "a", nil)
		item, err := s.storage.Get(s.ctx, "cred", "a")
		s.Require().NoError(err)
		s.Empty(item.Tags)
	})

	s.Run("get missing returns not found", func() {
		_, err := s.storage.Get(s.ctx, "conn", "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("update replaces body and whole tag set", func() {
		err := s.storage.Update(s.ctx, "conn", "a", []byte("v2"), map[string]string{"state": "Connected"})
		s.Require().NoError(err)

		item, err := s.storage.Get(s.ctx, "conn", "a")
		s.Require().NoError(err)
		s.Equal([]byte("v2"), item.Value)
		s.Equal(map[string]string{"state": "Connected"}, item.Tags)
	})

	s.Run("update missing returns not found", func() {
		err := s.storage.Update(s.ctx, "conn", "missing", []byte("x"), nil)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("delete removes the record", func() {
		s.Require().NoError(s.storage.Delete(s.ctx, "conn", "a"))
		_, err := s.storage.Get(s.ctx, "conn", "a")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		s.Empty(s.search("conn", `{"state":"Connected"}`, wallet.SearchOptions{}))
	})

	s.Run("delete missing returns not found", func() {
		s.Require().ErrorIs(s.storage.Delete(s.ctx, "conn", "a"), sentinel.ErrNotFound)
	})
}

func (s *StorageSuite) seed() {
	s.put("conn", "r1", map[string]string{"state": "Invited", "created_at": "2024-01-01T00:00:00.000000000Z", "alias": "alice"})
	s.put("conn", "r2", map[string]string{"state": "Connected", "created_at": "2024-01-02T00:00:00.000000000Z", "alias": "bob"})
	s.put("conn", "r3", map[string]string{"state": "Connected", "created_at": "2024-01-03T00:00:00.000000000Z"})
	s.put("cred", "c1", map[string]string{"state": "Connected"})
}

func (s *StorageSuite) TestSearch() {
	s.seed()

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query matches all of the type", `{}`, []string{"r1", "r2", "r3"}},
		{"equality", `{"state":"Connected"}`, []string{"r2", "r3"}},
		{"no match is empty", `{"state":"Error"}`, []string{}},
		{"unknown tag is empty", `{"nope":"x"}`, []string{}},
		{"greater than timestamp", `{"created_at":{"$gt":"2024-01-01T12:00:00.000000000Z"}}`, []string{"r2", "r3"}},
		{"greater or equal", `{"created_at":{"$gte":"2024-01-02T00:00:00.000000000Z"}}`, []string{"r2", "r3"}},
		{"less than", `{"created_at":{"$lt":"2024-01-02T00:00:00.000000000Z"}}`, []string{"r1"}},
		{"less or equal", `{"created_at":{"$lte":"2024-01-02T00:00:00.000000000Z"}}`, []string{"r1", "r2"}},
		{"not equal requires the tag", `{"alias":{"$neq":"alice"}}`, []string{"r2"}},
		{"like", `{"alias":{"$like":"%li%"}}`, []string{"r1"}},
		{"like is case sensitive", `{"alias":{"$like":"AL%"}}`, []string{}},
		{"like single char", `{"alias":{"$like":"b_b"}}`, []string{"r2"}},
		{"in", `{"alias":{"$in":["bob","carol"]}}`, []string{"r2"}},
		{"implicit and", `{"state":"Connected","alias":"bob"}`, []string{"r2"}},
		{"explicit and", `{"$and":[{"state":"Connected"},{"created_at":{"$gt":"2024-01-02T12:00:00.000000000Z"}}]}`, []string{"r3"}},
		{"or", `{"$or":[{"alias":"alice"},{"alias":"bob"}]}`, []string{"r1", "r2"}},
		{"not matches records lacking the tag", `{"$not":{"alias":"alice"}}`, []string{"r2", "r3"}},
		{"empty or matches nothing", `{"$or":[]}`, []string{}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.ElementsMatch(tc.want, s.search("conn", tc.query, wallet.SearchOptions{}))
		})
	}

	s.Run("invalid query is an error", func() {
		_, err := s.storage.Search(s.ctx, "conn", json.RawMessage(`{"$bogus":1}`), wallet.SearchOptions{})
		s.Require().Error(err)
	})
}

func (s *StorageSuite) TestSearchOrderingAndPaging() {
	s.seed()

	s.Run("default order is by id", func() {
		s.Equal([]string{"r1", "r2", "r3"}, s.search("conn", `{}`, wallet.SearchOptions{}))
	})

	s.Run("sort descending by tag", func() {
		opts := wallet.SearchOptions{Sort: []wallet.SortField{{Tag: "created_at", Descending: true}}}
		s.Equal([]string{"r3", "r2", "r1"}, s.search("conn", `{}`, opts))
	})

	s.Run("missing sort tag sorts last", func() {
		opts := wallet.SearchOptions{Sort: []wallet.SortField{{Tag: "alias"}}}
		s.Equal([]string{"r1", "r2", "r3"}, s.search("conn", `{}`, opts))
	})

	s.Run("limit and skip", func() {
		s.Equal([]string{"r1", "r2"}, s.search("conn", `{}`, wallet.SearchOptions{Limit: 2}))
		s.Equal([]string{"r2", "r3"}, s.search("conn", `{}`, wallet.SearchOptions{Skip: 1, Limit: 5}))
		s.Empty(s.search("conn", `{}`, wallet.SearchOptions{Skip: 10}))
	})

	s.Run("default limit applies", func() {
		for i := 0; i < wallet.DefaultSearchLimit+5; i++ {
			s.put("bulk", fmt.Sprintf("b%03d", i), map[string]string{"n": fmt.Sprint(i)})
		}
		s.Len(s.search("bulk", `{}`, wallet.SearchOptions{}), wallet.DefaultSearchLimit)
	})
}

func (s *StorageSuite) TestConcurrentPrimitives() {
	const workers = 16
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("w-%02d", i)
			if err := s.storage.Put(s.ctx, "conc", id, []byte("v1"), map[string]string{"n": "1"}); err != nil {
				errs <- err
				return
			}
			if err := s.storage.Update(s.ctx, "conc", id, []byte("v2"), map[string]string{"n": "2"}); err != nil {
				errs <- err
				return
			}
			if _, err := s.storage.Search(s.ctx, "conc", json.RawMessage(`{}`), wallet.SearchOptions{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	s.Len(s.search("conc", `{"n":"2"}`, wallet.SearchOptions{Limit: workers * 2}), workers)
}

func (s *StorageSuite) TestUpdateLastWriterWins() {
	s.put("lww", "a", map[string]string{"writer": "none"})
	s.Require().NoError(s.storage.Update(s.ctx, "lww", "a", []byte("first"), map[string]string{"writer": "first"}))
	s.Require().NoError(s.storage.Update(s.ctx, "lww", "a", []byte("second"), map[string]string{"writer": "second"}))

	item, err := s.storage.Get(s.ctx, "lww", "a")
	s.Require().NoError(err)
	s.Equal([]byte("second"), item.Value)
	s.Equal(map[string]string{"writer": "second"}, item.Tags)
	s.Empty(s.search("lww", `{"writer":"first"}`, wallet.SearchOptions{}))
}
