package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/hybridex/internal/db"
)

func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return newStore(c), c
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error without addrs")
	}
}

func TestPing(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("connection refused"))),
	)

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("first ping: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("second ping should fail")
	}
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("loading"))).Times(2),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)

	if err := s.WaitForReady(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("WaitForReady: %v", err)
	}
}

func TestWaitForReady_TimeoutKeepsLastError(t *testing.T) {
	s, c := newMockStore(t)
	cause := errors.New("connection refused")
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(cause)).MinTimes(1)

	err := s.WaitForReady(context.Background(), 120*time.Millisecond)
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped %v", err, cause)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		reply    rueidis.RedisResult
		want     string
		notFound bool
		wantOp   string
	}{
		{name: "hit", reply: mock.Result(mock.RedisBlobString("vector")), want: "vector"},
		{name: "miss", reply: mock.Result(mock.RedisNil()), notFound: true},
		{name: "network", reply: mock.ErrorResult(errors.New("connection reset")), wantOp: db.OpGet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("GET", "hybridex:emb:a:h")).Return(tt.reply)

			data, err := s.Get(context.Background(), "hybridex:emb:a:h")
			if got := errors.Is(err, db.ErrKeyNotFound); got != tt.notFound {
				t.Fatalf("ErrKeyNotFound = %v (err %v)", got, err)
			}
			if tt.wantOp != "" {
				var dbErr *db.Error
				if !errors.As(err, &dbErr) || dbErr.Op != tt.wantOp {
					t.Fatalf("err = %v, want op %s", err, tt.wantOp)
				}
				return
			}
			if string(data) != tt.want {
				t.Errorf("data = %q", data)
			}
		})
	}
}

func TestSetWithTTL(t *testing.T) {
	t.Run("with expiry", func(t *testing.T) {
		s, c := newMockStore(t)
		c.EXPECT().Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "1800")).Return(mock.Result(mock.RedisString("OK")))
		if err := s.SetWithTTL(context.Background(), "k", []byte("v"), 30*time.Minute); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("without expiry", func(t *testing.T) {
		s, c := newMockStore(t)
		c.EXPECT().Do(gomock.Any(), mock.Match("SET", "k", "v")).Return(mock.Result(mock.RedisString("OK")))
		if err := s.SetWithTTL(context.Background(), "k", []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("error", func(t *testing.T) {
		s, c := newMockStore(t)
		c.EXPECT().Do(gomock.Any(), gomock.Any()).Return(mock.ErrorResult(errors.New("OOM")))
		var dbErr *db.Error
		if err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Minute); !errors.As(err, &dbErr) || dbErr.Op != db.OpSet {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestIncr(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("INCR", "hybridex:res:gen")).Return(mock.Result(mock.RedisInt64(7)))

	n, err := s.Incr(context.Background(), "hybridex:res:gen")
	if err != nil || n != 7 {
		t.Fatalf("Incr = %d, %v", n, err)
	}
}

func scanReply(cursor int64, keys ...string) rueidis.RedisResult {
	elems := make([]rueidis.RedisMessage, len(keys))
	for i, k := range keys {
		elems[i] = mock.RedisBlobString(k)
	}
	return mock.Result(mock.RedisArray(mock.RedisInt64(cursor), mock.RedisArray(elems...)))
}

func isScan(cmd []string) bool { return len(cmd) > 0 && cmd[0] == "SCAN" }

func TestDeleteMatching_UnlinksEachPage(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.MatchFn(isScan)).Return(scanReply(42, "emb:a:1", "emb:a:2")),
		c.EXPECT().Do(gomock.Any(), mock.Match("UNLINK", "emb:a:1", "emb:a:2")).Return(mock.Result(mock.RedisInt64(2))),
		c.EXPECT().Do(gomock.Any(), mock.MatchFn(isScan)).Return(scanReply(7)),
		c.EXPECT().Do(gomock.Any(), mock.MatchFn(isScan)).Return(scanReply(0, "emb:a:3")),
		c.EXPECT().Do(gomock.Any(), mock.Match("UNLINK", "emb:a:3")).Return(mock.Result(mock.RedisInt64(1))),
	)

	n, err := s.DeleteMatching(context.Background(), "emb:a:*")
	if err != nil {
		t.Fatalf("DeleteMatching: %v", err)
	}
	if n != 3 {
		t.Errorf("removed = %d, want 3", n)
	}
}

func TestDeleteMatching_UnlinkErrorReportsPartialCount(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.MatchFn(isScan)).Return(scanReply(5, "k1")),
		c.EXPECT().Do(gomock.Any(), mock.Match("UNLINK", "k1")).Return(mock.Result(mock.RedisInt64(1))),
		c.EXPECT().Do(gomock.Any(), mock.MatchFn(isScan)).Return(scanReply(0, "k2")),
		c.EXPECT().Do(gomock.Any(), mock.Match("UNLINK", "k2")).Return(mock.ErrorResult(errors.New("READONLY"))),
	)

	n, err := s.DeleteMatching(context.Background(), "*")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpUnlink {
		t.Fatalf("err = %v, want UNLINK failure", err)
	}
	if n != 1 {
		t.Errorf("removed before failure = %d, want 1", n)
	}
}
