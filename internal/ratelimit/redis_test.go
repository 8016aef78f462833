package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestRedis_AllowWithinLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "bbs:rate:fp-a")).
		Return(mock.Result(mock.RedisInt64(3)))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "bbs:rate:fp-a", "60", "NX")).
		Return(mock.Result(mock.RedisInt64(0)))

	g := NewRedisWithClient(c, "bbs:rate:", time.Minute, 5)
	ok, err := g.Allow(context.Background(), "fp-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("request within limit was rejected")
	}
}

func TestRedis_RejectOverLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "bbs:rate:fp-a")).
		Return(mock.Result(mock.RedisInt64(6)))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "bbs:rate:fp-a", "60", "NX")).
		Return(mock.Result(mock.RedisInt64(0)))

	g := NewRedisWithClient(c, "bbs:rate:", time.Minute, 5)
	ok, err := g.Allow(context.Background(), "fp-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("request over limit was allowed")
	}
}

func TestRedis_IncrError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "bbs:rate:fp-a")).
		Return(mock.ErrorResult(errors.New("connection refused")))

	g := NewRedisWithClient(c, "bbs:rate:", time.Minute, 5)
	if _, err := g.Allow(context.Background(), "fp-a"); err == nil {
		t.Fatal("expected error")
	}
}
