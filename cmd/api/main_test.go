package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

// slowStreams never reaches NATS.
type slowStreams struct{}

func (slowStreams) EnsureStreams(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type readyStreams struct{}

func (readyStreams) EnsureStreams(context.Context) error { return nil }

func TestStartReceiptFeed_DoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	start := time.Now()
	done := startReceiptFeed(ctx, slowStreams{}, func(context.Context) error {
		t.Error("consumer started without a stream")
		return nil
	})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("startReceiptFeed blocked for %v", elapsed)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

func TestStartReceiptFeed_ConsumesAfterStream(t *testing.T) {
	consumed := make(chan struct{})
	done := startReceiptFeed(context.Background(), readyStreams{}, func(context.Context) error {
		close(consumed)
		return errors.New("consumer gone")
	})

	select {
	case <-consumed:
	case <-time.After(time.Second):
		t.Fatal("consumer never started")
	}
	<-done

	<-startReceiptFeed(context.Background(), readyStreams{}, nil)
}

func TestConsumerName(t *testing.T) {
	if got := sanitizeName("api.host-1_a"); got != "api_host-1_a" {
		t.Errorf("sanitizeName = %q", got)
	}
	if name := consumerName(); len(name) <= len("api-ws-") {
		t.Errorf("consumerName = %q", name)
	}
}
