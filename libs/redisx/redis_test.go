package redisx

import (
	"context"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Config{Addr: "localhost:6379", PoolSize: 20}.options()
	if opts.DialTimeout != 5*time.Second || opts.ReadTimeout != 3*time.Second || opts.WriteTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts %v %v %v", opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout)
	}
	if opts.PoolSize != 20 {
		t.Fatalf("expected pool size 20, got %d", opts.PoolSize)
	}
}

func TestOpenRequiresAddr(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatal("expected ready check to fail without client")
	}
}
