package connectors

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGet_ConstructsOnceAndCaches(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(map[Kind]Constructor{
		KindRecordStore: func() (any, error) {
			calls.Add(1)
			return "store-client", nil
		},
	}, testLogger())

	for i := 0; i < 5; i++ {
		client, ok := cache.Get(KindRecordStore)
		if !ok {
			t.Fatal("expected ready connector")
		}
		if client != "store-client" {
			t.Fatalf("unexpected client %v", client)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 construction, got %d", got)
	}
	if cache.StateOf(KindRecordStore) != StateReady {
		t.Errorf("expected READY state, got %s", cache.StateOf(KindRecordStore))
	}
}

func TestGet_FailureIsStickyUntilReset(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(map[Kind]Constructor{
		KindMerchantAPI: func() (any, error) {
			calls.Add(1)
			return nil, errors.New("missing credentials")
		},
	}, testLogger())

	for i := 0; i < 3; i++ {
		if _, ok := cache.Get(KindMerchantAPI); ok {
			t.Fatal("expected unavailable connector")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("failed init must not auto-retry, got %d attempts", got)
	}
	if cache.StateOf(KindMerchantAPI) != StateFailed {
		t.Errorf("expected FAILED state, got %s", cache.StateOf(KindMerchantAPI))
	}

	cache.Reset(KindMerchantAPI)
	if cache.StateOf(KindMerchantAPI) != StateUninitialized {
		t.Errorf("expected UNINITIALIZED after Reset, got %s", cache.StateOf(KindMerchantAPI))
	}
	cache.Get(KindMerchantAPI)
	if got := calls.Load(); got != 2 {
		t.Errorf("expected re-attempt after Reset, got %d attempts", got)
	}
}

func TestGet_ConcurrentFirstAccessConstructsOnce(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	cache := NewCache(map[Kind]Constructor{
		KindRecordStore: func() (any, error) {
			calls.Add(1)
			<-started // hold the first construction open while others race in
			return "client", nil
		},
	}, testLogger())

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			cache.Get(KindRecordStore)
		}()
	}
	close(started)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 construction under concurrency, got %d", got)
	}
}

func TestGet_ConstructorPanicIsIsolated(t *testing.T) {
	cache := NewCache(map[Kind]Constructor{
		KindAssistant: func() (any, error) {
			panic("boom")
		},
	}, testLogger())

	if _, ok := cache.Get(KindAssistant); ok {
		t.Fatal("expected unavailable connector after panic")
	}
	if cache.StateOf(KindAssistant) != StateFailed {
		t.Errorf("expected FAILED state, got %s", cache.StateOf(KindAssistant))
	}
}

func TestStateOf_DoesNotInitialize(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(map[Kind]Constructor{
		KindRecordStore: func() (any, error) {
			calls.Add(1)
			return "client", nil
		},
	}, testLogger())

	if cache.StateOf(KindRecordStore) != StateUninitialized {
		t.Errorf("expected UNINITIALIZED, got %s", cache.StateOf(KindRecordStore))
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("StateOf must not construct, got %d attempts", got)
	}
}

func TestGet_UnknownKind(t *testing.T) {
	cache := NewCache(nil, testLogger())
	if _, ok := cache.Get(KindMerchantAPI); ok {
		t.Fatal("expected unavailable for unconfigured kind")
	}
}
