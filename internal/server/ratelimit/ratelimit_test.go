package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func testConfig() *Config {
	cfg := NewConfig(0.01, 2)
	cfg.CleanupInterval = 0
	return cfg
}

func TestLimiter_Burst(t *testing.T) {
	limiter := NewLimiter(testConfig())
	defer limiter.Stop()

	for i := 0; i < 2; i++ {
		allowed, info := limiter.Allow("10.0.0.1", "/optimize", "POST")
		if !allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
		if info.Limit != 2 {
			t.Errorf("expected limit 2, got %d", info.Limit)
		}
		if info.Remaining != 1-i {
			t.Errorf("expected remaining %d, got %d", 1-i, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("10.0.0.1", "/optimize", "POST")
	if allowed {
		t.Fatal("expected third request to be denied")
	}
	if info.RetryAfter <= 0 {
		t.Error("expected a positive retry after")
	}

	// A denied request does not push the next token further out.
	_, again := limiter.Allow("10.0.0.1", "/optimize", "POST")
	if again.RetryAfter > info.RetryAfter {
		t.Errorf("retry after grew from %v to %v", info.RetryAfter, again.RetryAfter)
	}
}

func TestLimiter_ClientsAndRoutesAreIndependent(t *testing.T) {
	limiter := NewLimiter(testConfig())
	defer limiter.Stop()

	for i := 0; i < 2; i++ {
		limiter.Allow("10.0.0.1", "/optimize", "POST")
	}
	if allowed, _ := limiter.Allow("10.0.0.2", "/optimize", "POST"); !allowed {
		t.Error("a different client should have its own bucket")
	}
	if allowed, _ := limiter.Allow("10.0.0.1", "/sessions/abc", "GET"); !allowed {
		t.Error("a different route should have its own bucket")
	}
}

func TestLimiter_PrefixRoutesShareBucket(t *testing.T) {
	limiter := NewLimiter(testConfig())
	defer limiter.Stop()

	limiter.Allow("10.0.0.1", "/resumes/a/index", "POST")
	limiter.Allow("10.0.0.1", "/resumes/b/index", "POST")
	if allowed, _ := limiter.Allow("10.0.0.1", "/resumes/c/index", "POST"); allowed {
		t.Error("expected indexing requests to share one bucket")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(testConfig())
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		if allowed, _ := limiter.Allow("10.0.0.1", "/health", "GET"); !allowed {
			t.Fatalf("health request %d denied", i+1)
		}
	}
	if limiter.Len() != 0 {
		t.Errorf("unlimited routes should not create buckets, got %d", limiter.Len())
	}
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	cfg := testConfig()
	cfg.Whitelist["127.0.0.1"] = true
	cfg.Blacklist["192.0.2.1"] = true
	limiter := NewLimiter(cfg)
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		if allowed, _ := limiter.Allow("127.0.0.1", "/optimize", "POST"); !allowed {
			t.Fatal("whitelisted client denied")
		}
	}
	if allowed, _ := limiter.Allow("192.0.2.1", "/health", "GET"); allowed {
		t.Error("blacklisted client allowed")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	limiter := NewLimiter(cfg)
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		if allowed, _ := limiter.Allow("10.0.0.1", "/optimize", "POST"); !allowed {
			t.Fatal("disabled limiter denied a request")
		}
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter := NewLimiter(testConfig())
	defer limiter.Stop()

	limiter.Allow("10.0.0.1", "/optimize", "POST")
	limiter.Allow("10.0.0.2", "/sessions/x", "GET")
	if limiter.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", limiter.Len())
	}

	limiter.cleanup(time.Now().Add(time.Minute))
	if limiter.Len() != 0 {
		t.Errorf("expected all buckets evicted, got %d", limiter.Len())
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(testConfig())
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("10.0.0.1", "/optimize", "POST"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 2 {
		t.Errorf("expected exactly the burst to pass, got %d", allowedCount)
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs(1, 1)

	tests := []struct {
		path, method, want string
	}{
		{"/optimize", "POST", "/optimize"},
		{"/optimize/stream", "POST", "/optimize/stream"},
		{"/resumes/123/index", "POST", "/resumes/"},
		{"/optimize", "GET", ""},
		{"/sessions/1", "GET", ""},
	}
	for _, tt := range tests {
		got := MatchEndpoint(tt.path, tt.method, configs)
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("%s %s: expected no match, got %s", tt.method, tt.path, got.Path)
		case tt.want != "" && (got == nil || got.Path != tt.want):
			t.Errorf("%s %s: expected %s, got %v", tt.method, tt.path, tt.want, got)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")
	t.Setenv("RATE_LIMIT_BLACKLIST", "")
	t.Setenv("RATE_LIMIT_CLEANUP_INTERVAL", "30s")

	cfg := ApplyEnv(NewConfig(1, 1))
	if cfg.Enabled {
		t.Error("expected limiter disabled")
	}
	if !cfg.Whitelist["10.0.0.1"] || !cfg.Whitelist["10.0.0.2"] {
		t.Errorf("unexpected whitelist %v", cfg.Whitelist)
	}
	if len(cfg.Blacklist) != 0 {
		t.Errorf("unexpected blacklist %v", cfg.Blacklist)
	}
	if cfg.CleanupInterval != 30*time.Second {
		t.Errorf("unexpected cleanup interval %v", cfg.CleanupInterval)
	}
}
