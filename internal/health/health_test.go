package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical error
		optional error
		want     Status
	}{
		{"all healthy", nil, nil, StatusHealthy},
		{"optional failing", nil, errors.New("slow"), StatusDegraded},
		{"critical failing", errors.New("down"), nil, StatusUnhealthy},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker("test")
			c.RegisterFunc("database", true, CustomCheck(func() error { return tc.critical }))
			c.RegisterFunc("key", false, CustomCheck(func() error { return tc.optional }))

			c.Check(context.Background())
			if got := c.OverallStatus(); got != tc.want {
				t.Errorf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestUncheckedCriticalIsUnknown(t *testing.T) {
	c := NewChecker("test")
	c.RegisterFunc("database", true, CustomCheck(func() error { return nil }))
	if got := c.OverallStatus(); got != StatusUnknown {
		t.Errorf("status before first check = %s", got)
	}
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker("test")
	c.Register(&Component{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("boom", false, func(ctx context.Context) CheckResult {
		panic("kaboom")
	})

	results := c.Check(context.Background())
	if results["slow"].Status != StatusUnhealthy || results["slow"].Message != "check timed out" {
		t.Errorf("slow = %+v", results["slow"])
	}
	if results["boom"].Status != StatusUnhealthy || results["boom"].Error != "kaboom" {
		t.Errorf("boom = %+v", results["boom"])
	}
}

func TestDatabaseAndFileChecks(t *testing.T) {
	ctx := context.Background()

	if r := DatabaseCheck(func(context.Context) error { return nil })(ctx); r.Status != StatusHealthy {
		t.Errorf("database ok = %+v", r)
	}
	if r := DatabaseCheck(func(context.Context) error { return errors.New("closed") })(ctx); r.Status != StatusUnhealthy {
		t.Errorf("database down = %+v", r)
	}

	path := filepath.Join(t.TempDir(), "signing_key")
	if r := FileExistsCheck(path)(ctx); r.Status != StatusUnhealthy {
		t.Errorf("missing file = %+v", r)
	}
	if err := os.WriteFile(path, []byte("k"), 0600); err != nil {
		t.Fatal(err)
	}
	if r := FileExistsCheck(path)(ctx); r.Status != StatusHealthy {
		t.Errorf("present file = %+v", r)
	}
}

func TestHandler(t *testing.T) {
	c := NewChecker("1.2.3")
	down := errors.New("down")
	var dbErr error
	c.RegisterFunc("database", true, DatabaseCheck(func(context.Context) error { return dbErr }))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy code = %d", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusHealthy || resp.Version != "1.2.3" {
		t.Errorf("response = %+v", resp)
	}
	if _, ok := resp.Components["database"]; !ok {
		t.Error("database component missing")
	}

	dbErr = down
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy code = %d", rec.Code)
	}

	if names := c.Names(); len(names) != 1 || names[0] != "database" {
		t.Errorf("names = %v", names)
	}
}
