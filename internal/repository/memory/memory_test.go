package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nethead/internal/domain"
	"nethead/internal/repository"
)

func TestInsertAndFindHost(t *testing.T) {
	repo := New()
	ctx := context.Background()

	got, err := repo.FindHostByAddress(ctx, "2001:db8::0212")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no host, got %+v", got)
	}

	host := domain.NewHost("2001:db8::0212")
	if err := repo.InsertHost(ctx, host); err != nil {
		t.Fatalf("InsertHost failed: %v", err)
	}

	got, err = repo.FindHostByAddress(ctx, "2001:db8::0212")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "mote-0212" {
		t.Fatalf("expected mote-0212, got %+v", got)
	}
}

func TestInsertHostDuplicate(t *testing.T) {
	repo := New()
	ctx := context.Background()

	if err := repo.InsertHost(ctx, domain.NewHost("fe80::1")); err != nil {
		t.Fatalf("InsertHost failed: %v", err)
	}
	err := repo.InsertHost(ctx, domain.NewHost("fe80::1"))
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	hosts, _ := repo.ListHosts(ctx)
	if len(hosts) != 1 {
		t.Errorf("expected 1 host, got %d", len(hosts))
	}
}

func TestInsertServiceDuplicate(t *testing.T) {
	repo := New()
	ctx := context.Background()

	if err := repo.InsertHost(ctx, domain.NewHost("fe80::1")); err != nil {
		t.Fatalf("InsertHost failed: %v", err)
	}
	if err := repo.InsertService(ctx, domain.NewService("fe80::1", "AB12")); err != nil {
		t.Fatalf("InsertService failed: %v", err)
	}
	err := repo.InsertService(ctx, domain.NewService("fe80::1", "AB12"))
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// Same neighbor key on another host is a different service
	if err := repo.InsertHost(ctx, domain.NewHost("fe80::2")); err != nil {
		t.Fatalf("InsertHost failed: %v", err)
	}
	if err := repo.InsertService(ctx, domain.NewService("fe80::2", "AB12")); err != nil {
		t.Fatalf("InsertService on second host failed: %v", err)
	}
}

func TestInsertServiceUnknownHost(t *testing.T) {
	repo := New()
	if err := repo.InsertService(context.Background(), domain.NewService("fe80::9", "0001")); err == nil {
		t.Fatal("expected error for service without host")
	}
}

func TestListServices(t *testing.T) {
	repo := New()
	ctx := context.Background()

	_ = repo.InsertHost(ctx, domain.NewHost("fe80::1"))
	_ = repo.InsertHost(ctx, domain.NewHost("fe80::2"))
	for _, key := range []string{"FFFF", "0001", "AB12"} {
		if err := repo.InsertService(ctx, domain.NewService("fe80::1", key)); err != nil {
			t.Fatalf("InsertService failed: %v", err)
		}
	}
	_ = repo.InsertService(ctx, domain.NewService("fe80::2", "0002"))

	services, err := repo.ListServices(ctx, "fe80::1")
	if err != nil {
		t.Fatalf("ListServices failed: %v", err)
	}
	want := []string{"rss-0001", "rss-AB12", "rss-FFFF"}
	if len(services) != len(want) {
		t.Fatalf("got %d services, want %d", len(services), len(want))
	}
	for i, svc := range services {
		if svc.Key != want[i] {
			t.Errorf("services[%d].Key = %q, want %q", i, svc.Key, want[i])
		}
	}
}

func TestConcurrentInsertHost(t *testing.T) {
	repo := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.InsertHost(ctx, domain.NewHost("2001:db8::7")); err == nil {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("expected exactly one successful insert, got %d", inserted)
	}
}

func TestClose(t *testing.T) {
	repo := New()
	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := repo.FindHostByAddress(context.Background(), "fe80::1"); err == nil {
		t.Error("expected error after Close")
	}
}
