package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"nethead/internal/domain"
	"nethead/internal/repository/memory"
	"nethead/internal/service"
)

// recordingRelay captures every submitted check result
type recordingRelay struct {
	mu   sync.Mutex
	reqs []domain.RelayRequest
}

func (r *recordingRelay) Submit(ctx context.Context, req domain.RelayRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return nil
}

func (r *recordingRelay) calls() []domain.RelayRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RelayRequest(nil), r.reqs...)
}

// fakeDirectory lets tests script the service responses
type fakeDirectory struct {
	register  func(address string) (bool, error)
	lookup    func(address string) (*domain.Host, error)
	telemetry func(address string) (service.TelemetryResult, error)
}

func (f *fakeDirectory) Register(ctx context.Context, address string, hello domain.Hello) (bool, error) {
	return f.register(address)
}

// LookupHost treats every address as registered unless lookup is scripted
func (f *fakeDirectory) LookupHost(ctx context.Context, address string) (*domain.Host, error) {
	if f.lookup == nil {
		return domain.NewHost(address), nil
	}
	return f.lookup(address)
}

func (f *fakeDirectory) RecordTelemetry(ctx context.Context, address string, batch *domain.TelemetryBatch) (service.TelemetryResult, error) {
	return f.telemetry(address)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) (*Router, *memory.Repository, *recordingRelay) {
	t.Helper()
	repo := memory.New()
	t.Cleanup(func() { repo.Close() })
	rel := &recordingRelay{}
	svc := service.NewDirectoryService(repo, rel, testLogger())
	return NewRouter(svc, testLogger()), repo, rel
}

func post(path, source, payload string) *domain.Request {
	return &domain.Request{
		Method:        domain.MethodPost,
		Path:          path,
		SourceAddress: source,
		Payload:       []byte(payload),
		ContentFormat: domain.FormatJSON,
	}
}

func assertResult(t *testing.T, req *domain.Request, class domain.ResultClass, code domain.ResultCode) {
	t.Helper()
	if req.ResultClass != class || req.ResultCode != code {
		t.Errorf("result = %s/%s, want %s/%s", req.ResultClass, req.ResultCode, class, code)
	}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestRegisterThenTelemetry(t *testing.T) {
	router, repo, rel := newTestRouter(t)
	ctx := context.Background()
	const addr = "2001:db8::0212"

	lo := &domain.Request{Method: domain.MethodPost, Path: PathRegister, SourceAddress: addr, ContentFormat: domain.FormatUnspecified}
	router.HandlePost(ctx, lo)
	assertResult(t, lo, domain.ClassSuccess, domain.CodeCreated)

	host, err := repo.FindHostByAddress(ctx, addr)
	if err != nil || host == nil {
		t.Fatalf("host not stored: %v", err)
	}
	if host.Name != "mote-0212" {
		t.Errorf("host name = %q, want mote-0212", host.Name)
	}

	rss := post(PathTelemetry, addr, `{"AB12": -67}`)
	router.HandlePost(ctx, rss)
	assertResult(t, rss, domain.ClassSuccess, domain.CodeCreated)

	svc, err := repo.FindService(ctx, addr, "AB12")
	if err != nil || svc == nil {
		t.Fatalf("service not stored: %v", err)
	}
	if svc.Key != "rss-AB12" {
		t.Errorf("service key = %q", svc.Key)
	}

	calls := rel.calls()
	want := domain.RelayRequest{HostName: "mote-0212", ServiceKey: "rss-AB12", Reading: -67, Severity: domain.SeverityOK}
	if len(calls) != 1 || calls[0] != want {
		t.Fatalf("relay calls = %+v, want [%+v]", calls, want)
	}

	// Known service: relayed again, nothing created
	again := post(PathTelemetry, addr, `{"AB12": -70}`)
	router.HandlePost(ctx, again)
	assertResult(t, again, domain.ClassSuccess, domain.CodeChanged)
	if n := len(rel.calls()); n != 2 {
		t.Errorf("relay calls = %d, want 2", n)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	ctx := context.Background()

	first := post(PathRegister, "fd00::1:2", "")
	router.HandlePost(ctx, first)
	assertResult(t, first, domain.ClassSuccess, domain.CodeCreated)

	second := post(PathRegister, "fd00::1:2", "")
	router.HandlePost(ctx, second)
	assertResult(t, second, domain.ClassSuccess, domain.CodeChanged)

	hosts, err := repo.ListHosts(ctx)
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(hosts) != 1 {
		t.Errorf("hosts = %d, want 1", len(hosts))
	}
}

func TestRegisterStoresInterfaceID(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	ctx := context.Background()

	req := post(PathRegister, "fd00::a:b", `{"iid": "0212:4b00:0a0b:0c0d"}`)
	router.HandlePost(ctx, req)
	assertResult(t, req, domain.ClassSuccess, domain.CodeCreated)

	host, _ := repo.FindHostByAddress(ctx, "fd00::a:b")
	if host == nil || host.InterfaceID != "0212:4b00:0a0b:0c0d" {
		t.Errorf("host = %+v", host)
	}
}

func TestRejections(t *testing.T) {
	tests := []struct {
		name  string
		req   *domain.Request
		class domain.ResultClass
		code  domain.ResultCode
	}{
		{"unspecified address", post(PathRegister, "::", ""), domain.ClassClientError, domain.CodeBadRequest},
		{"loopback shares the prefix", post(PathRegister, "::1", ""), domain.ClassClientError, domain.CodeBadRequest},
		{"empty address", post(PathRegister, "", ""), domain.ClassClientError, domain.CodeBadRequest},
		{"unknown path", post("/nh/foo", "fd00::1", `{"AB12": -67}`), domain.ClassClientError, domain.CodeNotFound},
		{"telemetry before hello", post(PathTelemetry, "fd00::1", `{"AB12": -67}`), domain.ClassClientError, domain.CodePreconditionFailed},
		{"malformed telemetry before hello", post(PathTelemetry, "fd00::1", `{"AB12": "loud"}`), domain.ClassClientError, domain.CodePreconditionFailed},
		{"unparsable telemetry before hello", post(PathTelemetry, "fd00::1", `not-json`), domain.ClassClientError, domain.CodePreconditionFailed},
		{"empty batch before hello", post(PathTelemetry, "fd00::1", `{}`), domain.ClassClientError, domain.CodePreconditionFailed},
		{"telemetry from unspecified address", post(PathTelemetry, "::1", `{"AB12": -67}`), domain.ClassClientError, domain.CodePreconditionFailed},
		{"bad method", &domain.Request{Method: "DELETE", Path: PathRegister, SourceAddress: "fd00::1"}, domain.ClassClientError, domain.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, repo, rel := newTestRouter(t)
			router.Handle(context.Background(), tt.req)
			assertResult(t, tt.req, tt.class, tt.code)

			hosts, _ := repo.ListHosts(context.Background())
			if len(hosts) != 0 {
				t.Errorf("hosts = %d, want 0", len(hosts))
			}
			if n := len(rel.calls()); n != 0 {
				t.Errorf("relay calls = %d, want 0", n)
			}
		})
	}
}

func TestTelemetryFromRegisteredHost(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		class   domain.ResultClass
		code    domain.ResultCode
		relayed int
	}{
		{"empty batch", `{}`, domain.ClassSuccess, domain.CodeChanged, 0},
		{"malformed value", `{"AB12": "loud"}`, domain.ClassClientError, domain.CodeBadRequest, 0},
		{"unparsable payload", `not-json`, domain.ClassClientError, domain.CodeBadRequest, 0},
		{"empty payload", ``, domain.ClassClientError, domain.CodeBadRequest, 0},
		{"lower-case key", `{"ab12": -67}`, domain.ClassSuccess, domain.CodeCreated, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, repo, rel := newTestRouter(t)
			ctx := context.Background()

			lo := post(PathRegister, "fd00::2", "")
			router.HandlePost(ctx, lo)
			assertResult(t, lo, domain.ClassSuccess, domain.CodeCreated)

			rss := post(PathTelemetry, "fd00::2", tt.payload)
			router.HandlePost(ctx, rss)
			assertResult(t, rss, tt.class, tt.code)

			if n := len(rel.calls()); n != tt.relayed {
				t.Errorf("relay calls = %d, want %d", n, tt.relayed)
			}
			services, _ := repo.ListServices(ctx, "fd00::2")
			if len(services) != tt.relayed {
				t.Errorf("services = %d, want %d", len(services), tt.relayed)
			}
		})
	}
}

func TestTelemetryLooksUpHostBeforeDecoding(t *testing.T) {
	decoded := false
	dir := &fakeDirectory{
		lookup: func(string) (*domain.Host, error) {
			return nil, &domain.PersistenceError{Op: "find host", Err: errors.New("disk full")}
		},
		telemetry: func(string) (service.TelemetryResult, error) {
			decoded = true
			return service.TelemetryResult{}, nil
		},
	}
	router := NewRouter(dir, testLogger())

	req := post(PathTelemetry, "fd00::1", `not-json`)
	router.HandlePost(context.Background(), req)
	assertResult(t, req, domain.ClassServerError, domain.CodeInternalServerError)
	if decoded {
		t.Error("RecordTelemetry called after a failed host lookup")
	}
}

func TestHandleGet(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	req := &domain.Request{Method: domain.MethodGet, Path: PathRegister, SourceAddress: "fd00::1"}
	router.Handle(context.Background(), req)
	assertResult(t, req, domain.ClassSuccess, domain.CodeContent)

	hosts, _ := repo.ListHosts(context.Background())
	if len(hosts) != 0 {
		t.Errorf("GET created %d hosts", len(hosts))
	}
}

// =============================================================================
// Error boundary
// =============================================================================

func TestHandlerPanicRecovered(t *testing.T) {
	dir := &fakeDirectory{
		register: func(string) (bool, error) { panic("boom") },
	}
	router := NewRouter(dir, testLogger())

	req := post(PathRegister, "fd00::1", "")
	router.HandlePost(context.Background(), req)
	assertResult(t, req, domain.ClassServerError, domain.CodeInternalServerError)
}

func TestPersistenceFailure(t *testing.T) {
	dir := &fakeDirectory{
		register: func(string) (bool, error) {
			return false, &domain.PersistenceError{Op: "insert host", Err: errors.New("disk full")}
		},
		telemetry: func(string) (service.TelemetryResult, error) {
			return service.TelemetryResult{}, &domain.PersistenceError{Op: "find host", Err: errors.New("disk full")}
		},
	}
	router := NewRouter(dir, testLogger())

	lo := post(PathRegister, "fd00::1", "")
	router.HandlePost(context.Background(), lo)
	assertResult(t, lo, domain.ClassServerError, domain.CodeInternalServerError)

	rss := post(PathTelemetry, "fd00::1", `{"AB12": -67}`)
	router.HandlePost(context.Background(), rss)
	assertResult(t, rss, domain.ClassServerError, domain.CodeInternalServerError)
}

func TestTelemetryCreatedWhenAnyServiceCreated(t *testing.T) {
	tests := []struct {
		name   string
		result service.TelemetryResult
		code   domain.ResultCode
	}{
		{"one created", service.TelemetryResult{ServicesCreated: 1, Relayed: 3}, domain.CodeCreated},
		{"created but skipped others", service.TelemetryResult{ServicesCreated: 1, Skipped: 2}, domain.CodeCreated},
		{"none created", service.TelemetryResult{Relayed: 3}, domain.CodeChanged},
		{"all skipped", service.TelemetryResult{Skipped: 3}, domain.CodeChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &fakeDirectory{
				telemetry: func(string) (service.TelemetryResult, error) { return tt.result, nil },
			}
			router := NewRouter(dir, testLogger())

			req := post(PathTelemetry, "fd00::1", `{"AB12": -67}`)
			router.HandlePost(context.Background(), req)
			assertResult(t, req, domain.ClassSuccess, tt.code)
		})
	}
}

func TestConcurrentRegistrations(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	ctx := context.Background()

	const n = 16
	reqs := make([]*domain.Request, n)
	var wg sync.WaitGroup
	for i := range reqs {
		reqs[i] = post(PathRegister, "fd00::dead:beef", "")
		wg.Add(1)
		go func(req *domain.Request) {
			defer wg.Done()
			router.HandlePost(ctx, req)
		}(reqs[i])
	}
	wg.Wait()

	created := 0
	for _, req := range reqs {
		if !req.Succeeded() {
			t.Errorf("request failed: %s/%s", req.ResultClass, req.ResultCode)
		}
		if req.ResultCode == domain.CodeCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created responses = %d, want 1", created)
	}

	hosts, _ := repo.ListHosts(ctx)
	if len(hosts) != 1 {
		t.Errorf("hosts = %d, want 1", len(hosts))
	}
}
