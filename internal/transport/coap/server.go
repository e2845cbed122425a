// Package coap serves the mote resources over CoAP (RFC 7252).
//
// Each datagram is turned into a domain.Request and handed to the router.
// The result written back onto the request selects the response code. A
// plain UDP listener is always started; a DTLS listener with a pre-shared
// key is started when one is configured.
package coap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"

	piondtls "github.com/pion/dtls/v3"
	"github.com/plgd-dev/go-coap/v3/dtls"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	coapnet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/plgd-dev/go-coap/v3/udp"

	"nethead/internal/domain"
)

// DefaultListen is the standard CoAP port on all interfaces
const DefaultListen = ":5683"

// unknownSource stands in for a peer whose address cannot be determined
const unknownSource = "::"

// Handler processes one parsed request and records its result
type Handler interface {
	Handle(ctx context.Context, req *domain.Request)
}

// Config selects the listeners to start
type Config struct {
	Listen string

	// DTLSListen enables CoAP over DTLS when set
	DTLSListen  string
	PSKIdentity string
	PSKKey      []byte
}

// Server bridges CoAP listeners to a Handler
type Server struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
}

// New creates a server; nothing listens until Serve is called
func New(cfg Config, h Handler, logger *slog.Logger) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, handler: h, logger: logger}
}

// Serve runs the listeners until ctx is cancelled or one of them fails
func (s *Server) Serve(ctx context.Context) error {
	router := mux.NewRouter()
	router.DefaultHandle(mux.HandlerFunc(s.serveCOAP))

	var (
		stops []func()
		wg    sync.WaitGroup
		errc  = make(chan error, 2)
	)

	udpConn, err := coapnet.NewListenUDP("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	udpServer := udp.NewServer(options.WithMux(router))
	stops = append(stops, func() {
		udpServer.Stop()
		udpConn.Close()
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("coap listening", "transport", "udp", "addr", s.cfg.Listen)
		if err := udpServer.Serve(udpConn); err != nil {
			errc <- fmt.Errorf("udp server: %w", err)
		}
	}()

	if s.cfg.DTLSListen != "" {
		dtlsListener, err := coapnet.NewDTLSListener("udp", s.cfg.DTLSListen, s.dtlsConfig())
		if err != nil {
			stops[0]()
			wg.Wait()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.DTLSListen, err)
		}
		dtlsServer := dtls.NewServer(options.WithMux(router))
		stops = append(stops, func() {
			dtlsServer.Stop()
			dtlsListener.Close()
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("coap listening", "transport", "dtls", "addr", s.cfg.DTLSListen)
			if err := dtlsServer.Serve(dtlsListener); err != nil {
				errc <- fmt.Errorf("dtls server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	for _, stop := range stops {
		stop()
	}
	wg.Wait()
	s.logger.Info("coap stopped")
	return serveErr
}

// errUnknownIdentity rejects a DTLS handshake from a client presenting
// another PSK identity
var errUnknownIdentity = errors.New("unknown psk identity")

func (s *Server) dtlsConfig() *piondtls.Config {
	return &piondtls.Config{
		PSK:             pskLookup(s.cfg.PSKIdentity, s.cfg.PSKKey, s.logger),
		PSKIdentityHint: []byte(s.cfg.PSKIdentity),
		CipherSuites:    []piondtls.CipherSuiteID{piondtls.TLS_PSK_WITH_AES_128_CCM_8},
	}
}

// pskLookup returns the server's PSK callback. The server side receives the
// identity the client sent; when an identity is configured only that one gets
// the key.
func pskLookup(identity string, key []byte, logger *slog.Logger) func([]byte) ([]byte, error) {
	return func(clientIdentity []byte) ([]byte, error) {
		if identity != "" && !bytes.Equal(clientIdentity, []byte(identity)) {
			logger.Warn("dtls handshake rejected", "identity", string(clientIdentity))
			return nil, fmt.Errorf("%w %q", errUnknownIdentity, clientIdentity)
		}
		return key, nil
	}
}

// serveCOAP adapts a CoAP exchange to the Handler
func (s *Server) serveCOAP(w mux.ResponseWriter, r *mux.Message) {
	req, err := s.buildRequest(w, r)
	if err != nil {
		s.logger.Warn("unreadable request", "error", err)
		s.respond(w, codes.BadRequest)
		return
	}

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s.handler.Handle(ctx, req)
	s.respond(w, ResponseCode(req.ResultClass, req.ResultCode))
}

func (s *Server) buildRequest(w mux.ResponseWriter, r *mux.Message) (*domain.Request, error) {
	req := &domain.Request{
		Method:        methodOf(r.Code()),
		Path:          "/",
		SourceAddress: sourceAddress(w.Conn().RemoteAddr()),
		ContentFormat: domain.FormatUnspecified,
	}

	if path, err := r.Path(); err == nil && path != "" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		req.Path = path
	}

	if cf, err := r.ContentFormat(); err == nil {
		req.ContentFormat = domain.ContentFormat(cf)
	}

	if body := r.Body(); body != nil {
		payload, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		req.Payload = payload
	}

	return req, nil
}

func (s *Server) respond(w mux.ResponseWriter, code codes.Code) {
	if err := w.SetResponse(code, message.TextPlain, nil); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to set response", "code", code.String(), "error", err)
	}
}

func methodOf(c codes.Code) domain.Method {
	switch c {
	case codes.GET:
		return domain.MethodGet
	case codes.POST:
		return domain.MethodPost
	}
	return domain.Method(c.String())
}

// sourceAddress returns the peer IP without port or zone, or the unspecified
// address when it is unknown
func sourceAddress(addr net.Addr) string {
	if addr == nil {
		return unknownSource
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		if a, err := netip.ParseAddr(addr.String()); err == nil {
			return a.Unmap().WithZone("").String()
		}
		return unknownSource
	}
	return ap.Addr().Unmap().WithZone("").String()
}

// ResponseCode maps a request result onto a CoAP response code
func ResponseCode(class domain.ResultClass, code domain.ResultCode) codes.Code {
	switch code {
	case domain.CodeCreated:
		return codes.Created
	case domain.CodeChanged:
		return codes.Changed
	case domain.CodeContent:
		return codes.Content
	case domain.CodeBadRequest:
		return codes.BadRequest
	case domain.CodeNotFound:
		return codes.NotFound
	case domain.CodePreconditionFailed:
		return codes.PreconditionFailed
	case domain.CodeInternalServerError:
		return codes.InternalServerError
	}

	switch class {
	case domain.ClassSuccess:
		return codes.Changed
	case domain.ClassClientError:
		return codes.BadRequest
	}
	return codes.InternalServerError
}
