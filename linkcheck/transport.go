package linkcheck

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"
)

// maxRedirects bounds redirect chains per check.
const maxRedirects = 10

// errTooManyRedirects is returned by CheckRedirect.
var errTooManyRedirects = errors.New("too many redirects")

// chromeHelloID is the fingerprint presented when Chrome TLS is on.
var chromeHelloID = tls.HelloChrome_Auto

// chromeH1Spec builds a fresh Chrome ClientHello with ALPN forced to
// http/1.1. Extensions carry handshake state, so a spec serves one
// connection only.
func chromeH1Spec() (*tls.ClientHelloSpec, error) {
	spec, err := tls.UTLSIdToSpec(chromeHelloID)
	if err != nil {
		return nil, err
	}
	// Go's http.Transport cannot speak h2 over a utls conn, so never offer it.
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			break
		}
	}
	return &spec, nil
}

// chromeDialer returns a DialTLSContext that performs a handshake looking
// like Chrome's. A nil roots uses the system pool.
func chromeDialer(roots *x509.CertPool) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		spec, err := chromeH1Spec()
		if err != nil {
			return nil, fmt.Errorf("linkcheck: chrome tls spec: %w", err)
		}
		dialer := &net.Dialer{Timeout: 10 * time.Second}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		host, _, _ := net.SplitHostPort(addr)
		tlsConn := tls.UClient(conn, &tls.Config{ServerName: host, RootCAs: roots}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("linkcheck: apply tls spec: %w", err)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}

// NewClient builds the HTTP client used for link checks. With chromeTLS the
// TLS handshake carries a Chrome fingerprint, which some CDNs in front of
// the target require before they answer HEAD requests with a real status.
func NewClient(chromeTLS bool) *http.Client {
	return newClient(chromeTLS, nil)
}

func newClient(chromeTLS bool, roots *x509.CertPool) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		ForceAttemptHTTP2:   false,
	}
	if chromeTLS {
		transport.DialTLSContext = chromeDialer(roots)
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
}
