package fetch

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// client returns the shared *http.Client, building it on first use.
// A build failure is not remembered: the next request retries, so a
// transient problem such as an unreadable CA file does not wedge the
// process. Once built, the client is never torn down.
func (c *Client) client() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.http != nil {
		return c.http, nil
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: c.cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if c.cfg.RootCAFile != "" {
		tlsCfg, err := rootCAConfig(c.cfg.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
		}
		transport.TLSClientConfig = tlsCfg
	}

	c.http = &http.Client{Transport: transport}
	c.log.Debug("transport client initialized", "keep_alive", c.cfg.KeepAlive)
	return c.http, nil
}

func rootCAConfig(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read root CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
