// File: tlsserver/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server-side TLS configuration shared by every connection of one listener.

package tlsserver

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"os"
	"sync"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/sockfd"
)

// Context owns the parsed certificate chain and private key. It is immutable
// after New returns and safe for concurrent use by any number of handshakes.
type Context struct {
	config *tls.Config
	leaf   *x509.Certificate
	log    log.Logger
}

type options struct {
	clientAuth   tls.ClientAuthType
	clientCAFile string
	minVersion   uint16
	logger       log.Logger
}

// Option customises New.
type Option func(*options)

// WithClientAuth overrides the client certificate policy. The default
// requests a certificate once per connection and verifies it when given.
func WithClientAuth(t tls.ClientAuthType) Option {
	return func(o *options) { o.clientAuth = t }
}

// WithClientCAFile verifies client certificates against the PEM bundle at path
// instead of the system roots.
func WithClientCAFile(path string) Option {
	return func(o *options) { o.clientCAFile = path }
}

// WithMinVersion sets the lowest accepted protocol version.
func WithMinVersion(v uint16) Option {
	return func(o *options) { o.minVersion = v }
}

// WithLogger sets the logger used by the context and its handshakes.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

var tlsInit sync.Once

// requireTLS checks the process-level precondition of the TLS stack: a
// working entropy source. There is no way to serve TLS without one, so the
// process exits.
func requireTLS(l log.Logger) {
	tlsInit.Do(func() {
		var probe [32]byte
		if _, err := io.ReadFull(rand.Reader, probe[:]); err != nil {
			l.WithError(err).Fatal("Could not create server TLS context")
		}
	})
}

// New loads a PEM certificate chain and private key and checks that they
// belong together. Failures are ErrCodeConfig.
func New(certPath, keyPath string, opts ...Option) (*Context, error) {
	o := options{
		clientAuth: tls.VerifyClientCertIfGiven,
		minVersion: tls.VersionTLS12,
	}
	for _, opt := range opts {
		opt(&o)
	}
	l := log.Or(o.logger)
	requireTLS(l)

	l.Infof("Loading server certificate: %s", certPath)
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, configError("load certificate file", err).WithContext("path", certPath)
	}
	if !hasPEMBlock(certPEM, "CERTIFICATE") {
		return nil, api.NewError(api.ErrCodeConfig, "no PEM certificate found").WithContext("path", certPath)
	}

	l.Infof("Loading server private key: %s", keyPath)
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, configError("load private key file", err).WithContext("path", keyPath)
	}

	l.Info("Verifying private key...")
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, configError("private key does not match certificate", err).
			WithContext("cert", certPath).WithContext("key", keyPath)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, configError("parse certificate", err).WithContext("path", certPath)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{pair},
		ClientAuth:   o.clientAuth,
		MinVersion:   o.minVersion,
	}
	if o.clientCAFile != "" {
		pool, err := loadCAPool(o.clientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
	}

	return &Context{config: cfg, leaf: leaf, log: l}, nil
}

// Certificate returns the parsed leaf certificate.
func (c *Context) Certificate() *x509.Certificate {
	return c.leaf
}

// ClientAuth reports the configured client certificate policy.
func (c *Context) ClientAuth() tls.ClientAuthType {
	return c.config.ClientAuth
}

// NewHandshake allocates per-connection TLS state bound to fd. The shared
// configuration is only read.
func (c *Context) NewHandshake(fd *sockfd.FD) *Handshake {
	return newHandshake(c, fd)
}

func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("load client CA file", err).WithContext("path", path)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, api.NewError(api.ErrCodeConfig, "no PEM certificate found").WithContext("path", path)
	}
	return pool, nil
}

func hasPEMBlock(data []byte, typ string) bool {
	for {
		var b *pem.Block
		b, data = pem.Decode(data)
		if b == nil {
			return false
		}
		if b.Type == typ {
			return true
		}
	}
}

func configError(msg string, cause error) *api.Error {
	return api.NewError(api.ErrCodeConfig, msg).Wrap(cause)
}
