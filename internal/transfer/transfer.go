// Package transfer opens file-transfer sessions (FTP or SFTP) against deploy targets.
//
// Credentials travel as structured values to native client libraries; nothing is
// composed into a shell command line.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Supported schemes.
const (
	SchemeFTP  = "ftp"
	SchemeSFTP = "sftp"
)

// Endpoint is a parsed transfer destination.
type Endpoint struct {
	Scheme   string
	Addr     string
	User     string
	Password string
}

// String renders the endpoint without credentials.
func (e Endpoint) String() string {
	return e.Scheme + "://" + e.Addr
}

// ParseEndpoint parses host values such as "example.com", "example.com:10021"
// or "sftp://example.com". The default scheme is ftp.
func ParseEndpoint(host, user, password string) (Endpoint, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Endpoint{}, errors.New("host is required")
	}
	scheme := SchemeFTP
	if idx := strings.Index(host, "://"); idx >= 0 {
		scheme = strings.ToLower(host[:idx])
		host = host[idx+3:]
	}
	host = strings.TrimSuffix(host, "/")
	var defaultPort string
	switch scheme {
	case SchemeFTP:
		defaultPort = "21"
	case SchemeSFTP:
		defaultPort = "22"
	default:
		return Endpoint{}, errors.Errorf("unsupported transfer scheme %q", scheme)
	}
	if host == "" {
		return Endpoint{}, errors.New("host is required")
	}
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(strings.Trim(host, "[]"), defaultPort)
	}
	return Endpoint{Scheme: scheme, Addr: addr, User: user, Password: password}, nil
}

// Session is an open, authenticated transfer session.
type Session interface {
	// ChangeDir sets the working directory for subsequent calls.
	ChangeDir(path string) error
	// List returns the names of entries in the working directory.
	List() ([]string, error)
	Remove(name string) error
	Upload(name string, r io.Reader) error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Session, error)
}

// NativeDialer dials FTP and SFTP endpoints with native Go clients.
type NativeDialer struct {
	// KnownHostsFiles are consulted for SFTP host keys. Defaults to ~/.ssh/known_hosts.
	KnownHostsFiles []string
}

func (d NativeDialer) Dial(ctx context.Context, ep Endpoint) (Session, error) {
	switch ep.Scheme {
	case SchemeFTP:
		return dialFTP(ctx, ep)
	case SchemeSFTP:
		return dialSFTP(ctx, ep, d.KnownHostsFiles)
	default:
		return nil, fmt.Errorf("unsupported transfer scheme %q", ep.Scheme)
	}
}
