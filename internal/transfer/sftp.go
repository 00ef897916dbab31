package transfer

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
	cwd    string
}

func dialSFTP(ctx context.Context, ep Endpoint, knownHostsFiles []string) (Session, error) {
	files, err := knownHostsPaths(knownHostsFiles)
	if err != nil {
		return nil, err
	}
	hostKeys, err := knownhosts.New(files...)
	if err != nil {
		return nil, errors.Wrap(err, "load known_hosts")
	}
	cfg := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            []ssh.AuthMethod{ssh.Password(ep.Password)},
		HostKeyCallback: hostKeys,
		Timeout:         ftpDialTimeout,
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", ep)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, ep.Addr, cfg)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "ssh handshake with %s", ep)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	sc, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "start sftp on %s", ep)
	}
	return &sftpSession{ssh: client, client: sc}, nil
}

func knownHostsPaths(explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve home directory")
	}
	p := filepath.Join(home, ".ssh", "known_hosts")
	if _, err := os.Stat(p); err != nil {
		return nil, errors.Wrapf(err, "sftp requires host keys in %s", p)
	}
	return []string{p}, nil
}

func (s *sftpSession) resolve(name string) string {
	if path.IsAbs(name) || s.cwd == "" {
		return name
	}
	return path.Join(s.cwd, name)
}

func (s *sftpSession) ChangeDir(dir string) error {
	target := s.resolve(dir)
	info, err := s.client.Stat(target)
	if err != nil {
		return errors.Wrapf(err, "change directory to %s", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("change directory to %s: not a directory", dir)
	}
	s.cwd = target
	return nil
}

func (s *sftpSession) List() ([]string, error) {
	dir := s.cwd
	if dir == "" {
		dir = "."
	}
	infos, err := s.client.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list remote directory")
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	return names, nil
}

func (s *sftpSession) Remove(name string) error {
	return errors.Wrapf(s.client.Remove(s.resolve(name)), "delete %s", name)
}

func (s *sftpSession) Upload(name string, r io.Reader) error {
	f, err := s.client.Create(s.resolve(name))
	if err != nil {
		return errors.Wrapf(err, "create %s", name)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "upload %s", name)
	}
	return errors.Wrapf(f.Close(), "finish upload of %s", name)
}

func (s *sftpSession) Close() error {
	err := s.client.Close()
	if s.ssh != nil {
		if cerr := s.ssh.Close(); err == nil {
			err = cerr
		}
	}
	return errors.Wrap(err, "close sftp session")
}
