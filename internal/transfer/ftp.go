package transfer

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
)

const ftpDialTimeout = 30 * time.Second

type ftpSession struct {
	conn *ftp.ServerConn
}

func dialFTP(ctx context.Context, ep Endpoint) (Session, error) {
	conn, err := ftp.Dial(ep.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpDialTimeout))
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", ep)
	}
	if err := conn.Login(ep.User, ep.Password); err != nil {
		_ = conn.Quit()
		return nil, errors.Wrapf(err, "login to %s as %s", ep, ep.User)
	}
	return &ftpSession{conn: conn}, nil
}

func (s *ftpSession) ChangeDir(dir string) error {
	return errors.Wrapf(s.conn.ChangeDir(dir), "change directory to %s", dir)
}

func (s *ftpSession) List() ([]string, error) {
	entries, err := s.conn.List("")
	if err != nil {
		return nil, errors.Wrap(err, "list remote directory")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFolder {
			continue
		}
		names = append(names, path.Base(e.Name))
	}
	return names, nil
}

func (s *ftpSession) Remove(name string) error {
	return errors.Wrapf(s.conn.Delete(name), "delete %s", name)
}

func (s *ftpSession) Upload(name string, r io.Reader) error {
	return errors.Wrapf(s.conn.Stor(name, r), "upload %s", name)
}

func (s *ftpSession) Close() error {
	return errors.Wrap(s.conn.Quit(), "close ftp session")
}
