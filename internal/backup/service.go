// Package backup archives server data directories as tar.gz files and
// tracks them in the registry database.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Backup struct {
	ID        string `json:"id"`
	ServerID  string `json:"server_id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

// session.lock is held by a running server and is meaningless in an
// archive.
var skipNames = map[string]bool{
	"session.lock": true,
}

type Service struct {
	db      *sql.DB
	dataDir string
	log     *logrus.Entry
}

func NewService(db *sql.DB, dataDir string) *Service {
	return &Service{db: db, dataDir: dataDir, log: logrus.WithField("component", "backup")}
}

func (s *Service) backupsDir(serverID string) string {
	return filepath.Join(s.dataDir, "backups", serverID)
}

func (s *Service) serverDir(serverID string) string {
	return filepath.Join(s.dataDir, "servers", serverID)
}

// Create archives a server's data directory. The server may be running;
// a consistent world snapshot additionally requires save-off/save-all
// around the call, which is the scheduler's job.
func (s *Service) Create(serverID string) (*Backup, error) {
	srcDir := s.serverDir(serverID)
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("server data directory not found: %s", srcDir)
	}

	destDir := s.backupsDir(serverID)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	id := uuid.New().String()[:8]
	filename := fmt.Sprintf("%s-%s.tar.gz", time.Now().Format("20060102-150405"), id)
	path := filepath.Join(destDir, filename)

	if err := archiveDir(path, srcDir); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("archive server %s: %w", serverID, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	b := &Backup{
		ID:        id,
		ServerID:  serverID,
		Filename:  filename,
		SizeBytes: info.Size(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.db.Exec(
		`INSERT INTO backups (id, server_id, filename, size_bytes) VALUES (?, ?, ?, ?)`,
		b.ID, b.ServerID, b.Filename, b.SizeBytes,
	); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("save backup record: %w", err)
	}

	s.log.WithFields(logrus.Fields{"server": serverID, "file": filename}).Info("backup created")
	return b, nil
}

func (s *Service) List(serverID string) ([]Backup, error) {
	rows, err := s.db.Query(
		`SELECT id, server_id, filename, size_bytes, created_at FROM backups WHERE server_id = ? ORDER BY created_at DESC`,
		serverID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	backups := []Backup{}
	for rows.Next() {
		var b Backup
		if err := rows.Scan(&b.ID, &b.ServerID, &b.Filename, &b.SizeBytes, &b.CreatedAt); err != nil {
			continue
		}
		backups = append(backups, b)
	}
	return backups, nil
}

func (s *Service) FilePath(serverID, backupID string) (string, error) {
	var filename string
	err := s.db.QueryRow(
		`SELECT filename FROM backups WHERE id = ? AND server_id = ?`, backupID, serverID,
	).Scan(&filename)
	if err != nil {
		return "", fmt.Errorf("backup not found: %w", err)
	}
	return filepath.Join(s.backupsDir(serverID), filename), nil
}

func (s *Service) Delete(serverID, backupID string) error {
	path, err := s.FilePath(serverID, backupID)
	if err != nil {
		return err
	}
	os.Remove(path)
	_, err = s.db.Exec(`DELETE FROM backups WHERE id = ? AND server_id = ?`, backupID, serverID)
	return err
}

// Restore extracts a backup over the server's data directory. The
// caller must ensure the server is not running.
func (s *Service) Restore(serverID, backupID string) error {
	path, err := s.FilePath(serverID, backupID)
	if err != nil {
		return err
	}

	destDir := s.serverDir(serverID)
	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("clear data directory: %w", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("recreate data directory: %w", err)
	}
	return extractDir(path, destDir)
}

func archiveDir(dest, srcDir string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if skipNames[info.Name()] {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}

func extractDir(src, destDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, header.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("invalid path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
