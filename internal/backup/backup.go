// Package backup archives the SkillPath search log database, with an optional
// config file, as a tar.gz and restores it.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/HerbHall/skillpath/internal/version"
)

// ManifestName is the archive member describing the backup.
const ManifestName = "manifest.json"

// maxMemberSize bounds a single restored file.
const maxMemberSize = 1 << 30

// ErrExists is returned by Restore when a target file exists and force is off.
var ErrExists = errors.New("backup: target file exists")

// Manifest describes an archive's contents.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Database  string    `json:"database"`
	Config    string    `json:"config,omitempty"`
}

// Backup writes a consistent copy of the database at dbPath, plus configPath
// when it exists, to outputPath.
func Backup(ctx context.Context, dbPath, configPath, outputPath string) (Manifest, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return Manifest{}, fmt.Errorf("database file not found: %w", err)
	}

	tmp, err := os.MkdirTemp("", "skillpath-backup-*")
	if err != nil {
		return Manifest{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	snapshot := filepath.Join(tmp, filepath.Base(dbPath))
	if err := vacuumInto(ctx, dbPath, snapshot); err != nil {
		return Manifest{}, fmt.Errorf("snapshot database: %w", err)
	}

	m := Manifest{
		Version:   version.Short(),
		CreatedAt: time.Now().UTC(),
		Database:  filepath.Base(dbPath),
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			m.Config = filepath.Base(configPath)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("creating output file: %w", err)
	}
	if err := writeArchive(out, m, snapshot, configPath); err != nil {
		out.Close()
		os.Remove(outputPath)
		return Manifest{}, err
	}
	if err := out.Close(); err != nil {
		return Manifest{}, fmt.Errorf("closing output file: %w", err)
	}
	return m, nil
}

func writeArchive(w io.Writer, m Manifest, snapshot, configPath string) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    ManifestName,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: m.CreatedAt,
	}); err != nil {
		return err
	}
	if _, err := tw.Write(data); err != nil {
		return err
	}

	if err := addFileToTar(tw, snapshot, m.Database); err != nil {
		return fmt.Errorf("adding database to archive: %w", err)
	}
	if m.Config != "" {
		if err := addFileToTar(tw, configPath, m.Config); err != nil {
			return fmt.Errorf("adding config to archive: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

// Restore extracts the archive at archivePath into dataDir. Existing files
// are only replaced when force is set.
func Restore(_ context.Context, archivePath, dataDir string, force bool) (Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Manifest{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("read gzip: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return Manifest{}, fmt.Errorf("create data dir: %w", err)
	}

	var m Manifest
	var sawManifest bool
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Manifest{}, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || hdr.Name != filepath.Base(hdr.Name) || hdr.Name == "." || hdr.Name == ".." {
			return Manifest{}, fmt.Errorf("unexpected archive member %q", hdr.Name)
		}

		if hdr.Name == ManifestName {
			if err := json.NewDecoder(io.LimitReader(tr, 1<<20)).Decode(&m); err != nil {
				return Manifest{}, fmt.Errorf("decode manifest: %w", err)
			}
			sawManifest = true
			continue
		}

		if err := extract(tr, filepath.Join(dataDir, hdr.Name), force); err != nil {
			return Manifest{}, err
		}
	}

	if !sawManifest {
		return Manifest{}, errors.New("archive has no manifest")
	}
	return m, nil
}

func extract(r io.Reader, target string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	out, err := os.OpenFile(target, flags, 0o640)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, target)
		}
		return fmt.Errorf("create %s: %w", target, err)
	}
	n, err := io.Copy(out, io.LimitReader(r, maxMemberSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxMemberSize {
		err = errors.New("archive member too large")
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// vacuumInto writes a transactionally consistent copy of the database.
func vacuumInto(ctx context.Context, dbPath, target string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, "VACUUM INTO ?", target)
	return err
}

// addFileToTar adds a single file to the tar archive under the given name.
func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}
