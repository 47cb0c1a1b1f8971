package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix = "ledgerd-"
	backupExt    = ".db"

	// DefaultBackupRetention bounds how many snapshots a backup
	// directory keeps before the oldest are pruned.
	DefaultBackupRetention = 30
)

// BackupInfo describes one snapshot file in a backup directory.
type BackupInfo struct {
	FileName  string    `json:"file_name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateBackup snapshots the live database into dir via VACUUM INTO and
// returns the snapshot path. With onlyIfNoneToday set, an existing
// snapshot from the same calendar day is returned instead of writing a
// new one; the startup and shutdown hooks use this so restarts do not
// pile up snapshots. Snapshots beyond DefaultBackupRetention are pruned,
// oldest first.
//
// The snapshot is written under a temporary name and renamed into place
// so a crash cannot leave a truncated file that looks like a backup.
func (s *Store) CreateBackup(ctx context.Context, dir string, now time.Time, onlyIfNoneToday bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	if onlyIfNoneToday {
		if existing, err := backupFromDay(dir, now); err != nil {
			return "", err
		} else if existing != "" {
			return filepath.Join(dir, existing), nil
		}
	}

	name := backupPrefix + now.Format("20060102-150405") + backupExt
	final := filepath.Join(dir, name)
	temp := filepath.Join(dir, "."+name+".tmp")

	// VACUUM INTO refuses to overwrite; clear any leftover temp file
	// from an earlier crashed attempt.
	if err := os.Remove(temp); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("clear stale backup temp: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, temp); err != nil {
		os.Remove(temp)
		return "", fmt.Errorf("vacuum into %s: %w", temp, err)
	}
	if err := os.Rename(temp, final); err != nil {
		os.Remove(temp)
		return "", fmt.Errorf("finalize backup: %w", err)
	}

	if err := enforceBackupRetention(dir, DefaultBackupRetention); err != nil {
		return final, fmt.Errorf("prune backups: %w", err)
	}

	return final, nil
}

// ListBackups returns the snapshots in dir, newest first. A missing
// directory is treated as empty.
func ListBackups(dir string) ([]BackupInfo, error) {
	names, err := backupNames(dir)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			FileName:  name,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	return backups, nil
}

// backupNames lists snapshot file names in dir, newest first. The
// timestamp embedded in the name sorts lexicographically, so name order
// is creation order.
func backupNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func backupFromDay(dir string, day time.Time) (string, error) {
	names, err := backupNames(dir)
	if err != nil {
		return "", err
	}
	prefix := backupPrefix + day.Format("20060102") + "-"
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return name, nil
		}
	}
	return "", nil
}

func enforceBackupRetention(dir string, keep int) error {
	names, err := backupNames(dir)
	if err != nil {
		return err
	}
	for _, name := range names[min(keep, len(names)):] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
