// Package trustdb is a SQLite-backed implementation of the host-local
// trust database signature verification is checked against. It is
// the long-lived counterpart to qsfs.MapTrustStore.
package trustdb

import (
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.qsfs.dev/qsfs"
)

// signerRow is the one table this store needs: one row per trusted
// signer_id.
type signerRow struct {
	SignerID string `gorm:"primaryKey;column:signer_id"`
	Note     string
	AddedAt  time.Time
}

func (signerRow) TableName() string { return "trusted_signers" }

// Store is a gorm-backed TrustStore.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a SQLite trust database at path and
// migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("trustdb: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&signerRow{}); err != nil {
		return nil, fmt.Errorf("trustdb: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func encodeID(id [32]byte) string { return hex.EncodeToString(id[:]) }

func decodeID(s string) ([32]byte, error) {
	var id [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return id, fmt.Errorf("trustdb: malformed signer_id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// IsTrusted implements qsfs.SignerLookup.
func (s *Store) IsTrusted(signerID [32]byte) (bool, error) {
	var count int64
	err := s.db.Model(&signerRow{}).Where("signer_id = ?", encodeID(signerID)).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("trustdb: lookup: %w", err)
	}
	return count > 0, nil
}

// Add implements qsfs.TrustStore.
func (s *Store) Add(signerID [32]byte, note string) error {
	row := signerRow{SignerID: encodeID(signerID), Note: note, AddedAt: time.Now()}
	err := s.db.Save(&row).Error
	if err != nil {
		return fmt.Errorf("trustdb: add: %w", err)
	}
	return nil
}

// Remove implements qsfs.TrustStore.
func (s *Store) Remove(signerID [32]byte) error {
	err := s.db.Where("signer_id = ?", encodeID(signerID)).Delete(&signerRow{}).Error
	if err != nil {
		return fmt.Errorf("trustdb: remove: %w", err)
	}
	return nil
}

// List implements qsfs.TrustStore.
func (s *Store) List() ([]qsfs.TrustedSigner, error) {
	var rows []signerRow
	if err := s.db.Order("added_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("trustdb: list: %w", err)
	}
	out := make([]qsfs.TrustedSigner, 0, len(rows))
	for _, r := range rows {
		id, err := decodeID(r.SignerID)
		if err != nil {
			return nil, err
		}
		out = append(out, qsfs.TrustedSigner{SignerID: id, Note: r.Note, AddedAt: r.AddedAt})
	}
	return out, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ qsfs.TrustStore = (*Store)(nil)
