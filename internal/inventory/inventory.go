// Package inventory is the fleet-management store alongside the per-card
// NV pool: a registry of provisioned card images and an audit log of the
// APDU operations served against them, backed by gorm over sqlite or
// postgres.
package inventory

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Card is one row per provisioned NV image: identity plus the telemetry
// the last scan observed.
type Card struct {
	ID              uint   `gorm:"primaryKey"`
	Serial          string `gorm:"uniqueIndex;size:8"`
	ImagePath       string `gorm:"size:512"`
	ManufacturerID  uint16
	ProvisionedAt   time.Time
	LastScanAt      time.Time
	LastFreeBytes   uint32
	LastNumPrvKeys  int
	LastDataObjectBytes int
}

// AuditEntry records one served GET DATA / PUT DATA / GET PUBLIC KEY
// request: tag, operation, status word, and timestamp.
type AuditEntry struct {
	ID        uint `gorm:"primaryKey"`
	CardID    uint `gorm:"index"`
	Tag       uint16
	Operation string `gorm:"size:16"` // "get", "put", or "pubkey"
	StatusWord uint16
	At        time.Time
}

// Store wraps the gorm handle used by both the cardengine CLI (provision,
// inspect) and the HTTP façade (GET/PUT telemetry, audit logging).
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) a Store against driver ("sqlite" or
// "postgres") and dsn.
func Open(driver, dsn string) (*Store, error) {
	var dial gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite":
		dial = sqlite.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("inventory: unsupported database type %q (must be sqlite or postgres)", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("inventory: open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&Card{}, &AuditEntry{}); err != nil {
		return nil, fmt.Errorf("inventory: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// UpsertCard records a freshly provisioned card, or updates the image path,
// manufacturer and provisioning time of an existing one with the same serial.
func (s *Store) UpsertCard(serial string, imagePath string, manufacturer uint16) (Card, error) {
	card := Card{Serial: serial, ImagePath: imagePath, ManufacturerID: manufacturer, ProvisionedAt: time.Now()}
	err := s.db.Where(Card{Serial: serial}).Assign(card).FirstOrCreate(&card).Error
	return card, err
}

// RecordScan updates a card's post-scan telemetry.
func (s *Store) RecordScan(serial string, freeBytes uint32, numPrvKeys, dataObjectBytes int) error {
	return s.db.Model(&Card{}).Where("serial = ?", serial).Updates(map[string]any{
		"last_scan_at":           time.Now(),
		"last_free_bytes":        freeBytes,
		"last_num_prv_keys":      numPrvKeys,
		"last_data_object_bytes": dataObjectBytes,
	}).Error
}

// AppendAudit logs one served APDU operation against cardID.
func (s *Store) AppendAudit(cardID uint, tag uint16, operation string, sw uint16) error {
	return s.db.Create(&AuditEntry{CardID: cardID, Tag: tag, Operation: operation, StatusWord: sw, At: time.Now()}).Error
}

// CardBySerial looks up a card's registry row by serial.
func (s *Store) CardBySerial(serial string) (Card, error) {
	var c Card
	err := s.db.Where("serial = ?", serial).First(&c).Error
	return c, err
}

// ListCards returns every registered card, most recently provisioned first.
func (s *Store) ListCards() ([]Card, error) {
	var out []Card
	err := s.db.Order("provisioned_at desc").Find(&out).Error
	return out, err
}
