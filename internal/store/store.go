package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type locationSnapshotRow struct {
	SessionID         string    `db:"session_id"`
	Pincode           string    `db:"pincode"`
	Lat               float64   `db:"lat"`
	Lng               float64   `db:"lng"`
	Name              string    `db:"name"`
	IsDetected        bool      `db:"is_detected"`
	IsGlobalMode      bool      `db:"is_global_mode"`
	WarehouseID       string    `db:"warehouse_id"`
	WarehouseName     string    `db:"warehouse_name"`
	WarehouseIsGlobal bool      `db:"warehouse_is_global"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// SaveLocationSnapshot upserts a session's persisted location.
func (s *Store) SaveLocationSnapshot(ctx context.Context, snap *models.LocationSnapshot) error {
	query := `
		INSERT INTO location_snapshots
			(session_id, pincode, lat, lng, name, is_detected, is_global_mode,
			 warehouse_id, warehouse_name, warehouse_is_global, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			pincode = EXCLUDED.pincode,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			name = EXCLUDED.name,
			is_detected = EXCLUDED.is_detected,
			is_global_mode = EXCLUDED.is_global_mode,
			warehouse_id = EXCLUDED.warehouse_id,
			warehouse_name = EXCLUDED.warehouse_name,
			warehouse_is_global = EXCLUDED.warehouse_is_global,
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		snap.SessionID, snap.Pincode, snap.Lat, snap.Lng, snap.Name,
		snap.IsDetected, snap.IsGlobalMode,
		snap.Warehouse.ID, snap.Warehouse.Name, snap.Warehouse.IsGlobal)
	return err
}

// LoadLocationSnapshot retrieves a session's persisted location.
// Returns nil without error when absent.
func (s *Store) LoadLocationSnapshot(ctx context.Context, sessionID string) (*models.LocationSnapshot, error) {
	var row locationSnapshotRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM location_snapshots WHERE session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.LocationSnapshot{
		SessionID:    row.SessionID,
		Pincode:      row.Pincode,
		Lat:          row.Lat,
		Lng:          row.Lng,
		Name:         row.Name,
		IsDetected:   row.IsDetected,
		IsGlobalMode: row.IsGlobalMode,
		Warehouse: models.WarehouseRef{
			ID:       row.WarehouseID,
			Name:     row.WarehouseName,
			IsGlobal: row.WarehouseIsGlobal,
		},
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// DeleteLocationSnapshot removes a session's persisted location.
func (s *Store) DeleteLocationSnapshot(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM location_snapshots WHERE session_id = $1", sessionID)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
