package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/your-org/receiptscan/internal/config"
	"github.com/your-org/receiptscan/internal/models"
	"github.com/your-org/receiptscan/internal/receipts"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore keeps one row per receipt; detections live in a JSONB column.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool, table: pgx.Identifier{cfg.Table}.Sanitize()}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the records table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaFor(s.table)); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func schemaFor(table string) string {
	return strings.ReplaceAll(schemaSQL, "{{table}}", table)
}

// PutItem writes the record in one statement. An existing row with the same
// receipt id is replaced.
func (s *PostgresStore) PutItem(ctx context.Context, item models.RecordItem) error {
	detections, err := encodeDetections(item.Detections)
	if err != nil {
		return fmt.Errorf("encode detections: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (receipt_id, s3_url, filename, upload_timestamp, detected_text)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (receipt_id) DO UPDATE
		 SET s3_url = EXCLUDED.s3_url, filename = EXCLUDED.filename,
		     upload_timestamp = EXCLUDED.upload_timestamp, detected_text = EXCLUDED.detected_text`,
		item.ReceiptID, item.ImageURL, item.Filename, item.UploadedAt, string(detections),
	)
	if err != nil {
		return fmt.Errorf("put item %s: %w", item.ReceiptID, err)
	}
	return nil
}

// Scan returns every record. No ordering is applied.
func (s *PostgresStore) Scan(ctx context.Context) ([]models.DetectionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT receipt_id, s3_url, filename, upload_timestamp, detected_text FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	records := []models.DetectionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Get(ctx context.Context, receiptID string) (*models.DetectionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT receipt_id, s3_url, filename, upload_timestamp, detected_text FROM `+s.table+` WHERE receipt_id = $1`,
		receiptID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, receipts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*models.DetectionRecord, error) {
	var (
		rec models.DetectionRecord
		raw []byte
	)
	if err := row.Scan(&rec.ReceiptID, &rec.ImageURL, &rec.Filename, &rec.UploadedAt, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	dets, err := decodeDetections(raw)
	if err != nil {
		return nil, fmt.Errorf("decode detections of %s: %w", rec.ReceiptID, err)
	}
	rec.Detections = dets
	return &rec, nil
}

// encodeDetections renders normalized documents as JSON. Decimals are written
// as bare JSON numbers with their exact digits.
func encodeDetections(docs []any) ([]byte, error) {
	if docs == nil {
		docs = []any{}
	}
	return json.Marshal(jsonValue(docs))
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return json.Number(t.String())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonValue(val)
		}
		return out
	default:
		return v
	}
}

// decodeDetections reads stored numbers straight back into float fields.
func decodeDetections(raw []byte) ([]models.TextDetection, error) {
	dets := []models.TextDetection{}
	if len(raw) == 0 {
		return dets, nil
	}
	if err := json.Unmarshal(raw, &dets); err != nil {
		return nil, err
	}
	if dets == nil {
		dets = []models.TextDetection{}
	}
	return dets, nil
}
