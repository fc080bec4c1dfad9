package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tradeRecordModel struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp int64          `gorm:"column:timestamp;index:idx_trade_scope,priority:3"`
	Mode      string         `gorm:"column:mode;size:16;index:idx_trade_scope,priority:1"`
	Symbol    string         `gorm:"column:symbol;size:32;index:idx_trade_scope,priority:2"`
	Action    string         `gorm:"column:action;size:32;index"`
	Side      string         `gorm:"column:side;size:8"`
	Price     float64        `gorm:"column:price"`
	Quantity  float64        `gorm:"column:quantity"`
	PnLPct    float64        `gorm:"column:pnl_pct"`
	PnLAmount float64        `gorm:"column:pnl_amount"`
	Rationale string         `gorm:"column:rationale;type:text"`
	Details   datatypes.JSON `gorm:"column:details"`
}

func (tradeRecordModel) TableName() string { return "trade_records" }

// GormLedger is the durable trade ledger backed by Gorm + SQLite in WAL mode.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(path string) (*GormLedger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger: database path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&tradeRecordModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: one writer, keep contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormLedger{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (l *GormLedger) Append(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	row := toModel(rec)
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	return nil
}

func (l *GormLedger) Query(ctx context.Context, q Query) ([]Record, error) {
	tx := l.db.WithContext(ctx).Model(&tradeRecordModel{})
	if q.Mode != "" {
		tx = tx.Where("mode = ?", q.Mode)
	}
	if q.Symbol != "" {
		tx = tx.Where("symbol = ?", q.Symbol)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if !q.After.IsZero() {
		tx = tx.Where("timestamp > ?", q.After.UnixMilli())
	}
	if q.Descending {
		tx = tx.Order("timestamp DESC, id DESC")
	} else {
		tx = tx.Order("timestamp ASC, id ASC")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var rows []tradeRecordModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ledger query: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func (l *GormLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModel(rec Record) tradeRecordModel {
	row := tradeRecordModel{
		Timestamp: rec.Timestamp.UnixMilli(),
		Mode:      rec.Mode,
		Symbol:    rec.Symbol,
		Action:    rec.Action,
		Side:      rec.Side,
		Price:     rec.Price,
		Quantity:  rec.Quantity,
		PnLPct:    rec.PnLPct,
		PnLAmount: rec.PnLAmount,
		Rationale: rec.Rationale,
	}
	if rec.Details != "" {
		row.Details = datatypes.JSON(rec.Details)
	}
	return row
}

func fromModel(row tradeRecordModel) Record {
	return Record{
		ID:        row.ID,
		Timestamp: time.UnixMilli(row.Timestamp).UTC(),
		Mode:      row.Mode,
		Symbol:    row.Symbol,
		Action:    row.Action,
		Side:      row.Side,
		Price:     row.Price,
		Quantity:  row.Quantity,
		PnLPct:    row.PnLPct,
		PnLAmount: row.PnLAmount,
		Rationale: row.Rationale,
		Details:   string(row.Details),
	}
}

var _ Ledger = (*GormLedger)(nil)
