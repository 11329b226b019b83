// Package directory reads subscribers and their channel preferences from
// the billing-owned subscribers table.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recession-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

type subscriberRecord struct {
	UserID          string `gorm:"column:user_id;primaryKey"`
	Email           string `gorm:"column:email"`
	Phone           string `gorm:"column:phone"`
	TelegramChatID  string `gorm:"column:telegram_chat_id"`
	EmailEnabled    bool   `gorm:"column:email_enabled;not null"`
	SMSEnabled      bool   `gorm:"column:sms_enabled;not null"`
	TelegramEnabled bool   `gorm:"column:telegram_enabled;not null"`
	Tier            string `gorm:"column:tier;not null"`
	Status          string `gorm:"column:status;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (subscriberRecord) TableName() string { return "subscribers" }

func (r subscriberRecord) toDomain() domain.Subscriber {
	return domain.Subscriber{
		UserID:          r.UserID,
		Email:           strings.TrimSpace(r.Email),
		Phone:           strings.TrimSpace(r.Phone),
		TelegramChatID:  strings.TrimSpace(r.TelegramChatID),
		EmailEnabled:    r.EmailEnabled,
		SMSEnabled:      r.SMSEnabled,
		TelegramEnabled: r.TelegramEnabled,
		Tier:            domain.Tier(r.Tier),
	}
}

// Open connects gorm to Postgres. An empty dsn returns a nil db.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to subscriber directory: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// ErrUnavailable is returned when the directory was built without a db.
var ErrUnavailable = errors.New("subscriber directory not configured")

type Directory struct {
	db     *gorm.DB
	tracer trace.Tracer
}

func New(db *gorm.DB, tracer trace.Tracer) *Directory {
	return &Directory{db: db, tracer: tracer}
}

func (d *Directory) AutoMigrate(ctx context.Context) error {
	if d.db == nil {
		return ErrUnavailable
	}
	return d.db.WithContext(ctx).AutoMigrate(&subscriberRecord{})
}

// ListActive returns active subscribers ordered by user id.
func (d *Directory) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	if d.db == nil {
		return nil, ErrUnavailable
	}
	ctx, span := d.tracer.Start(ctx, "directory.list-active")
	defer span.End()

	var records []subscriberRecord
	if err := d.db.WithContext(ctx).
		Where("status = ?", StatusActive).
		Order("user_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Subscriber, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Get returns an active subscriber or domain.ErrSubscriberNotFound.
func (d *Directory) Get(ctx context.Context, userID string) (*domain.Subscriber, error) {
	if d.db == nil {
		return nil, ErrUnavailable
	}
	ctx, span := d.tracer.Start(ctx, "directory.get")
	defer span.End()

	var r subscriberRecord
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, StatusActive).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	sub := r.toDomain()
	return &sub, nil
}

// Save creates or replaces a subscriber row. Billing owns this table in
// production; Save exists for operator seeding and tests.
func (d *Directory) Save(ctx context.Context, sub domain.Subscriber, status string) error {
	if d.db == nil {
		return ErrUnavailable
	}
	ctx, span := d.tracer.Start(ctx, "directory.save")
	defer span.End()

	if sub.UserID == "" {
		return errors.New("user id is required")
	}
	if sub.Tier == "" {
		sub.Tier = domain.TierPulse
	}
	if status == "" {
		status = StatusActive
	}
	r := subscriberRecord{
		UserID:          sub.UserID,
		Email:           sub.Email,
		Phone:           sub.Phone,
		TelegramChatID:  sub.TelegramChatID,
		EmailEnabled:    sub.EmailEnabled,
		SMSEnabled:      sub.SMSEnabled,
		TelegramEnabled: sub.TelegramEnabled,
		Tier:            string(sub.Tier),
		Status:          status,
	}
	return d.db.WithContext(ctx).Save(&r).Error
}
