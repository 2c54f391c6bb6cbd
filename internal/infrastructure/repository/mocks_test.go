package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	"chatdesk/internal/infrastructure/persistence/models"
	"chatdesk/internal/shared/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any)                   {}
func (nopLogger) Info(msg string, args ...any)                    {}
func (nopLogger) Warn(msg string, args ...any)                    {}
func (nopLogger) Error(msg string, args ...any)                   {}
func (nopLogger) Fatal(msg string, args ...any)                   {}
func (n nopLogger) With(args ...any) logger.Interface             { return n }
func (n nopLogger) Named(name string) logger.Interface            { return n }
func (nopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Fatalw(msg string, keysAndValues ...interface{}) {}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return testNow },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.PlanModel{},
		&models.SubscriptionModel{},
		&models.TenantModel{},
		&models.TenantUserModel{},
		&models.ChannelAccountModel{},
		&models.OutboxEventModel{},
		&models.ProcessedWebhookEventModel{},
	)
	require.NoError(t, err)
	return db
}

func newPaidSubscription(t *testing.T, tenantID uint, providerID string, mutate func(p *subscription.SubscriptionParams)) *subscription.Subscription {
	t.Helper()
	p := subscription.SubscriptionParams{
		ID:                     1,
		TenantID:               tenantID,
		PlanID:                 2,
		ProviderSubscriptionID: providerID,
		Status:                 vo.StatusActive,
		CurrentPeriodStart:     testNow.AddDate(0, 0, -10),
		CurrentPeriodEnd:       testNow.AddDate(0, 0, 20),
		Amount:                 4900,
		Currency:               "usd",
		Version:                1,
		CreatedAt:              testNow,
		UpdatedAt:              testNow,
	}
	if mutate != nil {
		mutate(&p)
	}
	s, err := subscription.ReconstructSubscription(p)
	require.NoError(t, err)
	// Create assigns the real ID
	s.SetID(0)
	return s
}

func ptr(t time.Time) *time.Time {
	return &t
}
