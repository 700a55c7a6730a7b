package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the gorm-backed TokenStore, ClientRegistry and UserDirectory.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New opens the database, migrates the schema and seeds default data.
func New(
	ctx context.Context,
	driver, dsn string,
	cfg *config.Config,
	log *zap.Logger,
) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("store")

	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log.Named("gorm"), logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if singleWriter(driver) {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.Client{},
		&models.Token{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if cfg == nil {
		cfg = &config.Config{}
	}
	s := &Store{db: db, logger: log}

	if err := s.seedData(ctx, cfg); err != nil {
		s.logger.Warn("failed to seed data", zap.Error(err))
	}

	return s, nil
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps gorm's not-found error onto the package sentinel.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
