package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// hunts / hunt_participants / notifications / user_profiles 的表结构
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable 记录已应用版本的表
const migrationsTable = "aurora_schema_migrations"

// RunMigrations 将活动相关表结构升级到嵌入的最新版本
// 上次迁移中途失败（dirty）时拒绝启动，需人工修复 aurora_schema_migrations 后重试
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	from, dirty, err := currentVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("活动库表结构处于 dirty 状态（version=%d），请人工修复后重试", from)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("活动库表结构已是最新", zap.Uint("version", from))
		return nil
	}
	if err != nil {
		return fmt.Errorf("升级活动库表结构失败: %w", err)
	}

	to, _, err := currentVersion(m)
	if err != nil {
		return err
	}
	logger.Info("活动库表结构升级完成", zap.Uint("from", from), zap.Uint("to", to))
	return nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("加载迁移文件失败: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("创建迁移驱动失败: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("初始化迁移实例失败: %w", err)
	}
	return m, nil
}

// currentVersion 空库返回 0
func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("读取迁移版本失败: %w", err)
	}
	return version, dirty, nil
}
