package resource

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"compress-service/ddd/infrastructure/database/dao"
	"compress-service/pkg/config"
	"compress-service/pkg/logger"
	"compress-service/pkg/manager"
)

var (
	mysqlResourceOnce sync.Once
	mysqlSingleton    *MySqlResource
)

// MySqlResource 任务历史库连接
type MySqlResource struct {
	db *gorm.DB
}

// DefaultMysqlResource 获取MySQL资源单例
func DefaultMysqlResource() *MySqlResource {
	mysqlResourceOnce.Do(func() {
		mysqlSingleton = &MySqlResource{}
	})
	return mysqlSingleton
}

// MustOpen 数据库未启用时不建立连接，MainDB 返回 nil
func (r *MySqlResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MySqlResource")
	}
	if !cfg.Database.Enabled || r.db != nil {
		return
	}

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect mysql: %v", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to get sql.DB: %v", err))
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	lifetime := cfg.Database.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	if cfg.Database.AutoMigrate {
		if err := dao.AutoMigrate(db); err != nil {
			panic(fmt.Sprintf("failed to migrate mysql schema: %v", err))
		}
	}

	r.db = db
	logger.Info("MySQL resource initialized", map[string]interface{}{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Database,
	})
}

// MainDB 主库
func (r *MySqlResource) MainDB() *gorm.DB {
	return r.db
}

func (r *MySqlResource) Close() {
	if r.db == nil {
		return
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

type MySqlResourcePlugin struct{}

func (p *MySqlResourcePlugin) Name() string {
	return "mysql"
}

func (p *MySqlResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMysqlResource()
}
