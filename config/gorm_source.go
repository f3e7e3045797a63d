package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOptions 数据库表配置源选项
type GormOptions struct {
	Table   string        // 表名（默认 config_entries）
	Prefix  string        // 只读取以此开头的键（可选）
	Timeout time.Duration // 查询超时时间（默认 5 秒）
}

// ConfigEntry 配置表的一行，Key 形如 /app/beans 或 app:beans
type ConfigEntry struct {
	Key   string `gorm:"primaryKey;size:255"`
	Value string `gorm:"type:text"`
}

// TableName 默认表名
func (ConfigEntry) TableName() string {
	return "config_entries"
}

// GormSource 从数据库表读取配置，每行的值是 JSON、YAML 或普通字符串
type GormSource struct {
	Options GormOptions
	DB      *gorm.DB
}

func (s *GormSource) Name() string {
	return fmt.Sprintf("Gorm(%s)", s.table())
}

func (s *GormSource) table() string {
	if s.Options.Table != "" {
		return s.Options.Table
	}
	return ConfigEntry{}.TableName()
}

func (s *GormSource) Load() (map[string]any, error) {
	if s.DB == nil {
		return nil, errors.New("gorm source requires a database")
	}

	timeout := s.Options.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	query := s.DB.WithContext(ctx).Table(s.table())
	if s.Options.Prefix != "" {
		query = query.Where(clause.Like{Column: clause.Column{Name: "key"}, Value: s.Options.Prefix + "%"})
	}

	var rows []ConfigEntry
	if err := query.Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query config table %s: %w", s.table(), err)
	}

	result := make(map[string]any)
	for _, row := range rows {
		if path := keyPath(row.Key, s.Options.Prefix); path != "" {
			setNestedValue(result, path, decodeDocument([]byte(row.Value)))
		}
	}
	return result, nil
}
