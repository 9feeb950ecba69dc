package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// AuditEntry is handed to the audit collaborator for every mutating write.
// The engine builds it; persistence belongs to the consumer of the audit queue.
type AuditEntry struct {
	EntryID       string    `json:"entry_id"`
	UserID        string    `json:"user_id"`
	EntityType    string    `json:"entity_type"` // tank_operation, calibration_table, daily_report, ledger_row
	EntityID      uint      `json:"entity_id"`
	OperationType string    `json:"operation_type"` // create, update, delete, close, replace
	OldValue      JSONMap   `json:"old_value,omitempty"`
	NewValue      JSONMap   `json:"new_value,omitempty"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// JSONMap 是一个自定义类型，用于处理 JSONB 数据
type JSONMap map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("类型断言失败：无法将数据转换为字节切片")
	}

	return json.Unmarshal(bytes, &j)
}

// ToJSONMap snapshots any JSON-serialisable value for audit old/new fields.
func ToJSONMap(v interface{}) JSONMap {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return JSONMap{"marshal_error": err.Error()}
	}
	var m JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return JSONMap{"value": string(raw)}
	}
	return m
}
