package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Chat is the GORM model for chats table
type Chat struct {
	ID        string    `gorm:"primaryKey;type:varchar(255)" json:"id"`
	Title     *string   `gorm:"type:varchar(255)" json:"title,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	Messages  []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName specifies the table name
func (Chat) TableName() string {
	return "chats"
}

// Message is the GORM model for messages table
// ID is a ULID so equal timestamps still sort by insertion order
type Message struct {
	ID              string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ChatID          string    `gorm:"type:varchar(255);not null;index" json:"chat_id"`
	Role            string    `gorm:"type:varchar(20);not null" json:"role"` // system | user | assistant | tool
	Content         string    `gorm:"type:text;not null" json:"content"`
	ParentMessageID *string   `gorm:"type:varchar(255)" json:"parent_message_id,omitempty"`
	Metadata        Metadata  `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt       time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name
func (Message) TableName() string {
	return "messages"
}

// Metadata is free-form JSON attached to a message
type Metadata map[string]interface{}

// Scan implements sql.Scanner interface
func (m *Metadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Value implements driver.Valuer interface
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// All returns every model of the conversation store, in migration order
func All() []interface{} {
	return []interface{}{&Chat{}, &Message{}}
}
