package entry

import "time"

type Entry struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"column:user_id;not null;index"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description"`
	Quantity    int64     `gorm:"column:quantity;not null"`
	Status      string    `gorm:"column:status;type:varchar(16);not null"`
	EntryDate   time.Time `gorm:"column:entry_date;type:date"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Entry) TableName() string {
	return "entries"
}
