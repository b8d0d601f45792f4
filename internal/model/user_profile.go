package model

import "time"

// UserProfile 本地用户资料表，对应 user_profiles
// 账号与认证由外部身份服务负责，这里只保存统计缓存
type UserProfile struct {
	UserID      string    `gorm:"type:varchar(64);primaryKey"        json:"user_id"`
	HuntsJoined int       `gorm:"not null;default:0"                 json:"hunts_joined"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (UserProfile) TableName() string { return "user_profiles" }
