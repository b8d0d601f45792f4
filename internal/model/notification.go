package model

import "time"

// 通知类型
const (
	NotifyRequestApproved  = "hunt_request_approved"
	NotifyRequestRejected  = "hunt_request_rejected"
	NotifyRequestExpired   = "hunt_request_expired"
	NotifyRequestReceived  = "hunt_request_received"
	NotifyAutoAccepted     = "hunt_auto_accepted"
	NotifyWaitlisted       = "hunt_waitlisted"
	NotifyWaitlistPromoted = "hunt_waitlist_promoted"
	NotifyPaymentMarked    = "hunt_payment_marked"
	NotifyPaymentConfirmed = "hunt_payment_confirmed"
	NotifyHuntCancelled    = "hunt_cancelled"
)

// Notification 通知消息表，对应 notifications
// 聊天与推送不在本服务范围内，这里只作为通知落地表
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string     `gorm:"type:varchar(64);not null"                      json:"user_id"`
	Type           string     `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string     `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool       `gorm:"not null;default:false"                         json:"is_read"`
	RelatedType    *string    `gorm:"type:varchar(20)"                               json:"related_type,omitempty"` // hunt
	RelatedID      *string    `gorm:"type:uuid"                                      json:"related_id,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
