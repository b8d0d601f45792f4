package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Hunt 极光观测团活动表，对应 hunts
type Hunt struct {
	HuntID             string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"hunt_id"`
	OwnerID            string           `gorm:"type:varchar(64);not null"                      json:"owner_id"`
	Title              string           `gorm:"type:varchar(200);not null"                     json:"title"`
	Description        string           `gorm:"type:text"                                      json:"description,omitempty"`
	LocationName       string           `gorm:"type:varchar(200)"                              json:"location_name,omitempty"`
	Latitude           *float64         `json:"latitude,omitempty"`
	Longitude          *float64         `json:"longitude,omitempty"`
	StartDate          time.Time        `gorm:"not null"                                       json:"start_date"`
	EndDate            time.Time        `gorm:"not null"                                       json:"end_date"`
	Timezone           string           `gorm:"type:varchar(64);not null"                      json:"timezone"`
	IsPublic           bool             `gorm:"not null;default:true"                          json:"is_public"`
	HideFromPublic     bool             `gorm:"not null;default:false"                         json:"hide_from_public"` // 仅私密活动可隐藏，只能通过直链访问
	IsPaid             bool             `gorm:"not null;default:false"                         json:"is_paid"`
	Price              *decimal.Decimal `gorm:"type:numeric(12,2)"                             json:"price,omitempty"`
	CancellationPolicy string           `gorm:"type:text"                                      json:"cancellation_policy,omitempty"`
	Capacity           *int             `json:"capacity,omitempty"` // nil = 不限人数
	AllowWaitlist      bool             `gorm:"not null;default:false"                         json:"allow_waitlist"`
	MinParticipants    *int             `json:"min_participants,omitempty"` // 成团最低人数，有人付款后冻结
	VersionedModel
}

// TableName 指定表名
func (Hunt) TableName() string { return "hunts" }

// HasEnded 活动是否已结束
func (h *Hunt) HasEnded(now time.Time) bool {
	return !h.EndDate.After(now)
}

// HasStarted 活动是否已开始
func (h *Hunt) HasStarted(now time.Time) bool {
	return !h.StartDate.After(now)
}

// RemainingSpots 计算剩余名额；返回 -1 表示不限
func (h *Hunt) RemainingSpots(confirmed int64) int {
	if h.Capacity == nil {
		return -1
	}
	left := *h.Capacity - int(confirmed)
	if left < 0 {
		return 0
	}
	return left
}

// HasRoom 是否还有空余名额
func (h *Hunt) HasRoom(confirmed int64) bool {
	return h.RemainingSpots(confirmed) != 0
}
