package dto

import "github.com/shopspring/decimal"

// ── 活动模块 DTO ──

// CreateHuntRequest 创建活动请求
type CreateHuntRequest struct {
	Title              string           `json:"title"               binding:"required,min=2,max=200"`
	Description        string           `json:"description"         binding:"max=5000"`
	LocationName       string           `json:"location_name"       binding:"max=200"`
	Latitude           *float64         `json:"latitude"            binding:"omitempty,min=-90,max=90"`
	Longitude          *float64         `json:"longitude"           binding:"omitempty,min=-180,max=180"`
	StartDate          string           `json:"start_date"          binding:"required"` // RFC3339
	EndDate            string           `json:"end_date"            binding:"required"` // RFC3339
	Timezone           string           `json:"timezone"            binding:"required"` // IANA，如 "Atlantic/Reykjavik"
	IsPublic           bool             `json:"is_public"`
	HideFromPublic     bool             `json:"hide_from_public"`
	IsPaid             bool             `json:"is_paid"`
	Price              *decimal.Decimal `json:"price"`
	CancellationPolicy string           `json:"cancellation_policy" binding:"max=5000"`
	Capacity           *int             `json:"capacity"            binding:"omitempty,min=1"`
	AllowWaitlist      bool             `json:"allow_waitlist"`
	MinParticipants    *int             `json:"min_participants"    binding:"omitempty,min=1"`
}

// UpdateHuntRequest 修改活动设置请求（字段为 nil 表示不修改）
// capacity 与 min_participants 传 0 表示清除（不限人数 / 不设成团人数）
type UpdateHuntRequest struct {
	Title              *string          `json:"title"               binding:"omitempty,min=2,max=200"`
	Description        *string          `json:"description"         binding:"omitempty,max=5000"`
	LocationName       *string          `json:"location_name"       binding:"omitempty,max=200"`
	Latitude           *float64         `json:"latitude"            binding:"omitempty,min=-90,max=90"`
	Longitude          *float64         `json:"longitude"           binding:"omitempty,min=-180,max=180"`
	StartDate          *string          `json:"start_date"`
	EndDate            *string          `json:"end_date"`
	Timezone           *string          `json:"timezone"`
	IsPublic           *bool            `json:"is_public"`
	HideFromPublic     *bool            `json:"hide_from_public"`
	IsPaid             *bool            `json:"is_paid"`
	Price              *decimal.Decimal `json:"price"`
	CancellationPolicy *string          `json:"cancellation_policy" binding:"omitempty,max=5000"`
	Capacity           *int             `json:"capacity"            binding:"omitempty,min=0"`
	AllowWaitlist      *bool            `json:"allow_waitlist"`
	MinParticipants    *int             `json:"min_participants"    binding:"omitempty,min=0"`
	Version            int              `json:"version"             binding:"required,min=1"`
}

// HuntListRequest 公开活动列表查询参数
type HuntListRequest struct {
	PaginationRequest
}

// HuntResponse 活动信息响应
type HuntResponse struct {
	ID                 string           `json:"id"`
	OwnerID            string           `json:"owner_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	LocationName       string           `json:"location_name,omitempty"`
	Latitude           *float64         `json:"latitude,omitempty"`
	Longitude          *float64         `json:"longitude,omitempty"`
	StartDate          string           `json:"start_date"`
	EndDate            string           `json:"end_date"`
	Timezone           string           `json:"timezone"`
	IsPublic           bool             `json:"is_public"`
	HideFromPublic     bool             `json:"hide_from_public"`
	IsPaid             bool             `json:"is_paid"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	CancellationPolicy string           `json:"cancellation_policy,omitempty"`
	Capacity           *int             `json:"capacity,omitempty"`
	AllowWaitlist      bool             `json:"allow_waitlist"`
	MinParticipants    *int             `json:"min_participants,omitempty"`
	ConfirmedCount     int64            `json:"confirmed_count"`
	RemainingSpots     *int             `json:"remaining_spots,omitempty"` // 不限人数时省略
	Version            int              `json:"version"`
	CreatedAt          string           `json:"created_at"`
	UpdatedAt          string           `json:"updated_at"`
}

// UpdateHuntResponse 修改设置结果，附带因设置变更而自动流转的参与者
type UpdateHuntResponse struct {
	Hunt         HuntResponse `json:"hunt"`
	Promoted     []string     `json:"promoted,omitempty"`      // 候补转正的用户
	Accepted     []string     `json:"accepted,omitempty"`      // 转为公开后自动通过的用户
	Waitlisted   []string     `json:"waitlisted,omitempty"`    // 转为公开后进入候补的用户
	StillPending []string     `json:"still_pending,omitempty"` // 名额不足且未开启候补，仍待审核
}
