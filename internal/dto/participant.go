package dto

// ── 参与者模块 DTO ──

// ParticipantResponse 参与记录响应
type ParticipantResponse struct {
	ID               string  `json:"id"`
	HuntID           string  `json:"hunt_id"`
	UserID           string  `json:"user_id"`
	Status           string  `json:"status"`
	PaymentStatus    *string `json:"payment_status"` // 免费活动为 null
	PaidAt           *string `json:"paid_at,omitempty"`
	WaitlistPosition *int    `json:"waitlist_position,omitempty"`
	RejectionCount   int     `json:"rejection_count,omitempty"`
	RequestExpiresAt *string `json:"request_expires_at,omitempty"`
	JoinedAt         string  `json:"joined_at"`
	IsOwner          bool    `json:"is_owner"`
}

// ParticipantListRequest 参与者列表过滤参数
type ParticipantListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed waitlisted cancelled"`
}

// EligibilityResponse 当前用户能否申请加入
type EligibilityResponse struct {
	HuntID  string `json:"hunt_id"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// SweepResponse 过期申请清理结果
type SweepResponse struct {
	Expired int64 `json:"expired"`
}
