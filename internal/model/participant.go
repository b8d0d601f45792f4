package model

import "time"

// Participant 活动参与记录表，对应 hunt_participants，(hunt_id, user_id) 唯一
type Participant struct {
	ParticipantID    string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"participant_id"`
	HuntID           string            `gorm:"type:uuid;not null"                             json:"hunt_id"`
	UserID           string            `gorm:"type:varchar(64);not null"                      json:"user_id"`
	Status           ParticipantStatus `gorm:"type:varchar(20);not null"                      json:"status"`
	PaymentStatus    PaymentStatus     `gorm:"type:varchar(20)"                               json:"payment_status,omitempty"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"` // 仅组织者确认收款时写入，是否已付款的唯一依据
	WaitlistPosition *int              `json:"waitlist_position,omitempty"`
	RejectionCount   int               `gorm:"not null;default:0"                             json:"rejection_count"`
	RequestExpiresAt *time.Time        `json:"request_expires_at,omitempty"`
	JoinedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"joined_at"`
	JoinCounted      bool              `gorm:"not null;default:false"                         json:"-"` // 已计入 hunts_joined，重复加入不再累加
	BaseModel

	// 关联
	Hunt *Hunt `gorm:"foreignKey:HuntID;references:HuntID" json:"hunt,omitempty"`
}

// TableName 指定表名
func (Participant) TableName() string { return "hunt_participants" }

// HasPaid 是否已完成付款（以 PaidAt 为准）
func (p *Participant) HasPaid() bool {
	return p.PaidAt != nil
}

// TransitionTo 按状态转换表变更参与状态
// 已付款的参与者只能保持 confirmed
func (p *Participant) TransitionTo(to ParticipantStatus) error {
	if p.HasPaid() && to != ParticipantConfirmed {
		return &TransitionError{Kind: "status", From: string(p.Status), To: string(to)}
	}
	if !p.Status.CanTransitionTo(to) {
		return &TransitionError{Kind: "status", From: string(p.Status), To: string(to)}
	}
	p.Status = to
	if to != ParticipantWaitlisted {
		p.WaitlistPosition = nil
	}
	if to != ParticipantPending {
		p.RequestExpiresAt = nil
	}
	return nil
}

// SetPaymentStatus 按付款状态转换表变更付款状态
func (p *Participant) SetPaymentStatus(to PaymentStatus) error {
	if !p.PaymentStatus.CanTransitionTo(to) {
		return &TransitionError{Kind: "payment", From: p.PaymentStatus.String(), To: to.String()}
	}
	p.PaymentStatus = to
	return nil
}
