package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ErrIllegalTransition 非法状态转换
var ErrIllegalTransition = errors.New("非法的状态转换")

// TransitionError 描述一次被拒绝的状态转换
type TransitionError struct {
	Kind string // status | payment
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s 状态不能从 %q 变更为 %q", e.Kind, e.From, e.To)
}

// Unwrap 使 errors.Is(err, ErrIllegalTransition) 成立
func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// ── 参与状态 ──

// ParticipantStatus 参与状态
type ParticipantStatus string

const (
	ParticipantPending    ParticipantStatus = "pending"
	ParticipantConfirmed  ParticipantStatus = "confirmed"
	ParticipantWaitlisted ParticipantStatus = "waitlisted"
	ParticipantCancelled  ParticipantStatus = "cancelled"
)

// participantTransitions 参与状态转换表（from → 允许的 to）
var participantTransitions = map[ParticipantStatus][]ParticipantStatus{
	ParticipantPending:    {ParticipantConfirmed, ParticipantWaitlisted, ParticipantCancelled},
	ParticipantWaitlisted: {ParticipantConfirmed, ParticipantCancelled},
	ParticipantConfirmed:  {ParticipantCancelled},
	// 取消后允许重新申请，同一行记录复用
	ParticipantCancelled: {ParticipantPending, ParticipantConfirmed, ParticipantWaitlisted},
}

// CanTransitionTo 是否允许转换到目标状态
func (s ParticipantStatus) CanTransitionTo(to ParticipantStatus) bool {
	for _, allowed := range participantTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsActive 是否为有效参与（未取消）
func (s ParticipantStatus) IsActive() bool {
	return s == ParticipantPending || s == ParticipantConfirmed || s == ParticipantWaitlisted
}

// Valid 是否为已定义的状态
func (s ParticipantStatus) Valid() bool {
	_, ok := participantTransitions[s]
	return ok
}

// ── 付款状态 ──

// PaymentStatus 付款状态；空字符串对应数据库 NULL（免费活动或组织者本人）
type PaymentStatus string

const (
	PaymentNone       PaymentStatus = ""
	PaymentPending    PaymentStatus = "pending"
	PaymentMarkedPaid PaymentStatus = "marked_paid"
	PaymentConfirmed  PaymentStatus = "confirmed"
)

// paymentTransitions 付款状态转换表
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentNone:       {PaymentPending},
	PaymentPending:    {PaymentMarkedPaid, PaymentConfirmed, PaymentNone},
	PaymentMarkedPaid: {PaymentConfirmed, PaymentPending, PaymentNone},
	PaymentConfirmed:  {},
}

// CanTransitionTo 是否允许转换到目标付款状态
func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InFlight 付款流程进行中（待付款或已标记付款待确认）
func (s PaymentStatus) InFlight() bool {
	return s == PaymentPending || s == PaymentMarkedPaid
}

func (s PaymentStatus) String() string {
	if s == PaymentNone {
		return "null"
	}
	return string(s)
}

// Scan 将 NULL 读取为 PaymentNone
func (s *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = PaymentNone
	case []byte:
		*s = PaymentStatus(v)
	case string:
		*s = PaymentStatus(v)
	default:
		return fmt.Errorf("PaymentStatus.Scan: unsupported type %T", src)
	}
	return nil
}

// Value 将 PaymentNone 写为 NULL
func (s PaymentStatus) Value() (driver.Value, error) {
	if s == PaymentNone {
		return nil, nil
	}
	return string(s), nil
}
