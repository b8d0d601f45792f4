package model

import (
	"errors"
	"testing"
	"time"
)

func TestParticipantStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from, to ParticipantStatus
		want     bool
	}{
		{ParticipantPending, ParticipantConfirmed, true},
		{ParticipantPending, ParticipantWaitlisted, true},
		{ParticipantPending, ParticipantCancelled, true},
		{ParticipantWaitlisted, ParticipantConfirmed, true},
		{ParticipantWaitlisted, ParticipantPending, false},
		{ParticipantConfirmed, ParticipantPending, false},
		{ParticipantConfirmed, ParticipantWaitlisted, false},
		{ParticipantConfirmed, ParticipantCancelled, true},
		{ParticipantCancelled, ParticipantPending, true},
		{ParticipantCancelled, ParticipantConfirmed, true},
		{ParticipantConfirmed, ParticipantConfirmed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s → %s: 期望 %v，实际 %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestPaymentStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentNone, PaymentPending, true},
		{PaymentNone, PaymentConfirmed, false},
		{PaymentPending, PaymentMarkedPaid, true},
		{PaymentMarkedPaid, PaymentConfirmed, true},
		{PaymentConfirmed, PaymentPending, false},
		{PaymentConfirmed, PaymentNone, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s → %s: 期望 %v，实际 %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestParticipant_TransitionTo_ClearsQueueFields(t *testing.T) {
	pos := 3
	exp := time.Now().Add(time.Hour)
	p := &Participant{Status: ParticipantWaitlisted, WaitlistPosition: &pos, RequestExpiresAt: &exp}

	if err := p.TransitionTo(ParticipantConfirmed); err != nil {
		t.Fatalf("waitlisted → confirmed 应成功: %v", err)
	}
	if p.WaitlistPosition != nil {
		t.Error("确认后应清空候补序号")
	}
	if p.RequestExpiresAt != nil {
		t.Error("确认后应清空过期时间")
	}
}

func TestParticipant_TransitionTo_Illegal(t *testing.T) {
	p := &Participant{Status: ParticipantConfirmed}

	err := p.TransitionTo(ParticipantPending)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("期望 ErrIllegalTransition，实际: %v", err)
	}
	if p.Status != ParticipantConfirmed {
		t.Errorf("非法转换不应修改状态，实际 %s", p.Status)
	}
}

func TestParticipant_PaidCannotBeCancelled(t *testing.T) {
	now := time.Now()
	p := &Participant{Status: ParticipantConfirmed, PaymentStatus: PaymentConfirmed, PaidAt: &now}

	if err := p.TransitionTo(ParticipantCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("已付款参与者不应被取消，实际: %v", err)
	}
}

func TestPaymentStatus_ScanValue(t *testing.T) {
	var s PaymentStatus
	if err := s.Scan(nil); err != nil || s != PaymentNone {
		t.Fatalf("NULL 应读取为 PaymentNone，实际 %q err=%v", s, err)
	}
	if err := s.Scan([]byte("marked_paid")); err != nil || s != PaymentMarkedPaid {
		t.Fatalf("期望 marked_paid，实际 %q err=%v", s, err)
	}
	if err := s.Scan(42); err == nil {
		t.Error("不支持的类型应报错")
	}

	v, _ := PaymentNone.Value()
	if v != nil {
		t.Errorf("PaymentNone 应写为 NULL，实际 %v", v)
	}
	v, _ = PaymentConfirmed.Value()
	if v != "confirmed" {
		t.Errorf("期望 confirmed，实际 %v", v)
	}
}

func TestHunt_RemainingSpots(t *testing.T) {
	h := &Hunt{}
	if h.RemainingSpots(100) != -1 || !h.HasRoom(100) {
		t.Error("不限人数时应始终有空位")
	}

	capacity := 2
	h.Capacity = &capacity
	if got := h.RemainingSpots(1); got != 1 {
		t.Errorf("期望剩余 1，实际 %d", got)
	}
	if h.HasRoom(2) {
		t.Error("满员时不应有空位")
	}
	if got := h.RemainingSpots(5); got != 0 {
		t.Errorf("超员时剩余应为 0，实际 %d", got)
	}
}
