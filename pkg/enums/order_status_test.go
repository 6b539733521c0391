package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPendingStockRolledback, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusFailed, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusFailed, false},
		{OrderStatusFailed, OrderStatusFailedStockRolledback, true},
		{OrderStatusFailed, OrderStatusProcessing, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusFailedStockRolledback, OrderStatusFailed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: expected allowed=%v got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestOrderStatusTerminalStates(t *testing.T) {
	terminal := []OrderStatus{
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusPendingStockRolledback,
		OrderStatusFailedStockRolledback,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusFailed} {
		if s.IsTerminal() {
			t.Fatalf("expected %s to allow further transitions", s)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, err := ParseOrderStatus("pending"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOrderStatus("complete"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	if !PaymentStatusPending.CanTransition(PaymentStatusCaptured) {
		t.Fatalf("pending -> captured must be allowed")
	}
	if !PaymentStatusPending.CanTransition(PaymentStatusFailed) {
		t.Fatalf("pending -> failed must be allowed")
	}
	if PaymentStatusCaptured.CanTransition(PaymentStatusFailed) {
		t.Fatalf("captured is terminal")
	}
	if PaymentStatusFailed.CanTransition(PaymentStatusCaptured) {
		t.Fatalf("failed is terminal")
	}
	if !PaymentStatusCaptured.IsTerminal() || !PaymentStatusFailed.IsTerminal() {
		t.Fatalf("captured/failed must report terminal")
	}
}
