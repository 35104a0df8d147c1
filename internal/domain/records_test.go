package domain

import (
	"testing"
	"time"
)

func TestSalesChange(t *testing.T) {
	tests := []struct {
		current, previous, want float64
	}{
		{0, 0, 0},
		{100, 0, 100},
		{1500, 1000, 50},
		{50, 100, -50},
		{100, 300, -66.67},
		{200, 150, 33.33},
	}
	for _, tt := range tests {
		if got := SalesChange(tt.current, tt.previous); got != tt.want {
			t.Errorf("SalesChange(%v, %v): expected %v, got %v", tt.current, tt.previous, tt.want, got)
		}
	}
}

func TestPrincipalScopes(t *testing.T) {
	user := Principal{ID: "u1", Scope: "t1", Kind: KindUser}
	if user.TenantID() != "t1" || user.PatientID() != "" || user.IsPatient() {
		t.Errorf("unexpected user scopes: %+v", user)
	}
	patient := Principal{ID: "p1", Scope: "p1", Kind: KindPatient}
	if patient.PatientID() != "p1" || patient.TenantID() != "" || !patient.IsPatient() {
		t.Errorf("unexpected patient scopes: %+v", patient)
	}
}

func TestDispatchResultOK(t *testing.T) {
	for code, want := range map[int]bool{199: false, 200: true, 204: true, 299: true, 300: false, 500: false} {
		if got := (DispatchResult{StatusCode: code}).OK(); got != want {
			t.Errorf("status %d: expected %v, got %v", code, want, got)
		}
	}
}

func TestMonthWindow(t *testing.T) {
	from, to := MonthWindow(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	if !from.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected from: %v", from)
	}
	if !to.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected to: %v", to)
	}
}
