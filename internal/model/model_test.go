package model

import (
	"encoding/json"
	"testing"
)

func TestDeriveLifecycle(t *testing.T) {
	tests := []struct {
		name     string
		draft    bool
		approval string
		status   string
		want     Lifecycle
	}{
		{"draft wins", true, ApprovalApproved, StatusSold, LifecycleDraft},
		{"sold", false, ApprovalApproved, StatusSold, LifecycleSold},
		{"approved", false, ApprovalApproved, StatusUnsold, LifecycleApproved},
		{"rejected", false, ApprovalRejected, StatusUnsold, LifecycleRejected},
		{"pending", false, ApprovalPending, StatusUnsold, LifecyclePending},
		{"unknown approval", false, "weird", "", LifecyclePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveLifecycle(tt.draft, tt.approval, tt.status); got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestLifecycleColumnsRoundTrip(t *testing.T) {
	for _, l := range []Lifecycle{LifecycleDraft, LifecyclePending, LifecycleApproved, LifecycleRejected, LifecycleSold} {
		d, a, s := l.Columns()
		if got := DeriveLifecycle(d, a, s); got != l {
			t.Fatalf("%s encodes to (%v,%s,%s) which derives %s", l, d, a, s, got)
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	tests := []struct {
		from, to Lifecycle
		ok       bool
	}{
		{LifecycleDraft, LifecyclePending, true},
		{LifecycleDraft, LifecycleApproved, false},
		{LifecyclePending, LifecycleApproved, true},
		{LifecyclePending, LifecycleRejected, true},
		{LifecycleApproved, LifecycleApproved, false},
		{LifecycleRejected, LifecycleApproved, false},
		{LifecycleApproved, LifecycleSold, true},
		{LifecycleApproved, LifecyclePending, false},
		{LifecycleRejected, LifecyclePending, true},
		{LifecyclePending, LifecycleSold, false},
		{LifecycleSold, LifecyclePending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestFlexStringAcceptsNumbersAndArrays(t *testing.T) {
	var in CarInput
	body := `{"price": 25000.5, "kilometers": "1200", "extra_features": ["Sunroof"], "draft": true, "make": null}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatal(err)
	}
	if in.Get("price") != "25000.5" || in.Get("kilometers") != "1200" {
		t.Fatalf("unexpected numeric parse: %q %q", in.Get("price"), in.Get("kilometers"))
	}
	if in.Get("extra_features") != `["Sunroof"]` {
		t.Fatalf("expected raw array text, got %q", in.Get("extra_features"))
	}
	if in.Draft == nil || !*in.Draft {
		t.Fatal("expected draft=true")
	}
	if in.Model != nil {
		t.Fatal("expected untouched field to stay nil")
	}
}

func TestCarJSONIncludesLifecycle(t *testing.T) {
	b, err := json.Marshal(Car{ID: 1, Approval: ApprovalApproved, Status: StatusSold})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if m["lifecycle"] != "sold" || m["id"].(float64) != 1 {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int64
	}{
		{0, 10, 0}, {1, 10, 1}, {10, 10, 1}, {11, 10, 2}, {95, 20, 5},
	}
	for _, tt := range tests {
		if got := NewPage(1, tt.limit, tt.total).TotalPages; got != tt.want {
			t.Errorf("total=%d limit=%d: got %d want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}
