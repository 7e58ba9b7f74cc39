package service

import (
	"errors"
	"testing"

	"github.com/iliyamo/car-marketplace/internal/model"
)

func TestNormalizeNumbers(t *testing.T) {
	tests := []struct {
		in       string
		intOut   string
		priceOut string
	}{
		{"25000", "25000", "25000.0"},
		{" 12.7 ", "12", "12.7"},
		{"", "0", "0"},
		{"abc", "0", "0"},
		{"-0.5", "0", "-0.5"},
		{"NaN", "0", "0"},
		{"1e3", "1000", "1000.0"},
	}
	for _, tt := range tests {
		if got := NormalizeInt(tt.in); got != tt.intOut {
			t.Errorf("NormalizeInt(%q) = %q, want %q", tt.in, got, tt.intOut)
		}
		if got := NormalizePrice(tt.in); got != tt.priceOut {
			t.Errorf("NormalizePrice(%q) = %q, want %q", tt.in, got, tt.priceOut)
		}
	}
}

func TestNormalizeWarranty(t *testing.T) {
	if w := NormalizeWarranty("2026-02-28"); w == nil || *w != "2026-02-28" {
		t.Fatalf("valid date dropped: %v", w)
	}
	for _, bad := range []string{"", "28/02/2026", "2026-02-30", "soon"} {
		if w := NormalizeWarranty(bad); w != nil {
			t.Errorf("NormalizeWarranty(%q) = %q, want nil", bad, *w)
		}
	}
}

func TestNormalizeExtraFeatures(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "[]"},
		{"null", "[]"},
		{"Sunroof, Leather Seats", `["Sunroof", "Leather Seats"]`},
		{`["Sunroof","GPS"]`, `["Sunroof", "GPS"]`},
		{`["Seats, heated"]`, `["Seats, heated"]`},
		{"Sunroof, GPS ,Camera", `["Sunroof", "GPS", "Camera"]`},
		{"Sunroof", `["Sunroof"]`},
		{"5", `[5]`},
		{"2.50", `[2.50]`},
		{`"a,b"`, `["a", "b"]`},
		{"{broken", `["{broken"]`},
		{`[{"b":1,"a":[true,null]}]`, `[{"a": [true, null], "b": 1}]`},
		{"Caméra, <HUD>", `["Cam\u00e9ra", "<HUD>"]`},
	}
	for _, tt := range tests {
		if got := NormalizeExtraFeatures(tt.in); got != tt.want {
			t.Errorf("NormalizeExtraFeatures(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeApproval(t *testing.T) {
	tests := map[string]string{
		"Approved":   model.ApprovalApproved,
		`"rejected"`: model.ApprovalRejected,
		"maybe":      model.ApprovalPending,
		"":           model.ApprovalPending,
	}
	for in, want := range tests {
		if got := NormalizeApproval(in); got != want {
			t.Errorf("NormalizeApproval(%q) = %q, want %q", in, got, want)
		}
	}
}

func fullInput() *model.CarInput {
	in := &model.CarInput{}
	for _, f := range RequiredCarFields {
		in.Set(f, "x")
	}
	in.Set("warranty_date", "2027-01-01")
	in.Set("price", "15000")
	in.Set("car_image", "https://cdn.example.com/api/uploads/a/b/photo.png")
	return in
}

func TestValidateRequiredReportsFirstMissing(t *testing.T) {
	in := fullInput()
	in.Set("trim", "  ")
	in.Set("price", "")

	err := ValidateRequired(1, in.Get)
	var v *ValidationError
	if !errors.As(err, &v) || v.Field != "trim" || v.Msg != "trim is required" {
		t.Fatalf("expected trim to be reported first, got %v", err)
	}
	if err := ValidateRequired(0, fullInput().Get); err == nil || err.Error() != "user_id is required" {
		t.Fatalf("expected user_id error, got %v", err)
	}
	if err := ValidateRequired(1, fullInput().Get); err != nil {
		t.Fatalf("complete input rejected: %v", err)
	}
}

func TestBuildCarNormalises(t *testing.T) {
	in := fullInput()
	in.Set("kilometers", "12000.9")
	in.Set("warranty_date", "tomorrow")
	in.Set("extra_features", "GPS, Sunroof")

	c := BuildCar(7, in)
	if c.UserID != 7 || c.Kilometers != "12000" || c.Price != "15000.0" {
		t.Fatalf("numbers not normalised: %+v", c)
	}
	if c.WarrantyDate != nil {
		t.Fatalf("invalid warranty should be NULL, got %q", *c.WarrantyDate)
	}
	if c.ExtraFeatures != `["GPS", "Sunroof"]` {
		t.Fatalf("extra_features = %s", c.ExtraFeatures)
	}
	if c.CarImage != "/static/uploads/photo.png" {
		t.Fatalf("car_image = %s", c.CarImage)
	}
	if c.NumberOfSeats != "x" || c.Consumption != "" {
		t.Fatalf("unexpected passthrough values: %+v", c)
	}
}

func TestPatchAssignmentsOnlyProvided(t *testing.T) {
	in := &model.CarInput{Price: model.Flex("100"), WarrantyDate: model.Flex("nope")}
	set := PatchAssignments(in)
	if len(set) != 2 {
		t.Fatalf("expected 2 assignments, got %+v", set)
	}
	if set[0].Column != "warranty_date" || set[0].Value != nil {
		t.Errorf("warranty should be set NULL: %+v", set[0])
	}
	if set[1].Column != "price" || set[1].Value != "100.0" {
		t.Errorf("price not normalised: %+v", set[1])
	}
}
