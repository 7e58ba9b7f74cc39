package service

import (
	"testing"

	"github.com/iliyamo/car-marketplace/internal/model"
)

func TestAuthorize(t *testing.T) {
	super := &model.Admin{ID: 1, Permissions: model.Permissions{SuperAdmin: true}}
	lister := &model.Admin{ID: 2, Permissions: model.Permissions{ListingManager: true}}

	tests := []struct {
		name  string
		admin *model.Admin
		perm  model.Permission
		ok    bool
	}{
		{"super passes without flag", super, model.PermUserManager, true},
		{"super passes super check", super, model.PermSuperAdmin, true},
		{"flag holder passes", lister, model.PermListingManager, true},
		{"missing flag", lister, model.PermUserManager, false},
		{"non super cannot claim super", lister, model.PermSuperAdmin, false},
		{"nil admin", nil, model.PermListingManager, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.admin, tt.perm)
			if (err == nil) != tt.ok {
				t.Fatalf("Authorize = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestCanDeleteCar(t *testing.T) {
	support := &model.Admin{Permissions: model.Permissions{SupportManager: true}}
	lister := &model.Admin{Permissions: model.Permissions{ListingManager: true}}

	if !CanDeleteCar(5, 5, nil) {
		t.Error("owner must be able to delete")
	}
	if CanDeleteCar(5, 6, nil) || CanDeleteCar(5, 0, nil) {
		t.Error("non owner must not delete")
	}
	if !CanDeleteCar(5, 0, lister) {
		t.Error("listing manager must be able to delete")
	}
	if CanDeleteCar(5, 0, support) {
		t.Error("support manager must not delete listings")
	}
}
