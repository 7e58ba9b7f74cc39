package service

import "github.com/iliyamo/car-marketplace/internal/model"

// Authorize is the single admin capability check. A super admin holds every
// capability; any other admin needs the named flag.
func Authorize(a *model.Admin, perm model.Permission) error {
	if a == nil {
		return ErrPermission
	}
	if a.Permissions.SuperAdmin {
		return nil
	}
	if perm == model.PermSuperAdmin || !a.Permissions.Has(perm) {
		return ErrPermission
	}
	return nil
}

// CanDeleteCar reports whether a user or admin may delete a listing owned
// by ownerID. Exactly one of userID or admin is set.
func CanDeleteCar(ownerID, userID uint64, admin *model.Admin) bool {
	if admin != nil {
		return Authorize(admin, model.PermListingManager) == nil
	}
	return userID != 0 && userID == ownerID
}
