// Package access implements the permission based page and navigation
// access control layer.
package access

// Permission is a capability tag granting access to one or more pages.
type Permission string

const (
	PermissionAdmin        Permission = "ADMIN"
	PermissionResubmit     Permission = "RESUBMIT"
	PermissionFormOverview Permission = "FORMOVERVIEW"
	PermissionSport        Permission = "SPORT"
	PermissionSportAdmin   Permission = "SPORTADMIN"

	// Sport region permissions scope the sport pages to one city district.
	PermissionSP1 Permission = "SP1"
	PermissionSP2 Permission = "SP2"
	PermissionSP3 Permission = "SP3"
	PermissionSP4 Permission = "SP4"
	PermissionSP5 Permission = "SP5"
	PermissionSP6 Permission = "SP6"
	PermissionSP7 Permission = "SP7"
)

func (p Permission) String() string {
	return string(p)
}

var sportRegionDescriptions = map[Permission]string{
	PermissionSP1: "Lindenholt",
	PermissionSP2: "Dukenburg",
	PermissionSP3: "Midden en Zuid",
	PermissionSP4: "Noord",
	PermissionSP5: "Centrum",
	PermissionSP6: "Oost",
	PermissionSP7: "West",
}

// SportRegions returns all sport region permissions in display order.
func SportRegions() []Permission {
	return []Permission{
		PermissionSP1, PermissionSP2, PermissionSP3, PermissionSP4,
		PermissionSP5, PermissionSP6, PermissionSP7,
	}
}

// IsSportRegion reports whether the permission is a sport region tag.
func (p Permission) IsSportRegion() bool {
	_, ok := sportRegionDescriptions[p]

	return ok
}

// Description returns the display name for a sport region permission. It
// returns the raw tag for all other permissions.
func (p Permission) Description() string {
	if d, ok := sportRegionDescriptions[p]; ok {
		return d
	}

	return string(p)
}

// Intersects reports whether any permission in have is also present in want.
func Intersects(have, want []Permission) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}

	return false
}
