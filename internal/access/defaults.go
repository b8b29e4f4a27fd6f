package access

// DefaultPagePermissions maps each protected page to the permissions that
// grant access. Admin tags are listed explicitly per page; the evaluator
// applies no implicit widening.
func DefaultPagePermissions() map[string][]Permission {
	return map[string][]Permission{
		"/resubmit":     {PermissionAdmin, PermissionResubmit},
		"/formoverview": {PermissionAdmin, PermissionFormOverview},
		"/sport": {
			PermissionSportAdmin, PermissionSport,
			PermissionSP1, PermissionSP2, PermissionSP3, PermissionSP4,
			PermissionSP5, PermissionSP6, PermissionSP7,
		},
	}
}

// DefaultNav is the site navigation in rendering order.
func DefaultNav() []NavItem {
	return []NavItem{
		{
			URL:         "/resubmit",
			Title:       "Opnieuw inzenden",
			Description: "Formulieren opnieuw inzenden.",
			Label:       "Formulieren opnieuw inzenden",
			Icon:        "mdi-account",
		},
		{
			URL:         "/formoverview",
			Title:       "Formulieroverzichten",
			Description: "Formulierenoverzichten maken en downloaden.",
			Label:       "Formulieroverzichten",
			Icon:        "mdi-account",
		},
		{
			URL:         "/sport",
			Title:       "Sportactiviteiten",
			Description: "Overzichten van aanmeldingen sportactiviteiten.",
			Label:       "Sportactiviteiten",
			Icon:        "mdi-account",
		},
	}
}
