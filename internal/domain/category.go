package domain

// Category tags a ticket and scopes a specialist's expertise.
type Category string

const (
	CategoryNetwork  Category = "Network"
	CategoryHardware Category = "Hardware"
	CategorySoftware Category = "Software"
	CategoryAccess   Category = "Access"

	// CategoryOther is the catch-all specialization tried when no
	// exact-category specialist can take a ticket.
	CategoryOther Category = "Other"
)

var knownCategories = map[Category]struct{}{
	CategoryNetwork:  {},
	CategoryHardware: {},
	CategorySoftware: {},
	CategoryAccess:   {},
	CategoryOther:    {},
}

// ValidCategory reports whether c belongs to the closed category set.
func ValidCategory(c Category) bool {
	_, ok := knownCategories[c]
	return ok
}
