package models

// LocationType names a level of the geographic hierarchy.
type LocationType string

const (
	LocationNational LocationType = "national"
	LocationRegion   LocationType = "region"
	LocationCouncil  LocationType = "council"
	LocationWard     LocationType = "ward"
	LocationSchool   LocationType = "school"
)

// Valid reports whether the type is a known hierarchy level.
func (t LocationType) Valid() bool {
	switch t {
	case LocationNational, LocationRegion, LocationCouncil, LocationWard, LocationSchool:
		return true
	default:
		return false
	}
}

// NationalID is the location id used for the single national node.
const NationalID = "national"

// School is a registered centre with its resolved ward, council and region.
type School struct {
	ID             string `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	RegistrationNo string `db:"registration_no" json:"registration_no"`
	WardID         string `db:"ward_id" json:"ward_id"`
	WardName       string `db:"ward_name" json:"ward_name"`
	CouncilID      string `db:"council_id" json:"council_id"`
	CouncilName    string `db:"council_name" json:"council_name"`
	RegionID       string `db:"region_id" json:"region_id"`
	RegionName     string `db:"region_name" json:"region_name"`
}
