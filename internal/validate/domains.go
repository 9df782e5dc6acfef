package validate

// DomainRange bounds the feature-ID space of one spatial domain. Each
// domain's reach IDs occupy a known inclusive band of the NHDPlus COMID
// space; a sampled ID outside the band means the file was built for a
// different domain or mangled in transit.
type DomainRange struct {
	Name         string
	MinFeatureID int64
	MaxFeatureID int64
}

// Contains reports whether id falls inside the inclusive range.
func (r DomainRange) Contains(id int64) bool {
	return id >= r.MinFeatureID && id <= r.MaxFeatureID
}

// BuiltinDomains returns the compiled-in domain table. It is the default;
// deployments that maintain ranges in the store load them at startup
// instead.
func BuiltinDomains() []DomainRange {
	return []DomainRange{
		{Name: "conus", MinFeatureID: 101, MaxFeatureID: 1_180_000_000},
		{Name: "hawaii", MinFeatureID: 800_000_000, MaxFeatureID: 899_999_999},
		{Name: "puertorico", MinFeatureID: 900_000_000, MaxFeatureID: 999_999_999},
	}
}
