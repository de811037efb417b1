package models

// BuildingProfile holds the structured building attributes parsed from user
// messages. Every field is a pointer: nil means "not known yet". The caller
// keeps the profile between turns and feeds it back on the next request.
type BuildingProfile struct {
	District            *string  `json:"district"`
	BuildingType        *string  `json:"building_type"`
	IsNewBuilding       *bool    `json:"is_new_building"`
	FloorAreaM2         *float64 `json:"floor_area_m2"`
	ElectricalDemandKVA *float64 `json:"electrical_demand_kva"`
	CoolingCapacityKWth *float64 `json:"cooling_capacity_kwth"`
	HeatingCapacityKWth *float64 `json:"heating_capacity_kwth"`
	WWRPercent          *float64 `json:"wwr_percent"`
	SkylightPercent     *float64 `json:"skylight_percent"`
	GlazingVLT          *float64 `json:"glazing_vlt"`
	HVACType            *string  `json:"hvac_type"`
	OperatingHours      *string  `json:"operating_hours"`
}

// Merge copies every non-nil field of other into p. Known values are only
// replaced by new non-nil values, never cleared back to unknown.
func (p *BuildingProfile) Merge(other *BuildingProfile) {
	if other == nil {
		return
	}
	if other.District != nil {
		p.District = other.District
	}
	if other.BuildingType != nil {
		p.BuildingType = other.BuildingType
	}
	if other.IsNewBuilding != nil {
		p.IsNewBuilding = other.IsNewBuilding
	}
	if other.FloorAreaM2 != nil {
		p.FloorAreaM2 = other.FloorAreaM2
	}
	if other.ElectricalDemandKVA != nil {
		p.ElectricalDemandKVA = other.ElectricalDemandKVA
	}
	if other.CoolingCapacityKWth != nil {
		p.CoolingCapacityKWth = other.CoolingCapacityKWth
	}
	if other.HeatingCapacityKWth != nil {
		p.HeatingCapacityKWth = other.HeatingCapacityKWth
	}
	if other.WWRPercent != nil {
		p.WWRPercent = other.WWRPercent
	}
	if other.SkylightPercent != nil {
		p.SkylightPercent = other.SkylightPercent
	}
	if other.GlazingVLT != nil {
		p.GlazingVLT = other.GlazingVLT
	}
	if other.HVACType != nil {
		p.HVACType = other.HVACType
	}
	if other.OperatingHours != nil {
		p.OperatingHours = other.OperatingHours
	}
}

// Clone returns a copy of the profile so a pipeline run never mutates the
// caller's prior profile in place.
func (p *BuildingProfile) Clone() *BuildingProfile {
	if p == nil {
		return &BuildingProfile{}
	}
	out := &BuildingProfile{}
	out.Merge(p)
	return out
}
