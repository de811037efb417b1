package services

import (
	"fmt"
	"strings"

	"eebc-advisor/models"
)

// EEBC applicability thresholds. Meeting any single one makes the code
// mandatory; the rule is disjunctive, never conjunctive.
const (
	FloorAreaThresholdM2        = 1000.0 // inclusive
	ElectricalDemandThresholdVA = 500.0  // kVA, inclusive
	CoolingThresholdKWth        = 350.0  // strict
	HeatingThresholdKWth        = 250.0  // strict
)

// EvaluateApplicability decides whether the EEBC applies to the profiled
// building. Pure function: no I/O, no model calls, and the reason string is
// a reproducible function of the profile.
func EvaluateApplicability(profile *models.BuildingProfile) models.Verdict {
	knownAny := false
	applies := false
	var met []string
	var reasons []string

	if profile.FloorAreaM2 != nil {
		knownAny = true
		if *profile.FloorAreaM2 >= FloorAreaThresholdM2 {
			applies = true
			met = append(met, fmt.Sprintf("Floor area %g m² meets the 1000 m² threshold.", *profile.FloorAreaM2))
		} else {
			reasons = append(reasons, fmt.Sprintf("Floor area %g m² < 1000 m².", *profile.FloorAreaM2))
		}
	} else {
		reasons = append(reasons, "Floor area missing (m²).")
	}

	if profile.ElectricalDemandKVA != nil {
		knownAny = true
		if *profile.ElectricalDemandKVA >= ElectricalDemandThresholdVA {
			applies = true
			met = append(met, fmt.Sprintf("Electrical demand %g kVA meets the 500 kVA threshold.", *profile.ElectricalDemandKVA))
		} else {
			reasons = append(reasons, fmt.Sprintf("Electrical demand %g kVA < 500 kVA.", *profile.ElectricalDemandKVA))
		}
	} else {
		reasons = append(reasons, "Electrical demand missing (kVA).")
	}

	if profile.CoolingCapacityKWth != nil {
		knownAny = true
		if *profile.CoolingCapacityKWth > CoolingThresholdKWth {
			applies = true
			met = append(met, fmt.Sprintf("Cooling %g kWth exceeds the 350 kWth threshold.", *profile.CoolingCapacityKWth))
		} else {
			reasons = append(reasons, fmt.Sprintf("Cooling %g kWth is not > 350 kWth.", *profile.CoolingCapacityKWth))
		}
	} else {
		reasons = append(reasons, "Cooling capacity missing (kWth).")
	}

	if profile.HeatingCapacityKWth != nil {
		knownAny = true
		if *profile.HeatingCapacityKWth > HeatingThresholdKWth {
			applies = true
			met = append(met, fmt.Sprintf("Heating %g kWth exceeds the 250 kWth threshold.", *profile.HeatingCapacityKWth))
		} else {
			reasons = append(reasons, fmt.Sprintf("Heating %g kWth is not > 250 kWth.", *profile.HeatingCapacityKWth))
		}
	} else {
		reasons = append(reasons, "Heating capacity missing (kWth).")
	}

	if !knownAny {
		return models.Verdict{
			Applies: models.ApplicabilityUnknown,
			Reason:  "Need at least floor area (m²) or electrical demand (kVA) or HVAC capacities (kWth).",
		}
	}

	if applies {
		return models.Verdict{
			Applies: models.ApplicabilityYes,
			Reason:  "EEBC likely applies because at least one threshold is met. " + strings.Join(met, " "),
		}
	}

	return models.Verdict{
		Applies: models.ApplicabilityNo,
		Reason:  "EEBC likely not mandatory based on provided values. " + strings.Join(reasons, " "),
	}
}
