package dictionary

import "time"

// Cutovers holds the historical transition dates between source systems.
// EpicGoLive marks the cutover from the legacy systems (Meditech, Centricity,
// GE Centricity Business) to Epic; ICD10Adoption marks the ICD-9 to ICD-10
// coding-standard transition. Both may be overridden by configuration but the
// comparison semantics are fixed: the range end is compared inclusively
// (end >= cutover), the range start strictly (start < cutover), so a
// single-day range still resolves a system on either side.
type Cutovers struct {
	EpicGoLive    time.Time
	ICD10Adoption time.Time
}

// DefaultCutovers returns the production cutover dates.
func DefaultCutovers() Cutovers {
	return Cutovers{
		EpicGoLive:    time.Date(2023, time.June, 3, 0, 0, 0, 0, time.UTC),
		ICD10Adoption: time.Date(2015, time.October, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Resolver maps a dictionary type, date range and visit context to the set
// of source systems active for that range. Resolve is total: it never errors
// and always returns at least one system.
type Resolver struct {
	cut Cutovers
}

// NewResolver creates a resolver with the given cutover dates.
func NewResolver(cut Cutovers) *Resolver {
	return &Resolver{cut: cut}
}

// Resolve returns the active source systems for t over [start, end] with the
// given visit context. The returned slice is ordered deterministically
// (modern system first for dx, Epic first elsewhere) and is never empty:
// when no rule fires the type's default system is returned alone.
func (r *Resolver) Resolve(t Type, start, end time.Time, vc VisitContext) []System {
	var systems []System

	switch t {
	case TypeDx:
		if !end.Before(r.cut.ICD10Adoption) {
			systems = append(systems, SystemICD10)
		}
		if start.Before(r.cut.ICD10Adoption) {
			systems = append(systems, SystemICD9)
		}
		if len(systems) == 0 {
			systems = []System{SystemICD10}
		}

	case TypeMedication:
		if !end.Before(r.cut.EpicGoLive) {
			systems = append(systems, SystemEpic)
		}
		if start.Before(r.cut.EpicGoLive) && vc.Inpatient {
			systems = append(systems, SystemMeditech)
		}
		if start.Before(r.cut.EpicGoLive) && vc.Outpatient {
			systems = append(systems, SystemCentricity)
		}
		if len(systems) == 0 {
			systems = []System{SystemEpic}
		}

	case TypeLab:
		if !end.Before(r.cut.EpicGoLive) {
			systems = append(systems, SystemEpic)
		}
		if start.Before(r.cut.EpicGoLive) {
			systems = append(systems, SystemMeditech)
		}
		if len(systems) == 0 {
			systems = []System{SystemEpic}
		}

	case TypeLocation:
		if !end.Before(r.cut.EpicGoLive) {
			systems = append(systems, SystemEpic)
		}
		if start.Before(r.cut.EpicGoLive) && vc.Outpatient {
			systems = append(systems, SystemGECB)
		}
		if start.Before(r.cut.EpicGoLive) && vc.Inpatient {
			systems = append(systems, SystemMeditech)
		}
		if len(systems) == 0 {
			systems = []System{SystemEpic}
		}

	case TypeProcedure:
		if !end.Before(r.cut.EpicGoLive) {
			systems = append(systems, SystemEpic)
		}
		if start.Before(r.cut.EpicGoLive) {
			systems = append(systems, SystemGECB)
		}
		if len(systems) == 0 {
			systems = []System{SystemEpic}
		}
	}

	return systems
}
