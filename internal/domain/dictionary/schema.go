package dictionary

// Column schemas are declared per (type, system) rather than inferred from
// whatever keys the first loaded row happens to carry. The unifier projects
// each kept row onto the declared column set so the unified collection has a
// uniform, predictable shape regardless of which raw file a row came from.
var columnSchemas = map[Type]map[System][]string{
	TypeDx: {
		SystemICD10: {"code", "description", ColVocabulary},
		SystemICD9:  {"code", "description", ColVocabulary},
	},
	TypeMedication: {
		SystemEpic:       {"medication_name", "generic_name", "pharmaceutical_class", "route", ColSourceSystem},
		SystemMeditech:   {"mnemonic", "description", ColSourceSystem},
		SystemCentricity: {"description", "generic_name", ColSourceSystem},
	},
	TypeLab: {
		SystemEpic:     {"component_name", "common_name", "base_name", ColSourceSystem},
		SystemMeditech: {"printed_name", "mnemonic", ColSourceSystem},
	},
	TypeLocation: {
		SystemEpic:     {"department_name", "location_name", "specialty"},
		SystemGECB:     {"group_name", "practice_name"},
		SystemMeditech: {"location_code", "location_name"},
	},
	TypeProcedure: {
		SystemEpic: {"procedure_name", "cpt_code", ColSourceSystem},
		SystemGECB: {"procedure_name", "procedure_code", ColSourceSystem},
	},
}

// SchemaColumns returns the declared column set for (t, sys), or nil when no
// schema is declared (the unifier then falls back to the file's own columns).
func SchemaColumns(t Type, sys System) []string {
	return columnSchemas[t][sys]
}
