package models

// RegisterModels lists every model for auto-migration.
func RegisterModels() []interface{} {
	return []interface{}{
		&User{},
		&Reading{},
		&Chart{},
		&Conversation{},
		&Message{},
		&TransitAlert{},
		&Entitlement{},
		&CompatibilityReport{},
	}
}
