package models

// All lists every persisted model. Tests pass it to AutoMigrate; production
// schemas come from the goose migrations.
func All() []any {
	return []any{
		&User{},
		&Item{},
		&Variant{},
		&VariantPrice{},
		&Client{},
		&Order{},
		&OrderLine{},
		&MaintenanceHold{},
		&Payment{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
