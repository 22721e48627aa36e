package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the caller did not provide one. The
// database default covers Postgres; sqlite has no gen_random_uuid.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
