package models

func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&TagFacet{}, // Must be first - tags reference it
		&Tag{},
		&Document{},
		&DocumentTag{},
		&DocumentFile{},
		&EventOutbox{},
	}
}
