package models

import "mini_orm/internal/orm"

// Catalog builds the catalog of every registry model. Patients come first so
// that tables are created before the ones referring to them.
func Catalog() (*orm.Catalog, error) {
	return orm.NewCatalog(Patients, Doctors, Diseases, Medications)
}
