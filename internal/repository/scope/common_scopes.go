package scope

import "gorm.io/gorm"

func ByCollection(collection string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("collection = ?", collection)
	}
}

func BySource(source string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("source = ?", source)
	}
}

// OrderByDocument keeps chunks of a page together and in reading order.
func OrderByDocument(db *gorm.DB) *gorm.DB {
	return db.Order("source ASC, chunk_index ASC")
}
