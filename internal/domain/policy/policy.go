// Пакет policy — выбор схемы обновления по роли вызывающего.
// Чистая функция без привязки к HTTP: кто и какие поля записи
// может редактировать, решается здесь и тестируется отдельно.
package policy

// UpdateSchema — схема допустимых полей при частичном обновлении записи.
type UpdateSchema int

const (
	// SchemaNone — обновление запрещено
	SchemaNone UpdateSchema = iota
	// SchemaOwner — полный набор описательных полей
	// (title, artist, album, genre, year, description, tags)
	SchemaOwner
	// SchemaModeration — модерационный поднабор для администратора,
	// редактирующего чужую запись (description, tags)
	SchemaModeration
)

// String возвращает имя схемы для логов.
func (s UpdateSchema) String() string {
	switch s {
	case SchemaOwner:
		return "owner"
	case SchemaModeration:
		return "moderation"
	default:
		return "none"
	}
}

// SelectUpdateSchema выбирает схему обновления:
//   - владелец записи (администратор или нет) — полный описательный набор;
//   - администратор на чужой записи — модерационный поднабор;
//   - все остальные — запрет.
func SelectUpdateSchema(isSelf, isAdmin bool) UpdateSchema {
	switch {
	case isSelf:
		return SchemaOwner
	case isAdmin:
		return SchemaModeration
	default:
		return SchemaNone
	}
}

// AllowsDescriptive сообщает, разрешает ли схема редактирование
// полного описательного набора (title/artist/album/genre/year).
func (s UpdateSchema) AllowsDescriptive() bool {
	return s == SchemaOwner
}

// AllowsModeration сообщает, разрешает ли схема редактирование
// модерационных полей (description, tags).
func (s UpdateSchema) AllowsModeration() bool {
	return s == SchemaOwner || s == SchemaModeration
}
