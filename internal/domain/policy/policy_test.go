package policy

import "testing"

// TestSelectUpdateSchema_Owner проверяет, что владелец получает полную схему.
func TestSelectUpdateSchema_Owner(t *testing.T) {
	s := SelectUpdateSchema(true, false)
	if s != SchemaOwner {
		t.Errorf("схема = %s, ожидалась owner", s)
	}
	if !s.AllowsDescriptive() || !s.AllowsModeration() {
		t.Error("схема owner должна разрешать все описательные поля")
	}
}

// TestSelectUpdateSchema_OwnerAdmin проверяет администратора на собственной записи.
func TestSelectUpdateSchema_OwnerAdmin(t *testing.T) {
	if s := SelectUpdateSchema(true, true); s != SchemaOwner {
		t.Errorf("схема = %s, ожидалась owner", s)
	}
}

// TestSelectUpdateSchema_AdminOnForeign проверяет модерационную схему
// администратора на чужой записи.
func TestSelectUpdateSchema_AdminOnForeign(t *testing.T) {
	s := SelectUpdateSchema(false, true)
	if s != SchemaModeration {
		t.Errorf("схема = %s, ожидалась moderation", s)
	}
	if s.AllowsDescriptive() {
		t.Error("модерационная схема не должна разрешать title/artist/album/genre/year")
	}
	if !s.AllowsModeration() {
		t.Error("модерационная схема должна разрешать description и tags")
	}
}

// TestSelectUpdateSchema_Foreign проверяет запрет для чужого пользователя.
func TestSelectUpdateSchema_Foreign(t *testing.T) {
	s := SelectUpdateSchema(false, false)
	if s != SchemaNone {
		t.Errorf("схема = %s, ожидалась none", s)
	}
	if s.AllowsDescriptive() || s.AllowsModeration() {
		t.Error("схема none не должна разрешать никаких полей")
	}
}
