package ring

import "testing"

func TestNewSchema(t *testing.T) {
	s, err := NewSchema([]ParamSpec{
		{Name: "id", LockKey: true},
		{Name: "status", Mutable: true},
		{Name: "createdAt", Immutable: true},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if s.storageMap["id"] != "1" || s.storageMap["status"] != "2" || s.storageMap["createdAt"] != "3" {
		t.Fatalf("unexpected slot-key assignment: %+v", s.storageMap)
	}
	if s.lockSlotKey != "1" {
		t.Fatalf("expected lockSlotKey=1, got %q", s.lockSlotKey)
	}
	if !s.mutableNames["status"] || !s.immutableNames["createdAt"] {
		t.Fatalf("field classification lost: mutable=%v immutable=%v", s.mutableNames, s.immutableNames)
	}
}

func TestNewSchemaRejectsEmpty(t *testing.T) {
	if _, err := NewSchema(nil); err == nil {
		t.Fatalf("expected error for empty param list")
	}
}

func TestNewSchemaRejectsDuplicateNames(t *testing.T) {
	_, err := NewSchema([]ParamSpec{{Name: "a"}, {Name: "a"}})
	if err == nil {
		t.Fatalf("expected error for duplicate field name")
	}
}

func TestNewSchemaRejectsMultipleLockKeys(t *testing.T) {
	_, err := NewSchema([]ParamSpec{{Name: "a", LockKey: true}, {Name: "b", LockKey: true}})
	if err == nil {
		t.Fatalf("expected error for multiple lockKey fields")
	}
}

func TestNewSchemaRejectsEmptyName(t *testing.T) {
	_, err := NewSchema([]ParamSpec{{Name: ""}})
	if err == nil {
		t.Fatalf("expected error for empty field name")
	}
}
