package core

import "strings"

type refState uint8

const (
	refNone refState = iota
	refSet
	refDangling
)

// CategoryRef is an optional category reference. It distinguishes an
// uncategorized record from one pointing at a category that no longer exists.
type CategoryRef struct {
	id    string
	state refState
}

// NoCategory is the uncategorized reference.
func NoCategory() CategoryRef {
	return CategoryRef{}
}

// CategoryID references a known category.
func CategoryID(id string) CategoryRef {
	if strings.TrimSpace(id) == "" {
		return NoCategory()
	}
	return CategoryRef{id: id, state: refSet}
}

// DanglingCategory references a category id that could not be resolved.
func DanglingCategory(id string) CategoryRef {
	return CategoryRef{id: id, state: refDangling}
}

// ResolveCategoryRef turns a raw stored value into a reference. NULL and the
// empty string both mean uncategorized; ids rejected by known are dangling.
func ResolveCategoryRef(raw *string, known func(id string) bool) CategoryRef {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return NoCategory()
	}
	id := strings.TrimSpace(*raw)
	if known != nil && !known(id) {
		return DanglingCategory(id)
	}
	return CategoryID(id)
}

// ID returns the referenced id and whether the reference resolves to a category.
func (r CategoryRef) ID() (string, bool) {
	return r.id, r.state == refSet
}

// RawID returns the stored id, dangling or not. Empty when uncategorized.
func (r CategoryRef) RawID() string {
	return r.id
}

func (r CategoryRef) IsNone() bool     { return r.state == refNone }
func (r CategoryRef) IsDangling() bool { return r.state == refDangling }

// Is reports whether the reference resolves to the given category id.
func (r CategoryRef) Is(id string) bool {
	return r.state == refSet && r.id == id
}

// Ptr returns the id as a nullable value for storage.
func (r CategoryRef) Ptr() *string {
	if r.state == refNone {
		return nil
	}
	id := r.id
	return &id
}
