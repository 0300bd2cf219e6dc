package models

import "time"

// Organization holds registry metadata for an identifier seen in trade
// records. Optional fields are nil until a lookup supplies them.
type Organization struct {
	Identifier string
	Kind       PartyKind
	Name       *string
	ShortName  *string
	FirstName  *string
	LastName   *string
	Region     *string
	District   *string
	UpdatedAt  time.Time
}

// Merge copies every non-nil field of incoming onto o. Existing values are
// never cleared. It reports whether anything changed.
func (o *Organization) Merge(incoming *Organization) bool {
	if incoming == nil {
		return false
	}
	changed := false
	if o.Kind == "" && incoming.Kind != "" {
		o.Kind = incoming.Kind
		changed = true
	}
	changed = mergeField(&o.Name, incoming.Name) || changed
	changed = mergeField(&o.ShortName, incoming.ShortName) || changed
	changed = mergeField(&o.FirstName, incoming.FirstName) || changed
	changed = mergeField(&o.LastName, incoming.LastName) || changed
	changed = mergeField(&o.Region, incoming.Region) || changed
	changed = mergeField(&o.District, incoming.District) || changed
	return changed
}

// Empty reports whether no data field is set.
func (o *Organization) Empty() bool {
	return o.Name == nil && o.ShortName == nil && o.FirstName == nil &&
		o.LastName == nil && o.Region == nil && o.District == nil
}

// Incomplete reports whether a field the registry normally supplies for
// this kind of party is still nil. ShortName is optional.
func (o *Organization) Incomplete() bool {
	if o.Region == nil || o.District == nil {
		return true
	}
	if o.Kind == PartyIndividual {
		return o.FirstName == nil || o.LastName == nil
	}
	return o.Name == nil
}

func mergeField(dst **string, src *string) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
