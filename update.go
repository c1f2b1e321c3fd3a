package sealdb

import (
	"fmt"
	"strings"
	"time"
)

// Modifier enumerates the recognized update modifiers. MulModifier through
// AddToSetModifier are declared but intentionally unimplemented; applying
// them fails fast with ErrNotImplemented instead of being silently accepted.
type Modifier uint8

const (
	SetModifier Modifier = iota
	UnsetModifier
	IncModifier
	MulModifier
	PushModifier
	PullModifier
	AddToSetModifier
)

// String returns the update-syntax name of the modifier
func (m Modifier) String() string {
	switch m {
	case SetModifier:
		return "$set"
	case UnsetModifier:
		return "$unset"
	case IncModifier:
		return "$inc"
	case MulModifier:
		return "$mul"
	case PushModifier:
		return "$push"
	case PullModifier:
		return "$pull"
	case AddToSetModifier:
		return "$addToSet"
	default:
		return "unknown"
	}
}

// Update is either a direct field merge or a set of modifiers. Merge is used
// when no modifier field is set; otherwise modifiers apply in fixed order:
// $set, then $unset, then $inc.
type Update struct {
	// Merge shallow-merges fields into the document data (direct update)
	Merge map[string]any

	Set   map[string]any
	Unset []string
	Inc   map[string]float64

	// Declared but unsupported; non-nil values fail fast
	Mul      map[string]any
	Push     map[string]any
	Pull     map[string]any
	AddToSet map[string]any
}

// hasModifiers reports whether any modifier field is set
func (u Update) hasModifiers() bool {
	return u.Set != nil || u.Unset != nil || u.Inc != nil ||
		u.Mul != nil || u.Push != nil || u.Pull != nil || u.AddToSet != nil
}

// ParseUpdate builds an Update from the map syntax. A map containing a $set
// key (or any other modifier) is a modifier update; anything else is a direct
// merge. Unknown $-prefixed keys are rejected at construction.
func ParseUpdate(raw map[string]any) (Update, error) {
	modifier := false
	for key := range raw {
		if strings.HasPrefix(key, "$") {
			modifier = true
			break
		}
	}
	if !modifier {
		return Update{Merge: raw}, nil
	}

	var u Update
	for key, value := range raw {
		switch key {
		case "$set":
			fields, ok := value.(map[string]any)
			if !ok {
				return Update{}, NewValidationError("$set", value, "operand must be an object")
			}
			u.Set = fields
		case "$unset":
			fields, err := unsetFields(value)
			if err != nil {
				return Update{}, err
			}
			u.Unset = fields
		case "$inc":
			fields, ok := value.(map[string]any)
			if !ok {
				return Update{}, NewValidationError("$inc", value, "operand must be an object")
			}
			inc := make(map[string]float64, len(fields))
			for field, delta := range fields {
				n, ok := toFloat(delta)
				if !ok {
					return Update{}, NewValidationError("$inc", delta, fmt.Sprintf("delta for %s must be numeric", field))
				}
				inc[field] = n
			}
			u.Inc = inc
		case "$mul", "$push", "$pull", "$addToSet":
			fields, _ := value.(map[string]any)
			if fields == nil {
				fields = map[string]any{}
			}
			switch key {
			case "$mul":
				u.Mul = fields
			case "$push":
				u.Push = fields
			case "$pull":
				u.Pull = fields
			case "$addToSet":
				u.AddToSet = fields
			}
		default:
			if strings.HasPrefix(key, "$") {
				return Update{}, fmt.Errorf("%w: %s", ErrUnknownModifier, key)
			}
			return Update{}, NewValidationError(key, value, "cannot mix plain fields with modifiers")
		}
	}
	return u, nil
}

// unsetFields accepts either a list of field names or an object whose keys
// are the field names
func unsetFields(value any) ([]string, error) {
	switch v := value.(type) {
	case []any:
		fields := make([]string, 0, len(v))
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, NewValidationError("$unset", item, "field name must be a string")
			}
			fields = append(fields, name)
		}
		return fields, nil
	case map[string]any:
		fields := make([]string, 0, len(v))
		for name := range v {
			fields = append(fields, name)
		}
		return fields, nil
	default:
		return nil, NewValidationError("$unset", value, "operand must be a list or object of field names")
	}
}

// ApplyUpdate applies an update to a document. Every successful update bumps
// the document version by exactly 1 and refreshes updatedAt, regardless of
// which path was taken.
func ApplyUpdate(doc *Document, u Update) error {
	for _, unsupported := range []struct {
		mod    Modifier
		fields map[string]any
	}{
		{MulModifier, u.Mul},
		{PushModifier, u.Push},
		{PullModifier, u.Pull},
		{AddToSetModifier, u.AddToSet},
	} {
		if unsupported.fields != nil {
			return fmt.Errorf("%w: %s", ErrNotImplemented, unsupported.mod)
		}
	}

	if doc.Data == nil {
		doc.Data = make(map[string]any)
	}

	if u.hasModifiers() {
		for field, value := range u.Set {
			doc.Data[field] = value
		}
		for _, field := range u.Unset {
			delete(doc.Data, field)
		}
		for field, delta := range u.Inc {
			current, _ := toFloat(doc.Data[field]) // missing field counts from 0
			doc.Data[field] = current + delta
		}
	} else {
		for field, value := range u.Merge {
			doc.Data[field] = value
		}
	}

	doc.Meta.Version++
	doc.Meta.UpdatedAt = time.Now().UTC()
	return nil
}
