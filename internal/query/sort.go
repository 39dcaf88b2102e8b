package query

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"contacts-crm/internal/models"
)

type SortKey string

const (
	// SortUpdateStatus puts edited contacts first, newest edit first,
	// and keeps never-edited contacts in id order.
	SortUpdateStatus  SortKey = "updateStatus"
	SortUpdatedNewest SortKey = "updatedNewest"
	SortUpdatedOldest SortKey = "updatedOldest"
	SortName          SortKey = "name"
)

// Known reports whether Sort reorders contacts for this key.
func (k SortKey) Known() bool {
	switch k {
	case SortUpdateStatus, SortUpdatedNewest, SortUpdatedOldest, SortName:
		return true
	}
	return false
}

// Sort orders one fetched page in place. Pinned contacts always come first.
// Unknown keys leave the store order untouched. Only the page is reordered,
// so ties that straddle a page boundary are not resolved globally.
func Sort(contacts []models.Contact, key SortKey) {
	less := lessFunc(key)
	if less == nil {
		return
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := &contacts[i], &contacts[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		return less(a, b)
	})
}

func lessFunc(key SortKey) func(a, b *models.Contact) bool {
	switch key {
	case SortUpdateStatus:
		return func(a, b *models.Contact) bool {
			at, bt := a.Touched(), b.Touched()
			if at != bt {
				return at
			}
			if at {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return strings.Compare(a.ID, b.ID) < 0
		}
	case SortUpdatedNewest:
		return func(a, b *models.Contact) bool {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
	case SortUpdatedOldest:
		return func(a, b *models.Contact) bool {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	case SortName:
		col := collate.New(language.Italian, collate.IgnoreCase)
		return func(a, b *models.Contact) bool {
			return col.CompareString(a.Azienda, b.Azienda) < 0
		}
	}
	return nil
}
