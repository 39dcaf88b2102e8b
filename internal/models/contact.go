package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PhoneStatus tracks how far the outreach to a contact has progressed.
type PhoneStatus string

const (
	PhoneNotContacted   PhoneStatus = "not_contacted"
	PhoneNoAnswer       PhoneStatus = "no_answer"
	PhoneCallbackNeeded PhoneStatus = "callback_needed"
	PhoneContacted      PhoneStatus = "contacted"
)

// PhoneStatuses lists every status in dashboard order.
var PhoneStatuses = []PhoneStatus{
	PhoneNotContacted,
	PhoneNoAnswer,
	PhoneCallbackNeeded,
	PhoneContacted,
}

// Values written by the first version of the call sheet.
var legacyPhoneStatuses = map[string]PhoneStatus{
	"non_contattato":  PhoneNotContacted,
	"non_ha_risposto": PhoneNoAnswer,
	"da_richiamare":   PhoneCallbackNeeded,
	"contattato":      PhoneContacted,
}

func ParsePhoneStatus(s string) (PhoneStatus, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, st := range PhoneStatuses {
		if string(st) == v {
			return st, nil
		}
	}
	if st, ok := legacyPhoneStatuses[v]; ok {
		return st, nil
	}
	return "", fmt.Errorf("invalid phone_status %q", s)
}

// StoredValues returns the canonical value followed by its legacy spelling,
// for stores that may still hold documents written by the old client.
func (s PhoneStatus) StoredValues() []string {
	values := []string{string(s)}
	for legacy, st := range legacyPhoneStatuses {
		if st == s {
			values = append(values, legacy)
		}
	}
	return values
}

func (s *PhoneStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("phone_status must be a string")
	}
	st, err := ParsePhoneStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Level is the answer scale used for both interest and redirect outcomes.
type Level string

const (
	LevelYes   Level = "yes"
	LevelMaybe Level = "maybe"
	LevelNo    Level = "no"
)

var legacyLevels = map[string]Level{
	"si":    LevelYes,
	"sì":    LevelYes,
	"forse": LevelMaybe,
}

func ParseLevel(s string) (Level, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch Level(v) {
	case LevelYes, LevelMaybe, LevelNo:
		return Level(v), nil
	}
	if l, ok := legacyLevels[v]; ok {
		return l, nil
	}
	return "", fmt.Errorf("invalid level %q", s)
}

func (l Level) StoredValues() []string {
	values := []string{string(l)}
	for legacy, lv := range legacyLevels {
		if lv == l {
			values = append(values, legacy)
		}
	}
	return values
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("level must be a string or null")
	}
	lv, err := ParseLevel(raw)
	if err != nil {
		return err
	}
	*l = lv
	return nil
}

type Contact struct {
	ID            string      `json:"id"`
	Azienda       string      `json:"azienda"`
	Telefono      string      `json:"telefono"`
	Indirizzo     string      `json:"indirizzo"`
	Sito          string      `json:"sito"`
	PhoneStatus   PhoneStatus `json:"phone_status"`
	Interesse     *Level      `json:"interesse"`
	Reindirizzato *Level      `json:"reindirizzato"`
	Note          string      `json:"note"`
	CallbackAt    *time.Time  `json:"callbackAt"`
	IsPinned      bool        `json:"isPinned"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Touched reports whether the contact was edited after creation.
func (c *Contact) Touched() bool {
	return !c.UpdatedAt.Equal(c.CreatedAt)
}

// Validate checks required fields and the status-dependent invariants.
func (c *Contact) Validate() error {
	if v := c.Violations(); len(v) > 0 {
		return v[0]
	}
	return nil
}

// Violations lists every broken rule, required fields first.
func (c *Contact) Violations() []*ValidationError {
	var out []*ValidationError
	if strings.TrimSpace(c.Azienda) == "" {
		out = append(out, &ValidationError{Field: "azienda", Reason: "is required"})
	}
	if strings.TrimSpace(c.Telefono) == "" {
		out = append(out, &ValidationError{Field: "telefono", Reason: "is required"})
	}
	if _, err := ParsePhoneStatus(string(c.PhoneStatus)); err != nil {
		out = append(out, &ValidationError{Field: "phone_status", Reason: err.Error()})
	}
	if c.PhoneStatus != PhoneContacted {
		if c.Interesse != nil {
			out = append(out, &ValidationError{Field: "interesse", Reason: "must be null unless phone_status is contacted"})
		}
		if c.Reindirizzato != nil {
			out = append(out, &ValidationError{Field: "reindirizzato", Reason: "must be null unless phone_status is contacted"})
		}
	}
	if c.PhoneStatus != PhoneCallbackNeeded && c.CallbackAt != nil {
		out = append(out, &ValidationError{Field: "callbackAt", Reason: "must be null unless phone_status is callback_needed"})
	}
	return out
}

// Apply overwrites the fields carried by the patch.
func (c *Contact) Apply(p ContactPatch) {
	if p.Azienda != nil {
		c.Azienda = *p.Azienda
	}
	if p.Telefono != nil {
		c.Telefono = *p.Telefono
	}
	if p.Indirizzo != nil {
		c.Indirizzo = *p.Indirizzo
	}
	if p.Sito != nil {
		c.Sito = *p.Sito
	}
	if p.PhoneStatus != nil {
		c.PhoneStatus = *p.PhoneStatus
	}
	if p.Interesse.Set {
		c.Interesse = p.Interesse.Value
	}
	if p.Reindirizzato.Set {
		c.Reindirizzato = p.Reindirizzato.Value
	}
	if p.Note != nil {
		c.Note = *p.Note
	}
	if p.CallbackAt.Set {
		c.CallbackAt = p.CallbackAt.Value
	}
	if p.IsPinned != nil {
		c.IsPinned = *p.IsPinned
	}
}

// Nullable distinguishes a field that was omitted from one explicitly set to null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func NullOf[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// ContactPatch is a partial update. Nil pointers and unset Nullables are left untouched.
type ContactPatch struct {
	Azienda       *string             `json:"azienda,omitempty"`
	Telefono      *string             `json:"telefono,omitempty"`
	Indirizzo     *string             `json:"indirizzo,omitempty"`
	Sito          *string             `json:"sito,omitempty"`
	PhoneStatus   *PhoneStatus        `json:"phone_status,omitempty"`
	Interesse     Nullable[Level]     `json:"interesse"`
	Reindirizzato Nullable[Level]     `json:"reindirizzato"`
	Note          *string             `json:"note,omitempty"`
	CallbackAt    Nullable[time.Time] `json:"callbackAt"`
	IsPinned      *bool               `json:"isPinned,omitempty"`
}

// WithStatusResets clears the outcome fields that the new phone status does
// not allow. Fields the caller set explicitly are kept so validation can
// reject contradictory requests.
func (p ContactPatch) WithStatusResets() ContactPatch {
	if p.PhoneStatus == nil {
		return p
	}
	if *p.PhoneStatus != PhoneContacted {
		if !p.Interesse.Set {
			p.Interesse = Null[Level]()
		}
		if !p.Reindirizzato.Set {
			p.Reindirizzato = Null[Level]()
		}
	}
	if *p.PhoneStatus != PhoneCallbackNeeded && !p.CallbackAt.Set {
		p.CallbackAt = Null[time.Time]()
	}
	return p
}

// Touches reports whether applying the patch can change the rule checked for
// field. Outcome rules depend on phone_status as well as the field itself.
func (p ContactPatch) Touches(field string) bool {
	switch field {
	case "azienda":
		return p.Azienda != nil
	case "telefono":
		return p.Telefono != nil
	case "phone_status":
		return p.PhoneStatus != nil
	case "interesse":
		return p.Interesse.Set || p.PhoneStatus != nil
	case "reindirizzato":
		return p.Reindirizzato.Set || p.PhoneStatus != nil
	case "callbackAt":
		return p.CallbackAt.Set || p.PhoneStatus != nil
	}
	return false
}

// ContactFilter is the store-independent predicate for listings and stats.
// A nil field means "any value".
type ContactFilter struct {
	PhoneStatus   *PhoneStatus
	Interesse     *Level
	Reindirizzato *Level
	IsPinned      *bool
	Search        string
}

type ContactStats struct {
	Total          int64 `json:"total"`
	NotContacted   int64 `json:"non_contacted"`
	NoAnswer       int64 `json:"no_answer"`
	CallbackNeeded int64 `json:"callback_needed"`
	Contacted      int64 `json:"contacted"`
}

// AddStatus accumulates n contacts in the given status bucket.
// Unknown statuses only count towards Total.
func (s *ContactStats) AddStatus(status PhoneStatus, n int64) {
	switch status {
	case PhoneNotContacted:
		s.NotContacted += n
	case PhoneNoAnswer:
		s.NoAnswer += n
	case PhoneCallbackNeeded:
		s.CallbackNeeded += n
	case PhoneContacted:
		s.Contacted += n
	}
}

// ContactRepository is the contact store. A zero limit in Find means no limit.
type ContactRepository interface {
	Count(ctx context.Context, filter ContactFilter) (int64, error)
	Find(ctx context.Context, filter ContactFilter, skip, limit int64) ([]Contact, error)
	GetByID(ctx context.Context, id string) (*Contact, error)
	Stats(ctx context.Context, filter ContactFilter) (ContactStats, error)
	Insert(ctx context.Context, contacts []Contact) (int, error)
	Update(ctx context.Context, id string, patch ContactPatch, updatedAt time.Time) (matched bool, err error)
	DeleteAll(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
