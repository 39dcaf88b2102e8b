package models

// UpdateContactRequest is the PUT body: the contact id plus the fields to change.
type UpdateContactRequest struct {
	ID string `json:"id" example:"contact_12"`
	ContactPatch
}

type InitializeRequest struct {
	Contacts []Contact `json:"contacts"`
}

type MigrateRequest struct {
	Contacts []Contact `json:"contacts"`
	Force    bool      `json:"force"`
}
