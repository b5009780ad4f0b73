package model

import "time"

// Document is one reviewable document handed to the core by an ingest
// adapter. It is immutable for the duration of a scan.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Version   string    `json:"version,omitempty"`
	Units     []Unit    `json:"units"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Unit is the smallest reviewable slice of a document (paragraph or
// section). The ID is assigned by the ingest adapter and stays stable
// across re-extractions as long as the unit is structurally present.
type Unit struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// UnitByID returns the unit with the given ID, or nil.
func (d *Document) UnitByID(id string) *Unit {
	for i := range d.Units {
		if d.Units[i].ID == id {
			return &d.Units[i]
		}
	}
	return nil
}
