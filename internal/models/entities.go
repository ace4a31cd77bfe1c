// Package models - Domain entities for collected biological data.
// Entries come from InterPro (IPR accessions) and its member database PFAM
// (PF accessions); proteins and isoforms come from UniProt.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Entry type constants
const (
	EntryTypePfam     = "pfam"
	EntryTypeInterPro = "interpro"
)

var (
	pfamAccessionRe     = regexp.MustCompile(`^PF\d{5}$`)
	interproAccessionRe = regexp.MustCompile(`^IPR\d{6}$`)
	uniprotAccessionRe  = regexp.MustCompile(`^[OPQ][0-9][A-Z0-9]{3}[0-9]$|^[A-NR-Z][0-9]([A-Z][A-Z0-9]{2}[0-9]){1,2}$`)
	sequenceRe          = regexp.MustCompile(`^[ACDEFGHIKLMNPQRSTVWYUOBZXJ]*$`)
)

// Entry is a PFAM family or InterPro entry.
type Entry struct {
	Accession       string            `json:"accession"`
	EntryType       string            `json:"entry_type"` // "pfam" or "interpro"
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	InterProType    string            `json:"interpro_type,omitempty"` // Domain, Family, ... (IPR entries only)
	MemberDatabases map[string]string `json:"member_databases,omitempty"`
	InterProID      string            `json:"interpro_id,omitempty"` // associated IPR (PFAM entries only)
	CreatedAt       time.Time         `json:"created_at"`
}

// Validate checks entry fields for consistency.
func (e *Entry) Validate() error {
	acc := strings.TrimSpace(e.Accession)
	if acc == "" {
		return errors.New("accession cannot be empty")
	}

	switch e.EntryType {
	case EntryTypePfam:
		if !pfamAccessionRe.MatchString(acc) {
			return fmt.Errorf("invalid PFAM accession: %s", acc)
		}
	case EntryTypeInterPro:
		if !interproAccessionRe.MatchString(acc) {
			return fmt.Errorf("invalid InterPro accession: %s", acc)
		}
	default:
		return fmt.Errorf("invalid entry type: %s", e.EntryType)
	}

	if strings.TrimSpace(e.Name) == "" {
		return errors.New("name cannot be empty")
	}

	if e.InterProID != "" && !interproAccessionRe.MatchString(e.InterProID) {
		return fmt.Errorf("invalid InterPro identifier: %s", e.InterProID)
	}

	return nil
}

// Protein is a UniProt protein record associated with a collected entry.
type Protein struct {
	Accession      string    `json:"accession"`
	EntryAccession string    `json:"entry_accession"` // owning PFAM/InterPro entry
	Name           string    `json:"name"`
	Organism       string    `json:"organism,omitempty"`
	TaxonomyID     int       `json:"taxonomy_id,omitempty"`
	Sequence       string    `json:"sequence,omitempty"`
	Length         int       `json:"length"`
	Reviewed       bool      `json:"reviewed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks protein fields for consistency.
func (p *Protein) Validate() error {
	acc := strings.TrimSpace(p.Accession)
	if acc == "" {
		return errors.New("accession cannot be empty")
	}

	if !uniprotAccessionRe.MatchString(acc) {
		return fmt.Errorf("invalid UniProt accession: %s", acc)
	}

	if p.Sequence != "" {
		seq := strings.ToUpper(strings.TrimSpace(p.Sequence))
		if !sequenceRe.MatchString(seq) {
			return fmt.Errorf("sequence for %s contains invalid residues", acc)
		}
		if p.Length > 0 && len(seq) != p.Length {
			return fmt.Errorf("sequence length %d does not match declared length %d for %s",
				len(seq), p.Length, acc)
		}
	}

	if p.Length < 0 {
		return errors.New("length cannot be negative")
	}

	return nil
}

// Isoform is a protein isoform (splice variant) of a parent UniProt record.
type Isoform struct {
	IsoformID        string    `json:"isoform_id"` // e.g. "P04637-2"
	ParentAccession  string    `json:"parent_accession"`
	Name             string    `json:"name,omitempty"`
	Sequence         string    `json:"sequence,omitempty"`
	IsCanonical      bool      `json:"is_canonical"`
	SequenceFeatures []string  `json:"sequence_features,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Validate checks isoform fields for consistency.
func (i *Isoform) Validate() error {
	id := strings.TrimSpace(i.IsoformID)
	if id == "" {
		return errors.New("isoform ID cannot be empty")
	}

	parent, _, found := strings.Cut(id, "-")
	if !found {
		return fmt.Errorf("isoform ID %s must be of the form ACCESSION-N", id)
	}

	if i.ParentAccession != "" && i.ParentAccession != parent {
		return fmt.Errorf("isoform ID %s does not match parent accession %s", id, i.ParentAccession)
	}

	if !uniprotAccessionRe.MatchString(parent) {
		return fmt.Errorf("invalid parent accession in isoform ID: %s", id)
	}

	return nil
}
