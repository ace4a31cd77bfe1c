package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"biocollect/internal/errs"
	"biocollect/internal/models"
)

// UniProtClient talks to the UniProt REST API (uniprotkb endpoints).
type UniProtClient struct {
	*apiClient
}

// NewUniProtClient creates a UniProt client using the shared governance
// components.
func NewUniProtClient(cfg models.APIConfig, deps Deps) *UniProtClient {
	return &UniProtClient{
		apiClient: newAPIClient(models.APINameUniProt, cfg.UniProtBaseURL, cfg, deps),
	}
}

// uniProtEntry mirrors the subset of the UniProtKB entry JSON we consume.
type uniProtEntry struct {
	PrimaryAccession   string `json:"primaryAccession"`
	EntryType          string `json:"entryType"`
	ProteinDescription struct {
		RecommendedName struct {
			FullName struct {
				Value string `json:"value"`
			} `json:"fullName"`
		} `json:"recommendedName"`
		SubmissionNames []struct {
			FullName struct {
				Value string `json:"value"`
			} `json:"fullName"`
		} `json:"submissionNames"`
	} `json:"proteinDescription"`
	Organism struct {
		ScientificName string `json:"scientificName"`
		TaxonID        int    `json:"taxonId"`
	} `json:"organism"`
	Sequence struct {
		Value  string `json:"value"`
		Length int    `json:"length"`
	} `json:"sequence"`
	Comments []struct {
		CommentType string `json:"commentType"`
		Isoforms    []struct {
			IsoformIDs []string `json:"isoformIds"`
			Name       struct {
				Value string `json:"value"`
			} `json:"name"`
			IsoformSequenceStatus string   `json:"isoformSequenceStatus"`
			SequenceIDs           []string `json:"sequenceIds"`
		} `json:"isoforms"`
	} `json:"comments"`
}

type uniProtSearchResponse struct {
	Results    []uniProtEntry `json:"results"`
	NextCursor string         `json:"nextCursor"`
}

// GetProtein fetches one protein record by UniProt accession. The returned
// protein is associated with the given owning entry accession.
func (c *UniProtClient) GetProtein(ctx context.Context, accession, entryAccession string) (*models.Protein, error) {
	body, err := c.get(ctx, "uniprotkb/"+accession, map[string]string{
		"format": "json",
	})
	if err != nil {
		return nil, err
	}

	var entry uniProtEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, &errs.DataError{Message: fmt.Sprintf("failed to parse UniProt entry %s", accession), Err: err}
	}

	protein := entryToProtein(entry, entryAccession)
	if err := protein.Validate(); err != nil {
		return nil, &errs.ValidationError{Message: fmt.Sprintf("protein %s failed validation", accession), Err: err}
	}

	return protein, nil
}

// SearchByEntry pages through all proteins cross-referenced to a PFAM or
// InterPro entry, batchSize records per page.
func (c *UniProtClient) SearchByEntry(ctx context.Context, entryAccession string, batchSize int) ([]*models.Protein, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	query, err := entryQuery(entryAccession)
	if err != nil {
		return nil, err
	}

	var proteins []*models.Protein
	cursor := ""

	for {
		params := map[string]string{
			"query":  query,
			"format": "json",
			"size":   strconv.Itoa(batchSize),
		}
		if cursor != "" {
			params["cursor"] = cursor
		}

		body, err := c.get(ctx, "uniprotkb/search", params)
		if err != nil {
			return proteins, err
		}

		var page uniProtSearchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return proteins, &errs.DataError{Message: "failed to parse UniProt search page", Err: err}
		}

		for _, entry := range page.Results {
			protein := entryToProtein(entry, entryAccession)
			if err := protein.Validate(); err != nil {
				c.deps.Logger.Warn("skipping invalid protein record",
					"accession", entry.PrimaryAccession,
					"entry_accession", entryAccession,
					"error", err,
				)
				continue
			}
			proteins = append(proteins, protein)
		}

		if page.NextCursor == "" || len(page.Results) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	return proteins, nil
}

// GetIsoforms fetches the isoforms (splice variants) of a protein from its
// alternative products annotation.
func (c *UniProtClient) GetIsoforms(ctx context.Context, accession string) ([]*models.Isoform, error) {
	body, err := c.get(ctx, "uniprotkb/"+accession, map[string]string{
		"format": "json",
		"fields": "cc_alternative_products",
	})
	if err != nil {
		return nil, err
	}

	var entry uniProtEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, &errs.DataError{Message: fmt.Sprintf("failed to parse isoforms for %s", accession), Err: err}
	}

	var isoforms []*models.Isoform
	for _, comment := range entry.Comments {
		if comment.CommentType != "ALTERNATIVE PRODUCTS" {
			continue
		}
		for _, iso := range comment.Isoforms {
			if len(iso.IsoformIDs) == 0 {
				continue
			}
			isoform := &models.Isoform{
				IsoformID:        iso.IsoformIDs[0],
				ParentAccession:  accession,
				Name:             iso.Name.Value,
				IsCanonical:      iso.IsoformSequenceStatus == "displayed",
				SequenceFeatures: iso.SequenceIDs,
			}
			if err := isoform.Validate(); err != nil {
				c.deps.Logger.Warn("skipping invalid isoform record",
					"isoform_id", isoform.IsoformID,
					"parent_accession", accession,
					"error", err,
				)
				continue
			}
			isoforms = append(isoforms, isoform)
		}
	}

	return isoforms, nil
}

// entryQuery builds the UniProt cross-reference query for an entry accession.
func entryQuery(entryAccession string) (string, error) {
	switch {
	case strings.HasPrefix(entryAccession, "PF"):
		return "xref:pfam-" + entryAccession, nil
	case strings.HasPrefix(entryAccession, "IPR"):
		return "xref:interpro-" + entryAccession, nil
	default:
		return "", &errs.ValidationError{Message: fmt.Sprintf("unrecognized entry accession: %s", entryAccession)}
	}
}

func entryToProtein(entry uniProtEntry, entryAccession string) *models.Protein {
	name := entry.ProteinDescription.RecommendedName.FullName.Value
	if name == "" && len(entry.ProteinDescription.SubmissionNames) > 0 {
		name = entry.ProteinDescription.SubmissionNames[0].FullName.Value
	}

	return &models.Protein{
		Accession:      entry.PrimaryAccession,
		EntryAccession: entryAccession,
		Name:           name,
		Organism:       entry.Organism.ScientificName,
		TaxonomyID:     entry.Organism.TaxonID,
		Sequence:       entry.Sequence.Value,
		Length:         entry.Sequence.Length,
		Reviewed:       strings.Contains(entry.EntryType, "reviewed"),
	}
}
