package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"biocollect/internal/errs"
	"biocollect/internal/models"
)

// InterProClient talks to the InterPro REST API (entry endpoints), which
// also serves PFAM member database entries.
type InterProClient struct {
	*apiClient
}

// NewInterProClient creates an InterPro client using the shared governance
// components.
func NewInterProClient(cfg models.APIConfig, deps Deps) *InterProClient {
	return &InterProClient{
		apiClient: newAPIClient(models.APINameInterPro, cfg.InterProBaseURL, cfg, deps),
	}
}

// interProMetadata mirrors the metadata block of an InterPro entry payload.
type interProMetadata struct {
	Accession   string `json:"accession"`
	Name        any    `json:"name"` // string in lists, {"name": ...} object in detail responses
	Type        string `json:"type"`
	Description []struct {
		Text string `json:"text"`
	} `json:"description"`
	MemberDatabases map[string]map[string]string `json:"member_databases"`
	Integrated      string                       `json:"integrated"`
}

type interProListResponse struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []struct {
		Metadata interProMetadata `json:"metadata"`
	} `json:"results"`
}

type interProDetailResponse struct {
	Metadata interProMetadata `json:"metadata"`
}

// GetEntry fetches one entry by accession. PFAM accessions are served from
// the pfam member database route, IPR accessions from the interpro route.
func (c *InterProClient) GetEntry(ctx context.Context, accession string) (*models.Entry, error) {
	endpoint, entryType, err := entryEndpoint(accession)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var detail interProDetailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, &errs.DataError{Message: fmt.Sprintf("failed to parse InterPro entry %s", accession), Err: err}
	}

	entry := metadataToEntry(detail.Metadata, entryType)
	if err := entry.Validate(); err != nil {
		return nil, &errs.ValidationError{Message: fmt.Sprintf("entry %s failed validation", accession), Err: err}
	}

	return entry, nil
}

// ListPfamEntries pages through all PFAM entries, pageSize records per page.
func (c *InterProClient) ListPfamEntries(ctx context.Context, pageSize int) ([]*models.Entry, error) {
	return c.listEntries(ctx, "entry/pfam", models.EntryTypePfam, pageSize)
}

// ListInterProEntries pages through all InterPro entries, pageSize records
// per page.
func (c *InterProClient) ListInterProEntries(ctx context.Context, pageSize int) ([]*models.Entry, error) {
	return c.listEntries(ctx, "entry/interpro", models.EntryTypeInterPro, pageSize)
}

func (c *InterProClient) listEntries(ctx context.Context, endpoint, entryType string, pageSize int) ([]*models.Entry, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var entries []*models.Entry
	cursor := ""

	for {
		params := map[string]string{
			"page_size": strconv.Itoa(pageSize),
		}
		if cursor != "" {
			params["cursor"] = cursor
		}

		body, err := c.get(ctx, endpoint, params)
		if err != nil {
			return entries, err
		}

		var page interProListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return entries, &errs.DataError{Message: "failed to parse InterPro entry list", Err: err}
		}

		for _, result := range page.Results {
			entry := metadataToEntry(result.Metadata, entryType)
			if err := entry.Validate(); err != nil {
				c.deps.Logger.Warn("skipping invalid entry record",
					"accession", result.Metadata.Accession,
					"error", err,
				)
				continue
			}
			entries = append(entries, entry)
		}

		if page.Next == "" || len(page.Results) == 0 {
			break
		}
		cursor, err = cursorFromNext(page.Next)
		if err != nil {
			return entries, err
		}
	}

	return entries, nil
}

// entryEndpoint maps an accession to its API route and entry type.
func entryEndpoint(accession string) (string, string, error) {
	switch {
	case strings.HasPrefix(accession, "PF"):
		return "entry/pfam/" + accession, models.EntryTypePfam, nil
	case strings.HasPrefix(accession, "IPR"):
		return "entry/interpro/" + accession, models.EntryTypeInterPro, nil
	default:
		return "", "", &errs.ValidationError{Message: fmt.Sprintf("unrecognized entry accession: %s", accession)}
	}
}

// cursorFromNext extracts the cursor parameter from the API's absolute next
// page URL.
func cursorFromNext(next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", &errs.DataError{Message: "invalid next page URL", Err: err}
	}
	return u.Query().Get("cursor"), nil
}

func metadataToEntry(md interProMetadata, entryType string) *models.Entry {
	entry := &models.Entry{
		Accession: md.Accession,
		EntryType: entryType,
		Name:      metadataName(md.Name),
	}

	if len(md.Description) > 0 {
		entry.Description = md.Description[0].Text
	}

	if entryType == models.EntryTypeInterPro {
		entry.InterProType = md.Type
		if len(md.MemberDatabases) > 0 {
			entry.MemberDatabases = make(map[string]string)
			for db, members := range md.MemberDatabases {
				for acc := range members {
					entry.MemberDatabases[db] = acc
					break
				}
			}
		}
	} else {
		entry.InterProID = md.Integrated
	}

	return entry
}

// metadataName handles the two shapes the API uses for the name field.
func metadataName(name any) string {
	switch v := name.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["name"].(string); ok {
			return s
		}
	}
	return ""
}
