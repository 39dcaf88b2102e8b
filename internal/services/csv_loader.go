package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"contacts-crm/internal/models"
	"contacts-crm/internal/utils"
)

// ParseContactsCSV reads company,phone,address,website rows. The header row
// is skipped, quoted fields may contain commas, missing trailing columns are
// empty and rows without a company or phone are dropped. Ids are contact_<n>
// for the n-th data row.
func ParseContactsCSV(r io.Reader, now time.Time) ([]models.Contact, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var contacts []models.Contact
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		if header {
			header = false
			continue
		}

		values := make([]string, 4)
		for i := 0; i < len(values) && i < len(record); i++ {
			values[i] = cleanField(record[i])
		}
		if values[0] == "" || values[1] == "" {
			continue
		}

		contacts = append(contacts, models.Contact{
			ID:          fmt.Sprintf("contact_%d", line-1),
			Azienda:     values[0],
			Telefono:    values[1],
			Indirizzo:   values[2],
			Sito:        values[3],
			PhoneStatus: models.PhoneNotContacted,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return contacts, nil
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// CSVSource loads the seed list from an http(s) URL, an s3://bucket/key
// object or a local file.
type CSVSource struct {
	location   string
	s3         *S3Service
	httpClient *http.Client
}

func NewCSVSource(location string, s3 *S3Service) *CSVSource {
	return &CSVSource{
		location:   location,
		s3:         s3,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *CSVSource) Location() string {
	return s.location
}

func (s *CSVSource) Load(ctx context.Context, now time.Time) ([]models.Contact, error) {
	if s == nil || s.location == "" {
		return nil, fmt.Errorf("no csv source configured")
	}

	body, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	contacts, err := ParseContactsCSV(body, now)
	if err != nil {
		return nil, err
	}
	utils.LogInfo("Loaded %d contacts from %s", len(contacts), s.location)
	return contacts, nil
}

func (s *CSVSource) open(ctx context.Context) (io.ReadCloser, error) {
	switch {
	case utils.IsS3URI(s.location):
		if s.s3 == nil {
			return nil, fmt.Errorf("csv source %s needs s3 credentials", s.location)
		}
		bucket, key, err := ParseS3URI(s.location)
		if err != nil {
			return nil, err
		}
		return s.s3.GetObject(ctx, bucket, key)
	case utils.IsURL(s.location):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
		if err != nil {
			return nil, fmt.Errorf("error building csv request: %w", err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error downloading csv: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("error downloading csv: status %d", resp.StatusCode)
		}
		return resp.Body, nil
	default:
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("error opening csv: %w", err)
		}
		return f, nil
	}
}
