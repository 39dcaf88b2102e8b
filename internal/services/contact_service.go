package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"contacts-crm/internal/models"
	"contacts-crm/internal/query"
	"contacts-crm/internal/utils"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrNoContacts      = errors.New("no contacts provided or invalid format")
	// ErrMigrationRefused guards the destructive replace against a populated
	// collection when the caller did not ask to force it.
	ErrMigrationRefused = errors.New("collection is not empty; migration requires force")
)

type ContactService struct {
	repo   models.ContactRepository
	source *CSVSource
	s3     *S3Service
	now    func() time.Time
}

type Option func(*ContactService)

// WithCSVSource sets where Initialize loads contacts from when none are supplied.
func WithCSVSource(source *CSVSource) Option {
	return func(s *ContactService) { s.source = source }
}

// WithBackups snapshots the collection to S3 before a migration wipes it.
func WithBackups(s3 *S3Service) Option {
	return func(s *ContactService) { s.s3 = s3 }
}

func WithClock(now func() time.Time) Option {
	return func(s *ContactService) { s.now = now }
}

func NewContactService(repo models.ContactRepository, opts ...Option) *ContactService {
	s := &ContactService{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is millisecond precision so every store round-trips it exactly.
func (s *ContactService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// List fetches one page. Count, page and (optionally) stats run concurrently;
// stats use the same filter as the page. Sorting is applied to the page only.
func (s *ContactService) List(ctx context.Context, params query.Params, includeStats bool) (*models.ContactPage, error) {
	defer utils.TimeTrack(time.Now(), "list contacts")

	page := &models.ContactPage{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.repo.Count(gctx, params.Filter)
		page.TotalCount = n
		return err
	})
	g.Go(func() error {
		contacts, err := s.repo.Find(gctx, params.Filter, params.Skip(), params.Limit())
		page.Contacts = contacts
		return err
	})
	if includeStats {
		g.Go(func() error {
			stats, err := s.repo.Stats(gctx, params.Filter)
			if err != nil {
				return err
			}
			page.Stats = &models.TimestampedStats{ContactStats: stats, Timestamp: s.now().UTC()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if page.Contacts == nil {
		page.Contacts = []models.Contact{}
	}
	if !params.SortBy.Known() {
		utils.LogDebug("Unknown sortBy %q, keeping store order", params.SortBy)
	}
	query.Sort(page.Contacts, params.SortBy)
	return page, nil
}

// Stats counts contacts per phone status across the whole collection.
func (s *ContactService) Stats(ctx context.Context) (models.ContactStats, error) {
	return s.repo.Stats(ctx, models.ContactFilter{})
}

// Create fills defaults, validates every contact and inserts them together.
// It returns the number inserted and the ids assigned. Id collisions are not checked.
func (s *ContactService) Create(ctx context.Context, contacts []models.Contact) (int, []string, error) {
	if len(contacts) == 0 {
		return 0, nil, ErrNoContacts
	}

	now := s.timestamp()
	ids := make([]string, len(contacts))
	for i := range contacts {
		c := &contacts[i]
		applyDefaults(c, now)
		if err := c.Validate(); err != nil {
			return 0, nil, fmt.Errorf("contact %d: %w", i, err)
		}
		ids[i] = c.ID
	}

	inserted, err := s.repo.Insert(ctx, contacts)
	if err != nil {
		return 0, nil, err
	}
	utils.LogInfo("Inserted %d contacts", inserted)
	return inserted, ids, nil
}

// Update applies a partial update. Changing phone_status clears the outcome
// fields the new status does not allow; a patch that still breaks an
// invariant it touches is rejected before anything is written. updatedAt is
// always refreshed.
func (s *ContactService) Update(ctx context.Context, id string, patch models.ContactPatch) (int, error) {
	if id == "" {
		return 0, &models.ValidationError{Field: "id", Reason: "is required"}
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, ErrContactNotFound
	}

	patch = patch.WithStatusResets()
	merged := *current
	merged.Apply(patch)
	// Rows written before validation existed may already break a rule; only
	// the rules this patch can affect are enforced.
	for _, violation := range merged.Violations() {
		if patch.Touches(violation.Field) {
			return 0, violation
		}
		utils.LogWarning("Contact %s keeps pre-existing violation: %v", id, violation)
	}

	matched, err := s.repo.Update(ctx, id, patch, s.timestamp())
	if err != nil {
		return 0, err
	}
	if !matched {
		return 0, ErrContactNotFound
	}

	utils.LogDebug("Updated contact %s", id)
	return 1, nil
}

// Initialize seeds an empty collection. Contacts come from the request or,
// when none are given, from the configured CSV source. A populated
// collection is left untouched and reported with Success false.
func (s *ContactService) Initialize(ctx context.Context, contacts []models.Contact) (*models.InitializeResult, error) {
	existing, err := s.repo.Count(ctx, models.ContactFilter{})
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return &models.InitializeResult{
			Success:       false,
			Message:       "Database already initialized",
			ExistingCount: &existing,
		}, nil
	}

	if len(contacts) == 0 {
		if s.source == nil {
			return nil, ErrNoContacts
		}
		contacts, err = s.source.Load(ctx, s.timestamp())
		if err != nil {
			return nil, err
		}
		if len(contacts) == 0 {
			return nil, ErrNoContacts
		}
	}

	inserted, _, err := s.Create(ctx, contacts)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Count(ctx, models.ContactFilter{})
	if err != nil {
		return nil, err
	}
	if stored != int64(len(contacts)) {
		utils.LogError("Initialization incomplete: %d/%d contacts stored", stored, len(contacts))
		return &models.InitializeResult{
			Inserted: inserted,
			Success:  false,
			Message:  "Partial initialization: stored contacts do not match the source",
		}, nil
	}

	return &models.InitializeResult{Inserted: inserted, Success: true}, nil
}

// Migrate replaces the whole collection. It refuses a populated collection
// unless force is set, and snapshots the old contents to S3 first when backups are on.
func (s *ContactService) Migrate(ctx context.Context, contacts []models.Contact, force bool) (*models.MigrateResult, error) {
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}

	existing, err := s.repo.Count(ctx, models.ContactFilter{})
	if err != nil {
		return nil, err
	}
	if existing > 0 && !force {
		return nil, fmt.Errorf("%w (%d contacts present)", ErrMigrationRefused, existing)
	}

	result := &models.MigrateResult{}
	if existing > 0 && s.s3 != nil && s.s3.BackupBucket() != "" {
		url, err := s.backup(ctx)
		if err != nil {
			return nil, err
		}
		result.BackupURL = url
	}

	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}
	utils.LogWarning("Migration removed %d contacts", deleted)

	now := s.timestamp()
	for i := range contacts {
		applyDefaults(&contacts[i], now)
	}
	inserted, err := s.repo.Insert(ctx, contacts)
	if err != nil {
		return nil, err
	}
	result.Migrated = inserted

	stored, err := s.repo.Count(ctx, models.ContactFilter{})
	if err != nil {
		return nil, err
	}
	if stored != int64(len(contacts)) {
		utils.LogError("Migration check failed: %d/%d contacts stored", stored, len(contacts))
		result.Message = "Partial migration: stored contacts do not match the source"
		return result, nil
	}

	result.Success = true
	return result, nil
}

func applyDefaults(c *models.Contact, now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.PhoneStatus == "" {
		c.PhoneStatus = models.PhoneNotContacted
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
}

func (s *ContactService) backup(ctx context.Context) (string, error) {
	all, err := s.repo.Find(ctx, models.ContactFilter{}, 0, 0)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(all)
	if err != nil {
		return "", fmt.Errorf("error encoding backup: %w", err)
	}
	key := fmt.Sprintf("backups/contacts-%s.json", s.now().UTC().Format("20060102T150405Z"))
	return s.s3.UploadBytes(ctx, s.s3.BackupBucket(), key, data, "application/json")
}

// DialQRCode renders a tel: link for the contact's phone as a PNG, so the
// operator can place the call from a mobile phone.
func (s *ContactService) DialQRCode(ctx context.Context, id string, size int) ([]byte, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	png, err := qrcode.Encode("tel:"+telURI(contact.Telefono), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("error generating qr code: %w", err)
	}
	return png, nil
}

// telURI keeps the characters a dialer understands.
func telURI(phone string) string {
	out := make([]rune, 0, len(phone))
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			out = append(out, r)
		case r == '+' && i == 0:
			out = append(out, r)
		}
	}
	return string(out)
}
