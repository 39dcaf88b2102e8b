package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"contacts-crm/config"
	"contacts-crm/internal/models"
	"contacts-crm/internal/query"
	"contacts-crm/internal/repositories"
)

var epoch = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

// stepClock advances one minute on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestService(t *testing.T, opts ...Option) (*ContactService, models.ContactRepository) {
	t.Helper()
	ctx := context.Background()

	repo, err := repositories.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "crm.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })

	clock := &stepClock{now: epoch}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewContactService(repo, opts...), repo
}

func level(l models.Level) *models.Level { return &l }

func mustGet(t *testing.T, repo models.ContactRepository, id string) *models.Contact {
	t.Helper()
	c, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c, id)
	return c
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, repo := newTestService(t)

	n, ids, err := svc.Create(context.Background(), []models.Contact{
		{Azienda: "Acme", Telefono: "02-1"},
		{ID: "contact_7", Azienda: "Beta", Telefono: "06-2", PhoneStatus: models.PhoneNoAnswer},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, "contact_7", ids[1])

	acme := mustGet(t, repo, ids[0])
	assert.Equal(t, models.PhoneNotContacted, acme.PhoneStatus)
	assert.False(t, acme.IsPinned)
	assert.False(t, acme.CreatedAt.IsZero())
	assert.False(t, acme.Touched())

	beta := mustGet(t, repo, "contact_7")
	assert.Equal(t, models.PhoneNoAnswer, beta.PhoneStatus)
}

func TestCreateRejectsInvalidBatch(t *testing.T) {
	svc, repo := newTestService(t)

	_, _, err := svc.Create(context.Background(), []models.Contact{
		{Azienda: "Acme", Telefono: "02-1"},
		{Azienda: "No phone"},
	})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "telefono", verr.Field)

	n, err := repo.Count(context.Background(), models.ContactFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, _, err = svc.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoContacts)
}

func TestUpdateClearsOutcomeWhenStatusChanges(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{
		ID: "c1", Azienda: "Acme", Telefono: "02-1",
		PhoneStatus: models.PhoneContacted, Interesse: level(models.LevelYes), Reindirizzato: level(models.LevelMaybe),
	}})
	require.NoError(t, err)

	noAnswer := models.PhoneNoAnswer
	n, err := svc.Update(ctx, "c1", models.ContactPatch{PhoneStatus: &noAnswer})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c := mustGet(t, repo, "c1")
	assert.Equal(t, models.PhoneNoAnswer, c.PhoneStatus)
	assert.Nil(t, c.Interesse)
	assert.Nil(t, c.Reindirizzato)
	assert.Nil(t, c.CallbackAt)
	assert.True(t, c.UpdatedAt.After(c.CreatedAt))
}

func TestUpdateClearsCallbackWhenLeavingCallbackNeeded(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{ID: "c1", Azienda: "Acme", Telefono: "02-1"}})
	require.NoError(t, err)

	callback := models.PhoneCallbackNeeded
	_, err = svc.Update(ctx, "c1", models.ContactPatch{
		PhoneStatus: &callback,
		CallbackAt:  models.NullOf(epoch.Add(24 * time.Hour)),
	})
	require.NoError(t, err)
	c := mustGet(t, repo, "c1")
	require.NotNil(t, c.CallbackAt)
	assert.Equal(t, epoch.Add(24*time.Hour), *c.CallbackAt)

	contacted := models.PhoneContacted
	_, err = svc.Update(ctx, "c1", models.ContactPatch{
		PhoneStatus: &contacted,
		Interesse:   models.NullOf(models.LevelYes),
	})
	require.NoError(t, err)
	c = mustGet(t, repo, "c1")
	assert.Nil(t, c.CallbackAt)
	require.NotNil(t, c.Interesse)
	assert.Equal(t, models.LevelYes, *c.Interesse)
}

func TestUpdateRejectsOutcomeWithoutContact(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{ID: "c1", Azienda: "Acme", Telefono: "02-1"}})
	require.NoError(t, err)
	before := mustGet(t, repo, "c1")

	_, err = svc.Update(ctx, "c1", models.ContactPatch{Interesse: models.NullOf(models.LevelYes)})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "interesse", verr.Field)

	noAnswer := models.PhoneNoAnswer
	_, err = svc.Update(ctx, "c1", models.ContactPatch{
		PhoneStatus: &noAnswer,
		Interesse:   models.NullOf(models.LevelYes),
	})
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, before, mustGet(t, repo, "c1"))
}

func TestUpdateUnknownIDWritesNothing(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{ID: "c1", Azienda: "Acme", Telefono: "02-1"}})
	require.NoError(t, err)

	note := "x"
	_, err = svc.Update(ctx, "ghost", models.ContactPatch{Note: &note})
	assert.ErrorIs(t, err, ErrContactNotFound)

	n, err := repo.Count(ctx, models.ContactFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = svc.Update(ctx, "", models.ContactPatch{Note: &note})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateAlwaysRefreshesUpdatedAt(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{ID: "c1", Azienda: "Acme", Telefono: "02-1"}})
	require.NoError(t, err)
	before := mustGet(t, repo, "c1")

	_, err = svc.Update(ctx, "c1", models.ContactPatch{})
	require.NoError(t, err)
	after := mustGet(t, repo, "c1")

	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.True(t, after.Touched())
}

func TestListWithStatsAndOrdering(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{
		{ID: "a", Azienda: "Alpha", Telefono: "1"},
		{ID: "b", Azienda: "Bravo", Telefono: "2"},
		{ID: "c", Azienda: "Charlie", Telefono: "3", PhoneStatus: models.PhoneNoAnswer},
	})
	require.NoError(t, err)

	note := "called"
	_, err = svc.Update(ctx, "b", models.ContactPatch{Note: &note})
	require.NoError(t, err)

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	params, err := query.Parse(nil)
	require.NoError(t, err)
	page, err := svc.List(ctx, params, true)
	require.NoError(t, err)

	assert.EqualValues(t, 3, page.TotalCount)
	ids := []string{}
	for _, c := range page.Contacts {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	require.NotNil(t, page.Stats)
	assert.Equal(t, models.ContactStats{Total: 3, NotContacted: 2, NoAnswer: 1}, page.Stats.ContactStats)
	assert.False(t, page.Stats.Timestamp.IsZero())

	noAnswer := models.PhoneNoAnswer
	params.Filter.PhoneStatus = &noAnswer
	page, err = svc.List(ctx, params, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalCount)
	assert.Equal(t, models.ContactStats{Total: 1, NoAnswer: 1}, page.Stats.ContactStats)
}

func TestListPageBeyondEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{Azienda: "Alpha", Telefono: "1"}})
	require.NoError(t, err)

	page, err := svc.List(ctx, query.Params{Page: 5, PageSize: 20, SortBy: query.SortName}, false)
	require.NoError(t, err)
	assert.NotNil(t, page.Contacts)
	assert.Empty(t, page.Contacts)
	assert.EqualValues(t, 1, page.TotalCount)
	assert.Nil(t, page.Stats)
}

func TestInitializeOnlyOnce(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initialize(ctx, []models.Contact{
		{Azienda: "Alpha", Telefono: "1"},
		{Azienda: "Bravo", Telefono: "2"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Inserted)

	res, err = svc.Initialize(ctx, []models.Contact{{Azienda: "Charlie", Telefono: "3"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Database already initialized", res.Message)
	require.NotNil(t, res.ExistingCount)
	assert.EqualValues(t, 2, *res.ExistingCount)

	n, err := repo.Count(ctx, models.ContactFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestInitializeFromCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte(seedCSV), 0o600))

	svc, repo := newTestService(t, WithCSVSource(NewCSVSource(path, nil)))
	ctx := context.Background()

	res, err := svc.Initialize(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Inserted)

	acme := mustGet(t, repo, "contact_1")
	assert.Equal(t, "Acme, Inc.", acme.Azienda)
	assert.False(t, acme.Touched())
}

func TestInitializeWithoutSource(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Initialize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoContacts)
}

// lossyRepository drops the last contact of every insert.
type lossyRepository struct {
	models.ContactRepository
}

func (r lossyRepository) Insert(ctx context.Context, contacts []models.Contact) (int, error) {
	return r.ContactRepository.Insert(ctx, contacts[:len(contacts)-1])
}

func TestInitializeReportsPartialInsert(t *testing.T) {
	_, repo := newTestService(t)
	svc := NewContactService(lossyRepository{repo})

	res, err := svc.Initialize(context.Background(), []models.Contact{
		{Azienda: "Alpha", Telefono: "1"},
		{Azienda: "Bravo", Telefono: "2"},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Inserted)
	assert.Contains(t, res.Message, "Partial")
}

func TestMigrateRequiresForceOnPopulatedCollection(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Migrate(ctx, nil, true)
	assert.ErrorIs(t, err, ErrNoContacts)

	_, _, err = svc.Create(ctx, []models.Contact{{ID: "old", Azienda: "Old", Telefono: "1"}})
	require.NoError(t, err)

	_, err = svc.Migrate(ctx, []models.Contact{{ID: "new", Azienda: "New", Telefono: "2"}}, false)
	assert.ErrorIs(t, err, ErrMigrationRefused)
	mustGet(t, repo, "old")

	res, err := svc.Migrate(ctx, []models.Contact{
		{ID: "new", Azienda: "New", Telefono: "2"},
		{ID: "newer", Azienda: "Newer", Telefono: "3", PhoneStatus: models.PhoneContacted, Interesse: level(models.LevelNo)},
	}, true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Migrated)
	assert.Empty(t, res.BackupURL)

	gone, err := repo.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, gone)
	newer := mustGet(t, repo, "newer")
	require.NotNil(t, newer.Interesse)
	assert.Equal(t, models.LevelNo, *newer.Interesse)
}

// stubS3 keeps objects in memory.
type stubS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (s *stubS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := s.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (s *stubS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestMigrateBacksUpToS3(t *testing.T) {
	stub := &stubS3{objects: map[string][]byte{}}
	backups := NewS3ServiceWithClient(stub, config.S3Config{BackupBucket: "crm-backups"})
	svc, _ := newTestService(t, WithBackups(backups))
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{ID: "old", Azienda: "Old", Telefono: "1"}})
	require.NoError(t, err)

	res, err := svc.Migrate(ctx, []models.Contact{{ID: "new", Azienda: "New", Telefono: "2"}}, true)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, strings.HasPrefix(res.BackupURL, "s3://crm-backups/backups/contacts-"), res.BackupURL)

	bucket, key, err := ParseS3URI(res.BackupURL)
	require.NoError(t, err)
	var saved []models.Contact
	require.NoError(t, json.Unmarshal(stub.objects[bucket+"/"+key], &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "old", saved[0].ID)
}

func TestInitializeFromS3Source(t *testing.T) {
	stub := &stubS3{objects: map[string][]byte{"seeds/contacts.csv": []byte(seedCSV)}}
	store := NewS3ServiceWithClient(stub, config.S3Config{})
	svc, _ := newTestService(t, WithCSVSource(NewCSVSource("s3://seeds/contacts.csv", store)))

	res, err := svc.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Inserted)
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://bucket/path/to/file.csv")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "path/to/file.csv", key)

	for _, bad := range []string{"s3://bucket", "s3://", "s3:/", "https://bucket/key"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestDialQRCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, []models.Contact{{ID: "c1", Azienda: "Acme", Telefono: "+39 02-123 456"}})
	require.NoError(t, err)

	png, err := svc.DialQRCode(ctx, "c1", 128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))

	_, err = svc.DialQRCode(ctx, "ghost", 128)
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestTelURI(t *testing.T) {
	assert.Equal(t, "+3902123456", telURI("+39 02-123 456"))
	assert.Equal(t, "021234567", telURI("02/123.45.67"))
	assert.Equal(t, "39", telURI("3+9"))
}

func TestListPageWindowPastInt64IsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := svc.Create(ctx, []models.Contact{{Azienda: "Acme", Telefono: "1"}})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, query.Params{Page: 1 << 61, PageSize: 8, SortBy: query.SortUpdateStatus}, false)
	require.NoError(t, err)
	assert.Empty(t, page.Contacts)
	assert.EqualValues(t, 5, page.TotalCount)
}

func TestUpdateToleratesPreexistingViolations(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	// Written directly to the store, as a migration or the old client would.
	_, err := repo.Insert(ctx, []models.Contact{{
		ID: "legacy", Azienda: "Acme", Telefono: "02-1",
		PhoneStatus: models.PhoneNoAnswer, Interesse: level(models.LevelYes),
		CreatedAt: epoch, UpdatedAt: epoch,
	}})
	require.NoError(t, err)

	note := "richiamare"
	pinned := true
	n, err := svc.Update(ctx, "legacy", models.ContactPatch{Note: &note, IsPinned: &pinned})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c := mustGet(t, repo, "legacy")
	assert.Equal(t, note, c.Note)
	assert.True(t, c.IsPinned)

	_, err = svc.Update(ctx, "legacy", models.ContactPatch{Reindirizzato: models.NullOf(models.LevelNo)})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reindirizzato", verr.Field)

	// Moving the status clears the stale outcome.
	notContacted := models.PhoneNotContacted
	_, err = svc.Update(ctx, "legacy", models.ContactPatch{PhoneStatus: &notContacted})
	require.NoError(t, err)
	assert.Nil(t, mustGet(t, repo, "legacy").Interesse)
}
