package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"contacts-crm/internal/models"
)

// Timestamps are stored as ISO-8601 strings, the format the collection has
// always held.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

type contactDocument struct {
	ID            string  `bson:"id"`
	Azienda       string  `bson:"azienda"`
	Telefono      string  `bson:"telefono"`
	Indirizzo     string  `bson:"indirizzo"`
	Sito          string  `bson:"sito"`
	PhoneStatus   string  `bson:"phone_status"`
	Interesse     *string `bson:"interesse"`
	Reindirizzato *string `bson:"reindirizzato"`
	Note          string  `bson:"note"`
	CallbackAt    *string `bson:"callbackAt"`
	IsPinned      bool    `bson:"isPinned"`
	CreatedAt     string  `bson:"createdAt"`
	UpdatedAt     string  `bson:"updatedAt"`
}

type MongoContactRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoContactRepository(client *mongo.Client, database, collection string) *MongoContactRepository {
	return &MongoContactRepository{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

func (r *MongoContactRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}},
		{Keys: bson.D{{Key: "phone_status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("error creating contact indexes: %w", err)
	}
	return nil
}

func (r *MongoContactRepository) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, buildMongoFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("error counting contacts: %w", err)
	}
	return n, nil
}

func (r *MongoContactRepository) Find(ctx context.Context, filter models.ContactFilter, skip, limit int64) ([]models.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetSkip(skip).SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, buildMongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("error querying contacts: %w", err)
	}

	var docs []contactDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding contacts: %w", err)
	}

	contacts := make([]models.Contact, 0, len(docs))
	for i := range docs {
		contacts = append(contacts, docs[i].toModel())
	}
	return contacts, nil
}

func (r *MongoContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	var doc contactDocument
	err := r.collection.FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting contact: %w", err)
	}
	contact := doc.toModel()
	return &contact, nil
}

func (r *MongoContactRepository) Stats(ctx context.Context, filter models.ContactFilter) (models.ContactStats, error) {
	var stats models.ContactStats

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMongoFilter(filter)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$phone_status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return stats, fmt.Errorf("error aggregating contacts: %w", err)
	}

	var groups []struct {
		Status *string `bson:"_id"`
		Count  int64   `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return stats, fmt.Errorf("error decoding contact stats: %w", err)
	}

	for _, g := range groups {
		stats.Total += g.Count
		if g.Status == nil {
			continue
		}
		if status, err := models.ParsePhoneStatus(*g.Status); err == nil {
			stats.AddStatus(status, g.Count)
		}
	}
	return stats, nil
}

func (r *MongoContactRepository) Insert(ctx context.Context, contacts []models.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, 0, len(contacts))
	for i := range contacts {
		docs = append(docs, newContactDocument(&contacts[i]))
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("error inserting contacts: %w", err)
	}
	return len(result.InsertedIDs), nil
}

func (r *MongoContactRepository) Update(ctx context.Context, id string, patch models.ContactPatch, updatedAt time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: buildMongoSet(patch, updatedAt)}},
	)
	if err != nil {
		return false, fmt.Errorf("error updating contact: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (r *MongoContactRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("error deleting contacts: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *MongoContactRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// buildMongoFilter matches both canonical and legacy enum spellings.
// Documents without isPinned count as unpinned.
func buildMongoFilter(f models.ContactFilter) bson.D {
	filter := bson.D{}

	if f.PhoneStatus != nil {
		filter = append(filter, bson.E{Key: "phone_status", Value: bson.D{{Key: "$in", Value: f.PhoneStatus.StoredValues()}}})
	}
	if f.Interesse != nil {
		filter = append(filter, bson.E{Key: "interesse", Value: bson.D{{Key: "$in", Value: f.Interesse.StoredValues()}}})
	}
	if f.Reindirizzato != nil {
		filter = append(filter, bson.E{Key: "reindirizzato", Value: bson.D{{Key: "$in", Value: f.Reindirizzato.StoredValues()}}})
	}
	if f.IsPinned != nil {
		if *f.IsPinned {
			filter = append(filter, bson.E{Key: "isPinned", Value: true})
		} else {
			filter = append(filter, bson.E{Key: "isPinned", Value: bson.D{{Key: "$ne", Value: true}}})
		}
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		ors := bson.A{}
		for _, field := range searchFields {
			ors = append(ors, bson.D{{Key: field, Value: bson.D{
				{Key: "$regex", Value: pattern},
				{Key: "$options", Value: "i"},
			}}})
		}
		filter = append(filter, bson.E{Key: "$or", Value: ors})
	}

	return filter
}

func buildMongoSet(p models.ContactPatch, updatedAt time.Time) bson.D {
	set := bson.D{}
	add := func(key string, value interface{}) {
		set = append(set, bson.E{Key: key, Value: value})
	}

	if p.Azienda != nil {
		add("azienda", *p.Azienda)
	}
	if p.Telefono != nil {
		add("telefono", *p.Telefono)
	}
	if p.Indirizzo != nil {
		add("indirizzo", *p.Indirizzo)
	}
	if p.Sito != nil {
		add("sito", *p.Sito)
	}
	if p.PhoneStatus != nil {
		add("phone_status", string(*p.PhoneStatus))
	}
	if p.Interesse.Set {
		add("interesse", levelPtr(p.Interesse.Value))
	}
	if p.Reindirizzato.Set {
		add("reindirizzato", levelPtr(p.Reindirizzato.Value))
	}
	if p.Note != nil {
		add("note", *p.Note)
	}
	if p.CallbackAt.Set {
		add("callbackAt", isoPtr(p.CallbackAt.Value))
	}
	if p.IsPinned != nil {
		add("isPinned", *p.IsPinned)
	}
	add("updatedAt", formatISO(updatedAt))
	return set
}

func newContactDocument(c *models.Contact) contactDocument {
	return contactDocument{
		ID:            c.ID,
		Azienda:       c.Azienda,
		Telefono:      c.Telefono,
		Indirizzo:     c.Indirizzo,
		Sito:          c.Sito,
		PhoneStatus:   string(c.PhoneStatus),
		Interesse:     levelPtr(c.Interesse),
		Reindirizzato: levelPtr(c.Reindirizzato),
		Note:          c.Note,
		CallbackAt:    isoPtr(c.CallbackAt),
		IsPinned:      c.IsPinned,
		CreatedAt:     formatISO(c.CreatedAt),
		UpdatedAt:     formatISO(c.UpdatedAt),
	}
}

func (d *contactDocument) toModel() models.Contact {
	c := models.Contact{
		ID:          d.ID,
		Azienda:     d.Azienda,
		Telefono:    d.Telefono,
		Indirizzo:   d.Indirizzo,
		Sito:        d.Sito,
		PhoneStatus: parseStoredStatus(d.PhoneStatus),
		Note:        d.Note,
		IsPinned:    d.IsPinned,
		CreatedAt:   parseISO(d.CreatedAt),
		UpdatedAt:   parseISO(d.UpdatedAt),
	}
	if d.Interesse != nil {
		c.Interesse = parseStoredLevel(*d.Interesse, true)
	}
	if d.Reindirizzato != nil {
		c.Reindirizzato = parseStoredLevel(*d.Reindirizzato, true)
	}
	if d.CallbackAt != nil && *d.CallbackAt != "" {
		t := parseISO(*d.CallbackAt)
		c.CallbackAt = &t
	}
	return c
}

func levelPtr(l *models.Level) *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}

func isoPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatISO(*t)
	return &s
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func parseISO(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
