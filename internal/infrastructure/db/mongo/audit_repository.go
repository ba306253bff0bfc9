package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
)

const (
	collectionAuthEvents  = "auth_events"
	defaultAuditRetention = 30 * 24 * time.Hour
)

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	col       *mongo.Collection
	retention time.Duration
}

// NewAuditRepository creates a new AuditRepository. Events older than
// retention are removed by a TTL index, see EnsureIndexes.
func NewAuditRepository(db *mongo.Database, retention time.Duration) *AuditRepository {
	if retention <= 0 {
		retention = defaultAuditRetention
	}
	return &AuditRepository{col: db.Collection(collectionAuthEvents), retention: retention}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

type authEventDocument struct {
	Kind      string    `bson:"kind"`
	SessionID string    `bson:"sid,omitempty"`
	UserID    int64     `bson:"user_id,omitempty"`
	Phone     string    `bson:"phone,omitempty"`
	Outcome   string    `bson:"outcome"`
	RequestID string    `bson:"request_id,omitempty"`
	At        time.Time `bson:"at"`
}

func toDocument(e *domain.AuthEvent) authEventDocument {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	return authEventDocument{
		Kind:      string(e.Kind),
		SessionID: e.SessionID,
		UserID:    e.UserID,
		Phone:     e.Phone,
		Outcome:   e.Outcome,
		RequestID: e.RequestID,
		At:        at.UTC(),
	}
}

// InsertEvent persists an authentication event to the auth_events collection.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toDocument(event)); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes and the retention TTL index.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sid", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(r.retention.Seconds())),
		},
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("ensure auth_events indexes: %w", err)
	}
	return nil
}
