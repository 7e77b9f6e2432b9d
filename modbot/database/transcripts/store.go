// Package transcripts archives messages captured from jail channels into
// MongoDB with a TTL index, so muted users' activity stays reviewable for a
// retention window without unbounded growth.
package transcripts

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "jail_messages"

type Config struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

type Message struct {
	GuildID    int64     `bson:"guild_id"`
	UserID     int64     `bson:"user_id"`
	Username   string    `bson:"username"`
	CaseNumber int64     `bson:"case_number"`
	ChannelID  int64     `bson:"channel_id"`
	MessageID  int64     `bson:"message_id"`
	Content    string    `bson:"content"`
	SentAt     time.Time `bson:"sent_at"`
}

type Store struct {
	client    *mongo.Client
	coll      *mongo.Collection
	retention time.Duration
}

func New(ctx context.Context, cfg Config, retention time.Duration) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo unreachable: %w", err)
	}

	s := &Store{
		client:    client,
		coll:      client.Database(cfg.Database).Collection(collectionName),
		retention: retention,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sent_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(s.retention.Seconds())),
		},
		{
			Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "sent_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "case_number", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create transcript indexes: %w", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	_, err := s.coll.InsertOne(ctx, msg)
	return err
}

func (s *Store) ByUser(ctx context.Context, guildID, userID snowflake.ID, limit int64) ([]Message, error) {
	return s.find(ctx, bson.M{
		"guild_id": int64(guildID),
		"user_id":  int64(userID),
	}, limit)
}

func (s *Store) ByCase(ctx context.Context, guildID snowflake.ID, caseNumber int64, limit int64) ([]Message, error) {
	return s.find(ctx, bson.M{
		"guild_id":    int64(guildID),
		"case_number": caseNumber,
	}, limit)
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int64) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
