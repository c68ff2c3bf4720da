// Package mongo implements store.Store on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"postboard/internal/store"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
	defaultDBName      = "postboard"
)

type Mongo struct {
	client *mongodriver.Client
	db     *mongodriver.Database

	users    *UserRepository
	posts    *PostRepository
	comments *CommentRepository
}

var _ store.Store = (*Mongo)(nil)

// New connects, pings the primary and makes sure the indexes exist.
func New(ctx context.Context, uri string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri))
	m := &Mongo{
		client:   cli,
		db:       db,
		users:    &UserRepository{coll: db.Collection(usersCollection)},
		posts:    &PostRepository{coll: db.Collection(postsCollection)},
		comments: &CommentRepository{coll: db.Collection(commentsCollection)},
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}

	return m, nil
}

func (m *Mongo) Users() store.UserRepository       { return m.users }
func (m *Mongo) Posts() store.PostRepository       { return m.posts }
func (m *Mongo) Comments() store.CommentRepository { return m.comments }

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// ensureIndexes creates:
// - users: unique username, email lookup
// - posts: newest-first feed, per-author feed
// - comments: per-post thread in creation order
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongodriver.Collection][]mongodriver.IndexModel{
		m.users.coll: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetName("username_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email"),
			},
		},
		m.posts.coll: {
			{
				Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
				Options: options.Index().SetName("created_desc"),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("user_created_desc"),
			},
		},
		m.comments.coll: {
			{
				Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("post_created_asc"),
			},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo ensure indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// databaseFromURI returns the database named in the URI path, or the default.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

// objectID treats malformed ids as missing records.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, store.ErrNotFound
	}
	return oid, nil
}

// now truncates to milliseconds, the resolution of a BSON date.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
