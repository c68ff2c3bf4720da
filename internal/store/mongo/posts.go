package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"postboard/internal/models"
	"postboard/internal/store"
)

// maxToggleAttempts bounds retries when concurrent toggles keep flipping the
// like between our add and remove attempts.
const maxToggleAttempts = 3

type postDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Message   string             `bson:"message"`
	Likes     []string           `bson:"likes"`
	ImageURL  *string            `bson:"image_url,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d *postDoc) model() *models.Post {
	likes := d.Likes
	if likes == nil {
		likes = []string{}
	}
	return &models.Post{
		ID:        d.ID.Hex(),
		Message:   d.Message,
		UserID:    d.UserID,
		Likes:     likes,
		ImageURL:  d.ImageURL,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type PostRepository struct {
	coll *mongodriver.Collection
}

func (r *PostRepository) Create(ctx context.Context, userID, message string) (*models.Post, error) {
	ts := now()
	doc := postDoc{
		UserID:    userID,
		Message:   message,
		Likes:     []string{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("mongo insert post: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("mongo insert post: inserted id type")
	}
	doc.ID = oid
	return doc.model(), nil
}

func (r *PostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc postDoc
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find post: %w", err)
	}
	return doc.model(), nil
}

func (r *PostRepository) List(ctx context.Context, params store.ListPostsParams) ([]*models.Post, error) {
	filter := bson.D{}
	if params.SenderID != "" {
		filter = append(filter, bson.E{Key: "user_id", Value: params.SenderID})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(params.Start)).
		SetLimit(int64(params.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find posts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode posts: %w", err)
	}

	posts := make([]*models.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docs[i].model())
	}
	return posts, nil
}

func (r *PostRepository) UpdateMessage(ctx context.Context, id, ownerID, message string) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc postDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "user_id", Value: ownerID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "message", Value: message},
			{Key: "updated_at", Value: now()},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo update post: %w", err)
	}
	return doc.model(), nil
}

func (r *PostRepository) Delete(ctx context.Context, id, ownerID string) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc postDoc
	err = r.coll.FindOneAndDelete(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "user_id", Value: ownerID}},
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo delete post: %w", err)
	}
	return doc.model(), nil
}

func (r *PostRepository) SetImageURL(ctx context.Context, id, imageURL string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := r.coll.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: bson.D{
		{Key: "image_url", Value: imageURL},
		{Key: "updated_at", Value: now()},
	}}})
	if err != nil {
		return fmt.Errorf("mongo set post image: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ToggleLike first tries to add the like on a post that lacks it, then to pull
// it from a post that has it. Each attempt is a single conditional update.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	oid, err := objectID(postID)
	if err != nil {
		return nil, err
	}

	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		var doc postDoc
		err := r.coll.FindOneAndUpdate(ctx,
			bson.D{{Key: "_id", Value: oid}, {Key: "likes", Value: bson.D{{Key: "$ne", Value: userID}}}},
			bson.D{{Key: "$addToSet", Value: bson.D{{Key: "likes", Value: userID}}}},
			after,
		).Decode(&doc)
		if err == nil {
			return doc.model(), nil
		}
		if !errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("mongo add like: %w", err)
		}

		err = r.coll.FindOneAndUpdate(ctx,
			bson.D{{Key: "_id", Value: oid}, {Key: "likes", Value: userID}},
			bson.D{{Key: "$pull", Value: bson.D{{Key: "likes", Value: userID}}}},
			after,
		).Decode(&doc)
		if err == nil {
			return doc.model(), nil
		}
		if !errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("mongo remove like: %w", err)
		}

		if _, err := r.FindByID(ctx, postID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("mongo toggle like: too much contention on post %s", postID)
}
