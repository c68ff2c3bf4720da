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

type commentDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	PostID    string             `bson:"post_id"`
	UserID    string             `bson:"user_id"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt *time.Time         `bson:"updated_at,omitempty"`
}

func (d *commentDoc) model() *models.Comment {
	return &models.Comment{
		ID:        d.ID.Hex(),
		PostID:    d.PostID,
		UserID:    d.UserID,
		Content:   d.Content,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt,
	}
}

type CommentRepository struct {
	coll *mongodriver.Collection
}

func (r *CommentRepository) Create(ctx context.Context, postID, userID, content string) (*models.Comment, error) {
	doc := commentDoc{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("mongo insert comment: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("mongo insert comment: inserted id type")
	}
	doc.ID = oid
	return doc.model(), nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc commentDoc
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find comment: %w", err)
	}
	return doc.model(), nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{{Key: "post_id", Value: postID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find comments: %w", err)
	}
	defer cur.Close(ctx)

	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode comments: %w", err)
	}

	comments := make([]*models.Comment, 0, len(docs))
	for i := range docs {
		comments = append(comments, docs[i].model())
	}
	return comments, nil
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id, ownerID, content string) (*models.Comment, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc commentDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "user_id", Value: ownerID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "content", Value: content},
			{Key: "updated_at", Value: now()},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo update comment: %w", err)
	}
	return doc.model(), nil
}

func (r *CommentRepository) Delete(ctx context.Context, id, ownerID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "user_id", Value: ownerID}})
	if err != nil {
		return fmt.Errorf("mongo delete comment: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *CommentRepository) DeleteByPost(ctx context.Context, postID string) error {
	if _, err := r.coll.DeleteMany(ctx, bson.D{{Key: "post_id", Value: postID}}); err != nil {
		return fmt.Errorf("mongo delete post comments: %w", err)
	}
	return nil
}
