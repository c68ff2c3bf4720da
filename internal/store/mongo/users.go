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

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Username       string             `bson:"username"`
	Email          string             `bson:"email"`
	Name           string             `bson:"name"`
	HashedPassword string             `bson:"password"`
	Picture        *string            `bson:"picture,omitempty"`
	RefreshTokens  []string           `bson:"refresh_tokens"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      *time.Time         `bson:"updated_at,omitempty"`
}

func (d *userDoc) model() *models.User {
	return &models.User{
		ID:             d.ID.Hex(),
		Username:       d.Username,
		Email:          d.Email,
		Name:           d.Name,
		Picture:        d.Picture,
		HashedPassword: d.HashedPassword,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt,
	}
}

type UserRepository struct {
	coll *mongodriver.Collection
}

func (r *UserRepository) Create(ctx context.Context, u store.NewUser) (*models.User, error) {
	ts := now()
	doc := userDoc{
		Username:       u.Username,
		Email:          u.Email,
		Name:           u.Name,
		HashedPassword: u.HashedPassword,
		Picture:        u.Picture,
		RefreshTokens:  []string{},
		CreatedAt:      ts,
		UpdatedAt:      &ts,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("mongo insert user: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("mongo insert user: inserted id type")
	}
	doc.ID = oid
	return doc.model(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := objectID(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	cur, err := r.coll.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
	if err != nil {
		return nil, fmt.Errorf("mongo find users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode users: %w", err)
	}

	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].model())
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, upd store.UserUpdate) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	set := bson.D{{Key: "updated_at", Value: now()}}
	if upd.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *upd.Username})
	}
	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *upd.Email})
	}
	if upd.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *upd.Name})
	}
	if upd.Picture != nil {
		set = append(set, bson.E{Key: "picture", Value: *upd.Picture})
	}

	res, err := r.coll.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("mongo update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetPictureIfEmpty(ctx context.Context, id, picture string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "picture", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "picture", Value: nil}},
			bson.D{{Key: "picture", Value: ""}},
		}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "picture", Value: picture},
		{Key: "updated_at", Value: now()},
	}}}

	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("mongo set user picture: %w", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (*models.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return doc.model(), nil
}
