package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"postboard/internal/store"
)

func (r *UserRepository) AddRefreshToken(ctx context.Context, userID, tokenHash string) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}

	res, err := r.coll.UpdateByID(ctx, oid, bson.D{
		{Key: "$push", Value: bson.D{{Key: "refresh_tokens", Value: tokenHash}}},
	})
	if err != nil {
		return fmt.Errorf("mongo add refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ReplaceRefreshToken uses the positional operator so the match on oldHash and
// the write happen in one document update.
func (r *UserRepository) ReplaceRefreshToken(ctx context.Context, userID, oldHash, newHash string) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "refresh_tokens", Value: oldHash}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "refresh_tokens.$", Value: newHash}}}},
	)
	if err != nil {
		return fmt.Errorf("mongo rotate refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID, tokenHash string) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "refresh_tokens", Value: tokenHash}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "refresh_tokens", Value: tokenHash}}}},
	)
	if err != nil {
		return fmt.Errorf("mongo remove refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}

	_, err = r.coll.UpdateByID(ctx, oid, bson.D{
		{Key: "$set", Value: bson.D{{Key: "refresh_tokens", Value: []string{}}}},
	})
	if err != nil {
		return fmt.Errorf("mongo clear refresh tokens: %w", err)
	}
	return nil
}

func (r *UserRepository) ListRefreshTokens(ctx context.Context, userID string) ([]string, error) {
	oid, err := objectID(userID)
	if err != nil {
		return nil, err
	}

	var doc userDoc
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find refresh tokens: %w", err)
	}
	if doc.RefreshTokens == nil {
		return []string{}, nil
	}
	return doc.RefreshTokens, nil
}
