package api

import (
	"context"

	"postboard/internal/models"
	"postboard/internal/store"
)

// attachAuthors fills in the public author view of each comment with a
// single user lookup. Comments whose author no longer exists keep a nil user.
func attachAuthors(ctx context.Context, users store.UserRepository, comments ...*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(comments))
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		ids = append(ids, c.UserID)
	}

	found, err := users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	byID := make(map[string]models.PublicUser, len(found))
	for _, u := range found {
		byID[u.ID] = u.Public()
	}

	for _, c := range comments {
		if pub, ok := byID[c.UserID]; ok {
			c.Author = &pub
		}
	}
	return nil
}
