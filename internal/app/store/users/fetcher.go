// internal/app/store/users/fetcher.go
package userstore

import (
	"context"
	"errors"

	"github.com/crewtask/crewtask/internal/app/docstore"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// GetByIDs loads the directory records for the given UIDs. The backing
// set-membership filter caps out at docstore.MaxInValues ids, so larger
// inputs are chunked; if the backend rejects the batched form it
// degrades to one lookup per id. Unknown ids are skipped, not errors,
// so a dangling member reference never breaks a roster view.
func (s *Store) GetByIDs(ctx context.Context, uids []string) ([]models.User, error) {
	if len(uids) == 0 {
		return []models.User{}, nil
	}
	out := []models.User{}
	for start := 0; start < len(uids); start += docstore.MaxInValues {
		end := start + docstore.MaxInValues
		if end > len(uids) {
			end = len(uids)
		}
		var chunk []models.User
		err := s.c.Query(ctx, &chunk, docstore.In(docstore.FieldID, uids[start:end]))
		if err != nil {
			if errors.Is(err, docstore.ErrUnsupportedFilter) {
				return s.getByIDsSequential(ctx, uids)
			}
			return nil, err
		}
		out = append(out, chunk...)
	}
	for i := range out {
		out[i].ApplyDefaults()
	}
	return out, nil
}

func (s *Store) getByIDsSequential(ctx context.Context, uids []string) ([]models.User, error) {
	out := []models.User{}
	for _, uid := range uids {
		u, err := s.GetByID(ctx, uid)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
