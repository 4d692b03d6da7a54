package services

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

// logger returns the request-scoped logger when one is attached to ctx,
// else the global logger.
func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// loadCaller resolves the caller id to a user. Unknown or zero ids are
// unauthenticated.
func loadCaller(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	if id == 0 {
		return nil, ErrUnauthenticated
	}
	u, err := repo.GetUser(ctx, db, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return u, nil
}

// uniqueIDs drops zeros and duplicates, keeping first-seen order.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uintString(v uint) string { return strconv.FormatUint(uint64(v), 10) }
