package user

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Directory is the Redis-backed user registry. It satisfies
// challenge.Directory for create-time referential checks.
type Directory struct {
	rdb *redis.Client
}

func NewDirectory(rdb *redis.Client) *Directory { return &Directory{rdb: rdb} }

func userKey(uid string) string { return "user:rec:" + strings.TrimSpace(uid) }

func (d *Directory) Put(ctx context.Context, u *User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return d.rdb.Set(ctx, userKey(u.UID), raw, 0).Err()
}

func (d *Directory) Get(ctx context.Context, uid string) (*User, error) {
	raw, err := d.rdb.Get(ctx, userKey(uid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *Directory) Exists(ctx context.Context, uid string) (bool, error) {
	n, err := d.rdb.Exists(ctx, userKey(uid)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
