package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockLost = errors.New("lock expired or taken by another holder")

// só apaga se o token ainda for o nosso
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker faz claim exclusivo de uma chave com SET NX PX
type Locker struct {
	Client redis.Cmdable
	Prefix string
	TTL    time.Duration
}

func NewLocker(c redis.Cmdable, prefix string, ttl time.Duration) *Locker {
	return &Locker{Client: c, Prefix: prefix, TTL: ttl}
}

// Lock é um claim obtido; Release devolve a chave se ainda for nossa
type Lock interface {
	Release(ctx context.Context) error
}

type redisLock struct {
	key   string
	token string
	l     *Locker
}

func (l *Locker) key(name string) string { return l.Prefix + name }

// Acquire devolve (nil, nil) quando outro processo já segura a chave
func (l *Locker) Acquire(ctx context.Context, name string) (Lock, error) {
	token := uuid.NewString()
	key := l.key(name)
	ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLock{key: key, token: token, l: l}, nil
}

func (k *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, k.l.Client, []string{k.key}, k.token).Int()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", k.key, err)
	}
	if n == 0 {
		return fmt.Errorf("unlock %s: %w", k.key, ErrLockLost)
	}
	return nil
}
