package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 订单编号锁
// ============================================================================
//
// 同一档口同一天的订单编号是"查最大序号 + 1"生成的，
// 并发下单时两个请求可能查到同一个最大值，生成重复编号。
// 这里按 (档口, 日期) 加锁，把查询和插入串行化。
//
// 部署了 Redis 时用 RedisLocker（多实例共享），否则用进程内的 LocalLocker。
// 订单表上的唯一索引兜底，锁只是减少冲突重试。
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// Locker 按 key 互斥，返回的 release 可重复调用
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// DistributedLock Redis 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 持有者标识，释放时校验
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock SET key value NX EX timeout，非阻塞
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// 只删除自己持有的锁，锁过期后被别人拿到时不能误删
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// RedisLocker 基于 DistributedLock 的 Locker
type RedisLocker struct {
	client        *redis.Client
	prefix        string
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, expiration time.Duration) *RedisLocker {
	if expiration <= 0 {
		expiration = 10 * time.Second
	}
	return &RedisLocker{
		client:        client,
		prefix:        "canteen:lock:",
		expiration:    expiration,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    int(expiration / (50 * time.Millisecond)),
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l := NewDistributedLock(r.client, r.prefix+key, uuid.NewString(), r.expiration)
	if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// 请求的 ctx 可能已取消，释放锁不能跟着失败
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = l.Unlock(ctx)
		})
	}, nil
}

// LocalLocker 进程内按 key 互斥
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(key, e)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// size 当前持有或等待中的 key 数量
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
