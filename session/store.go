package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable wraps any Redis transport failure.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSessionNotFound is returned when no session exists for the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCorrupt is returned when a stored record cannot be decoded.
	ErrSessionCorrupt = errors.New("session record corrupt")
)

const (
	fieldUserID      = "user_id"
	fieldClientLabel = "client"
	fieldValid       = "valid"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// Sessions are never deleted by this core, only flagged invalid. The
// script guards against HSET resurrecting a record that was already
// garbage-collected by retention.
const invalidateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "valid", "0", "updated_at", ARGV[1])
return 1
`

var invalidateLua = redis.NewScript(invalidateScript)

// Store is a Redis-backed adapter over the durable session records. One
// hash per session plus a per-user index set. Redis serializes all
// mutations, giving the read-after-write consistency the renewal path
// depends on.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewStore creates a session [Store] on the given Redis client. prefix
// namespaces all keys. retention, when positive, caps key lifetime so
// abandoned sessions are eventually garbage-collected; zero keeps
// records until explicitly invalidated and swept externally.
func NewStore(redis redis.UniversalClient, prefix string, retention time.Duration) *Store {
	return &Store{
		redis:     redis,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":ses:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":usr:" + userID
}

// Create inserts a new valid session for userID in a single MULTI/EXEC
// pipeline. There is no per-user uniqueness: concurrent logins yield
// independent, equally valid sessions.
func (s *Store) Create(ctx context.Context, userID, clientLabel string) (*Session, error) {
	now := time.Now().Truncate(time.Second)
	sess := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		ClientLabel: clientLabel,
		Valid:       true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	key := s.key(sess.ID)
	userKey := s.userKey(userID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldUserID:      sess.UserID,
			fieldClientLabel: sess.ClientLabel,
			fieldValid:       "1",
			fieldCreatedAt:   strconv.FormatInt(now.Unix(), 10),
			fieldUpdatedAt:   strconv.FormatInt(now.Unix(), 10),
		})
		pipe.SAdd(ctx, userKey, sess.ID)
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
			pipe.Expire(ctx, userKey, s.retention)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return sess, nil
}

// GetByID fetches a session record. Absent records yield
// [ErrSessionNotFound]; the caller decides whether that is a fault.
func (s *Store) GetByID(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	return decode(sessionID, fields)
}

// Invalidate flips the session's valid flag to false. The write is a
// single atomic script, so a subsequent GetByID from any request sees
// the revocation immediately. Invalidating an already-invalid session
// is a no-op; invalidating a missing one reports [ErrSessionNotFound].
func (s *Store) Invalidate(ctx context.Context, sessionID string) error {
	existed, err := invalidateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		strconv.FormatInt(time.Now().Unix(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existed == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// InvalidateAllForUser revokes every tracked session for a user. Ids no
// longer backed by a record (retention already swept them) are skipped.
func (s *Store) InvalidateAllForUser(ctx context.Context, userID string) error {
	ids, err := s.SessionIDsForUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.Invalidate(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}

	return nil
}

// SessionIDsForUser returns the tracked session ids for a user.
func (s *Store) SessionIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func decode(sessionID string, fields map[string]string) (*Session, error) {
	userID, ok := fields[fieldUserID]
	if !ok || userID == "" {
		return nil, ErrSessionCorrupt
	}

	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, ErrSessionCorrupt
	}
	updatedAt, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64)
	if err != nil {
		return nil, ErrSessionCorrupt
	}

	return &Session{
		ID:          sessionID,
		UserID:      userID,
		ClientLabel: fields[fieldClientLabel],
		Valid:       fields[fieldValid] == "1",
		CreatedAt:   time.Unix(createdAt, 0),
		UpdatedAt:   time.Unix(updatedAt, 0),
	}, nil
}
