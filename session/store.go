package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tokenauth/internal"
)

// ErrRedisUnavailable wraps every Redis failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNoSession is returned when ctx carries no Handle.
var ErrNoSession = errors.New("no session in context")

const deleteSessionScript = `
redis.call("SREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// record is the stored form of a session.
type record struct {
	UserID    string `json:"user_id,omitempty"`
	CSRFToken string `json:"csrf_token"`
	Remember  bool   `json:"remember,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// Config tunes a Store. Zero durations fall back to two hours and thirty days.
type Config struct {
	Prefix      string
	TTL         time.Duration
	RememberTTL time.Duration
}

// Store keeps sessions under "<prefix>:<id>" and indexes logged-in sessions
// per user under "<prefix>:user:<user id>".
type Store struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewStore returns a Store over client.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	return &Store{redis: client, config: cfg, now: time.Now}
}

func (s *Store) key(id string) string {
	return s.config.Prefix + ":" + id
}

func (s *Store) userKey(userID string) string {
	return s.config.Prefix + ":user:" + userID
}

func (s *Store) ttl(remember bool) time.Duration {
	if remember {
		return s.config.RememberTTL
	}
	return s.config.TTL
}

// Load returns the session with id, or a new anonymous session when id is
// empty or unknown. New sessions are persisted.
func (s *Store) Load(ctx context.Context, id string) (*Handle, error) {
	if id != "" {
		rec, found, err := s.read(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			return &Handle{ID: id, UserID: rec.UserID, CSRFToken: rec.CSRFToken, Remember: rec.Remember}, nil
		}
	}

	h := &Handle{ID: uuid.NewString()}
	if err := s.regenerateCSRF(h); err != nil {
		return nil, err
	}
	if err := s.save(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Login binds userID to the session in ctx under a fresh session id.
func (s *Store) Login(ctx context.Context, userID string, remember bool) error {
	h, ok := HandleFromContext(ctx)
	if !ok {
		return ErrNoSession
	}
	if userID == "" {
		return errors.New("session login requires a user id")
	}

	oldID, oldUser := h.ID, h.UserID
	h.ID = uuid.NewString()
	h.UserID = userID
	h.Remember = remember

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.queueSave(ctx, pipe, h); err != nil {
			return err
		}
		pipe.SAdd(ctx, s.userKey(userID), h.ID)
		pipe.Expire(ctx, s.userKey(userID), s.config.RememberTTL)
		if oldID != "" {
			pipe.Del(ctx, s.key(oldID))
			if oldUser != "" {
				pipe.SRem(ctx, s.userKey(oldUser), oldID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Logout removes the user from the session in ctx. The session itself stays.
func (s *Store) Logout(ctx context.Context) error {
	h, ok := HandleFromContext(ctx)
	if !ok {
		return ErrNoSession
	}
	if h.UserID == "" {
		return nil
	}

	userID := h.UserID
	h.UserID = ""
	h.Remember = false

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.queueSave(ctx, pipe, h); err != nil {
			return err
		}
		pipe.SRem(ctx, s.userKey(userID), h.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// InvalidateSession destroys the session in ctx and replaces it with an
// empty one under a new id.
func (s *Store) InvalidateSession(ctx context.Context) error {
	h, ok := HandleFromContext(ctx)
	if !ok {
		return ErrNoSession
	}
	if err := s.destroy(ctx, h.ID, h.UserID); err != nil {
		return err
	}

	h.ID = uuid.NewString()
	h.UserID = ""
	h.Remember = false
	return s.save(ctx, h)
}

// RegenerateToken issues a new CSRF token for the session in ctx.
func (s *Store) RegenerateToken(ctx context.Context) (string, error) {
	h, ok := HandleFromContext(ctx)
	if !ok {
		return "", ErrNoSession
	}
	if err := s.regenerateCSRF(h); err != nil {
		return "", err
	}
	if err := s.save(ctx, h); err != nil {
		return "", err
	}
	return h.CSRFToken, nil
}

// User returns the id of the user logged into the session in ctx.
func (s *Store) User(ctx context.Context) (string, bool) {
	h, ok := HandleFromContext(ctx)
	if !ok || !h.Authenticated() {
		return "", false
	}
	return h.UserID, true
}

// ActiveSessionIDs returns the indexed session ids of userID.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// DeleteAllForUser destroys every indexed session of userID.
//
// ATOMICITY NOTE: the index is read before the delete runs, so a session
// logged in between the two steps survives until it expires.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	ids, err := s.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.userKey(userID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, id string) (record, bool, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt blob is treated as a missing session.
		return record{}, false, nil
	}
	return rec, true, nil
}

func (s *Store) save(ctx context.Context, h *Handle) error {
	data, err := s.encode(h)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(h.ID), data, s.ttl(h.Remember)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) queueSave(ctx context.Context, pipe redis.Pipeliner, h *Handle) error {
	data, err := s.encode(h)
	if err != nil {
		return err
	}
	pipe.Set(ctx, s.key(h.ID), data, s.ttl(h.Remember))
	return nil
}

func (s *Store) encode(h *Handle) ([]byte, error) {
	return json.Marshal(record{
		UserID:    h.UserID,
		CSRFToken: h.CSRFToken,
		Remember:  h.Remember,
		UpdatedAt: s.now().Unix(),
	})
}

func (s *Store) destroy(ctx context.Context, id, userID string) error {
	if id == "" {
		return nil
	}
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(id), s.userKey(userID)}, id).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) regenerateCSRF(h *Handle) error {
	token, err := internal.NewCSRFToken()
	if err != nil {
		return fmt.Errorf("generate csrf token: %w", err)
	}
	h.CSRFToken = token
	return nil
}
