package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hypernova-labs/storefront-service/internal/config"
	"github.com/hypernova-labs/storefront-service/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisTimeout = 3 * time.Second

// Redis representa la conexión a Redis
type Redis struct {
	*redis.Client
}

// ConnectRedis establece la conexión a Redis
func ConnectRedis(cfg *config.Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}

	return &Redis{client}, nil
}

// HealthCheck verifica la salud de Redis
func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	return r.Ping(ctx).Err()
}

// TokenStore guarda las credenciales de cada sesión en un hash de Redis
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewTokenStore crea el almacén de credenciales
func NewTokenStore(r *Redis, ttl time.Duration, logger *logrus.Logger) *TokenStore {
	return &TokenStore{
		client: r.Client,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// Save guarda el token, el refresh token y el perfil de la sesión
func (s *TokenStore) Save(ctx context.Context, session models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	fields := map[string]interface{}{
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
	}
	if session.Profile != nil {
		profile, err := json.Marshal(session.Profile)
		if err != nil {
			return fmt.Errorf("error encoding profile: %w", err)
		}
		fields["profile"] = string(profile)
	}

	key := sessionKey(session.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}

	s.logger.WithField("session_id", session.ID).Debug("Session credentials saved")
	return nil
}

// AccessToken retorna el token de acceso, ErrSessionNotFound si no hay
func (s *TokenStore) AccessToken(ctx context.Context, sessionID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	token, err := s.client.HGet(ctx, sessionKey(sessionID), "access_token").Result()
	if errors.Is(err, redis.Nil) || (err == nil && token == "") {
		return "", models.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error reading access token: %w", err)
	}
	return token, nil
}

// HasAccessToken indica si la sesión tiene un token guardado
func (s *TokenStore) HasAccessToken(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.AccessToken(ctx, sessionID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Profile retorna el perfil guardado o nil si la sesión no tiene uno
func (s *TokenStore) Profile(ctx context.Context, sessionID string) (*models.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	raw, err := s.client.HGet(ctx, sessionKey(sessionID), "profile").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading profile: %w", err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("error decoding profile: %w", err)
	}
	return &profile, nil
}

// Clear elimina las credenciales de la sesión
func (s *TokenStore) Clear(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("error clearing session: %w", err)
	}

	s.logger.WithField("session_id", sessionID).Debug("Session credentials cleared")
	return nil
}
