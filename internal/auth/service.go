package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")

	jwtSecretOnce    sync.Once
	jwtSecretRuntime []byte
	jwtSecretErr     error
)

func jwtSecretFromEnv() ([]byte, error) {
	jwtSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
		if secret != "" {
			jwtSecretRuntime = []byte(secret)
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			jwtSecretErr = fmt.Errorf("failed to generate JWT fallback secret: %w", err)
			return
		}

		jwtSecretRuntime = []byte(base64.RawURLEncoding.EncodeToString(buf))
		log.Print("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if jwtSecretErr != nil {
		return nil, jwtSecretErr
	}
	if len(jwtSecretRuntime) == 0 {
		return nil, errors.New("JWT secret unavailable")
	}

	return jwtSecretRuntime, nil
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", req.Email).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	var user User
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, created_at
	`, req.Email, string(hash)).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var user User
	err := s.db.QueryRow(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = $1", req.Email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

func generateToken(userID uuid.UUID) (string, error) {
	secretKey, err := jwtSecretFromEnv()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// Saved topics

func (s *Service) SaveTopic(ctx context.Context, userID uuid.UUID, topicCode string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO saved_topics (user_id, topic_code)
		VALUES ($1, $2)
		ON CONFLICT (user_id, topic_code) DO NOTHING
	`, userID, topicCode)
	return err
}

func (s *Service) UnsaveTopic(ctx context.Context, userID uuid.UUID, topicCode string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM saved_topics
		WHERE user_id = $1 AND topic_code = $2
	`, userID, topicCode)
	return err
}

// SavedTopic is a lightweight listing row for a user's bookmarked topics.
type SavedTopic struct {
	TopicCode   string    `json:"topicCode"`
	TopicTitle  string    `json:"topicTitle"`
	Component   string    `json:"component"`
	Program     string    `json:"program"`
	TopicStatus string    `json:"topicStatus"`
	SavedAt     time.Time `json:"savedAt"`
}

func (s *Service) GetSavedTopics(ctx context.Context, userID uuid.UUID) ([]SavedTopic, error) {
	rows, err := s.db.Query(ctx, `
		SELECT st.topic_code, COALESCE(t.topic_title, ''), COALESCE(t.component, ''),
		       COALESCE(t.program, ''), COALESCE(t.topic_status, ''), st.saved_at
		FROM saved_topics st
		LEFT JOIN topics t ON t.topic_code = st.topic_code
		WHERE st.user_id = $1
		ORDER BY st.saved_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var saved []SavedTopic
	for rows.Next() {
		var item SavedTopic
		if err := rows.Scan(&item.TopicCode, &item.TopicTitle, &item.Component,
			&item.Program, &item.TopicStatus, &item.SavedAt); err != nil {
			return nil, err
		}
		saved = append(saved, item)
	}
	return saved, rows.Err()
}
