package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User представляет пользователя в системе
type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetUserByID возвращает пользователя по его ID
func GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	var user User
	err := Pool.QueryRow(ctx, `
		SELECT id, username, COALESCE(email, ''), COALESCE(avatar_url, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// FetchUsernames возвращает имена пользователей для набора ID одним запросом
func FetchUsernames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	rows, err := Pool.Query(ctx, `
		SELECT id, username FROM users WHERE id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, err
		}
		names[id] = username
	}

	return names, rows.Err()
}

// GetUsernameOrDefault возвращает имя пользователя или запасное значение
func GetUsernameOrDefault(ctx context.Context, userID uuid.UUID, fallback string) string {
	var username string
	err := Pool.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if err != nil || username == "" {
		return fallback
	}
	return username
}
