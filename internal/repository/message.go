package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fridgedoor/internal/model"
)

// MessageRepository is the data access layer for the messages table.
type MessageRepository interface {
	// Create inserts a message and reads it back. A failed read-back does not
	// fail the call; the result is then built from the submitted payload.
	Create(ctx context.Context, msg model.NewMessage) (model.CreateResult, error)
	// Get returns the message with the given id. A missing row is returned as
	// an error wrapping sql.ErrNoRows.
	Get(ctx context.Context, id int64) (model.Message, error)
	List(ctx context.Context, q model.ListQuery) ([]model.Message, error)
	// Random returns one message whose expiry is still in the future.
	Random(ctx context.Context) (model.Message, error)
	// Expire soft-deletes a message by setting its expiry to now. Unknown or
	// already-expired ids are not an error.
	Expire(ctx context.Context, id int64) error
}

type Option func(*mysqlRepository)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *mysqlRepository) {
		r.now = now
	}
}

type mysqlRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLRepository(db *sql.DB, opts ...Option) MessageRepository {
	r := &mysqlRepository{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const messageColumns = "id, text, font_color, font_family, created_at, expires_at"

const (
	insertMessageSQL = "INSERT INTO messages (text, font_color, font_family, created_at, expires_at) VALUES (?, ?, ?, ?, ?)"
	getMessageSQL    = "SELECT " + messageColumns + " FROM messages WHERE id = ?"
	listMessagesSQL  = "SELECT " + messageColumns + " FROM messages" +
		" WHERE id > ? AND (expires_at IS NULL OR ? OR expires_at > ?)" +
		" ORDER BY id ASC LIMIT ?"
	randomMessageSQL = "SELECT " + messageColumns + " FROM messages WHERE expires_at > ? ORDER BY RAND() LIMIT 1"
	expireMessageSQL = "UPDATE messages SET expires_at = ? WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)"
)

// created_at は DATETIME(6) に合わせてマイクロ秒に丸める
func (r *mysqlRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *mysqlRepository) Create(ctx context.Context, msg model.NewMessage) (model.CreateResult, error) {
	createdAt := r.timestamp()

	result, err := r.db.ExecContext(ctx, insertMessageSQL,
		msg.Text, nullString(msg.FontColor), nullString(msg.FontFamily), createdAt, nullTime(msg.Expiry()))
	if err != nil {
		return model.CreateResult{}, fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.CreateResult{}, fmt.Errorf("failed to retrieve message id: %w", err)
	}

	stored, err := r.Get(ctx, id)
	if err != nil {
		return model.CreateResult{
			Message: model.Message{
				ID:         id,
				Text:       msg.Text,
				FontColor:  msg.FontColor,
				FontFamily: msg.FontFamily,
				CreatedAt:  createdAt,
				ExpiresAt:  msg.Expiry(),
			},
			Source:  model.SourceEchoed,
			ReadErr: err,
		}, nil
	}

	return model.CreateResult{Message: stored, Source: model.SourceStored}, nil
}

func (r *mysqlRepository) Get(ctx context.Context, id int64) (model.Message, error) {
	msg, err := scanMessage(r.db.QueryRowContext(ctx, getMessageSQL, id))
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to get message %d: %w", id, err)
	}
	return msg, nil
}

func (r *mysqlRepository) List(ctx context.Context, q model.ListQuery) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, listMessagesSQL,
		q.SinceID, q.IncludeExpired, r.timestamp(), int64(q.Count))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgList := []model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgList = append(msgList, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return msgList, nil
}

func (r *mysqlRepository) Random(ctx context.Context) (model.Message, error) {
	msg, err := scanMessage(r.db.QueryRowContext(ctx, randomMessageSQL, r.timestamp()))
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to get random message: %w", err)
	}
	return msg, nil
}

func (r *mysqlRepository) Expire(ctx context.Context, id int64) error {
	now := r.timestamp()
	if _, err := r.db.ExecContext(ctx, expireMessageSQL, now, id, now); err != nil {
		return fmt.Errorf("failed to expire message %d: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (model.Message, error) {
	var (
		msg        model.Message
		fontColor  sql.NullString
		fontFamily sql.NullString
		expiresAt  sql.NullTime
	)
	if err := s.Scan(&msg.ID, &msg.Text, &fontColor, &fontFamily, &msg.CreatedAt, &expiresAt); err != nil {
		return model.Message{}, err
	}
	if fontColor.Valid {
		msg.FontColor = &fontColor.String
	}
	if fontFamily.Valid {
		msg.FontFamily = &fontFamily.String
	}
	if expiresAt.Valid {
		msg.ExpiresAt = &expiresAt.Time
	}
	return msg, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
