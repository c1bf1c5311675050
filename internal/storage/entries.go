package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// CreateEntry сохраняет запись дневника и возвращает её с присвоенным id.
func (s *Storage) CreateEntry(ctx context.Context, entry models.JournalEntry) (*models.JournalEntry, error) {
	const op = "storage.CreateEntry"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	attachments := entry.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.DB.QueryRowContext(ctx, `INSERT INTO entries (id, user_uid, content, attachments)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		entry.ID, entry.UserUID, entry.Content, string(raw)).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &entry, nil
}

// ListEntries возвращает записи пользователя, начиная с самых старых.
func (s *Storage) ListEntries(ctx context.Context, uid string, limit, offset int) ([]*models.JournalEntry, error) {
	const op = "storage.ListEntries"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_uid, content, attachments, created_at
		FROM entries
		WHERE user_uid = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, uid, limit, offset)
	if err != nil {
		if pgCode(err) == pgInvalidTextPresent {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.JournalEntry
	for rows.Next() {
		var (
			item models.JournalEntry
			raw  []byte
		)
		if err := rows.Scan(&item.ID, &item.UserUID, &item.Content, &raw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &item.Attachments); err != nil {
				return nil, fmt.Errorf("%s: decode attachments: %w", op, err)
			}
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteEntriesBatch удаляет не более limit записей пользователя и
// возвращает количество удалённых. Ноль означает, что записей не осталось.
func (s *Storage) DeleteEntriesBatch(ctx context.Context, uid string, limit int) (int, error) {
	const op = "storage.DeleteEntriesBatch"
	if err := alive(ctx, op); err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM entries
		WHERE id IN (SELECT id FROM entries WHERE user_uid = $1 LIMIT $2)`, uid, limit)
	if err != nil {
		if pgCode(err) == pgInvalidTextPresent {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}
