package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Binding associates a gesture label (stored form) with an action ID.
type Binding struct {
	ID        string
	Gesture   string
	Action    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

// Upsert creates or replaces the binding for a gesture.
func (r *BindingRepository) Upsert(gesture, action string) (*Binding, error) {
	now := time.Now()

	existing, err := r.GetByGesture(gesture)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		_, err := r.db.Exec(
			`UPDATE bindings SET action = ?, updated_at = ? WHERE gesture = ?`,
			action, now, gesture,
		)
		if err != nil {
			return nil, err
		}
		existing.Action = action
		existing.UpdatedAt = now
		return existing, nil
	}

	b := &Binding{
		ID:        uuid.NewString(),
		Gesture:   gesture,
		Action:    action,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = r.db.Exec(
		`INSERT INTO bindings (id, gesture, action, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Gesture, b.Action, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByGesture retrieves the binding for a gesture.
func (r *BindingRepository) GetByGesture(gesture string) (*Binding, error) {
	b := &Binding{}
	err := r.db.QueryRow(
		`SELECT id, gesture, action, created_at, updated_at
		 FROM bindings WHERE gesture = ?`,
		gesture,
	).Scan(&b.ID, &b.Gesture, &b.Action, &b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all bindings ordered by gesture.
func (r *BindingRepository) List() ([]*Binding, error) {
	rows, err := r.db.Query(
		`SELECT id, gesture, action, created_at, updated_at
		 FROM bindings ORDER BY gesture`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b := &Binding{}
		if err := rows.Scan(&b.ID, &b.Gesture, &b.Action, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bindings, nil
}

// Mappings returns all bindings as a gesture-to-action map.
func (r *BindingRepository) Mappings() (map[string]string, error) {
	bindings, err := r.List()
	if err != nil {
		return nil, err
	}

	m := make(map[string]string, len(bindings))
	for _, b := range bindings {
		m[b.Gesture] = b.Action
	}
	return m, nil
}

// Delete removes the binding for a gesture.
func (r *BindingRepository) Delete(gesture string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE gesture = ?`, gesture)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
