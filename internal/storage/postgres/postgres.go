// Package postgres реализует storage.Table поверх PostgreSQL: записи всех
// таблиц лежат документами jsonb в одной таблице records с ключом
// (table_name, pk, sk).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Table возвращает логическую таблицу с именем name.
func (s *Storage) Table(name string) *Table {
	return &Table{db: s.DB, name: name}
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

// Table — логическая таблица внутри records.
type Table struct {
	db   *sql.DB
	name string
}

func (t *Table) Name() string {
	return t.name
}

// Put записывает элементы в одной транзакции, заменяя существующие.
func (t *Table) Put(ctx context.Context, items ...any) error {
	const op = "storage.postgres.Put"

	if len(items) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrEmptyWrite)
	}

	type row struct {
		key  storage.Key
		data []byte
	}
	rows := make([]row, 0, len(items))
	for _, v := range items {
		doc, err := storage.ToItem(v)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		key, err := storage.KeyOf(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		rows = append(rows, row{key: key, data: data})
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO records (table_name, pk, sk, item)
			  VALUES ($1, $2, $3, $4::jsonb)
			  ON CONFLICT (table_name, pk, sk)
			  DO UPDATE SET item = EXCLUDED.item, updated_at = NOW()`
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, query, t.name, r.key.PK, r.key.SK, string(r.data)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *Table) Get(ctx context.Context, key storage.Key, out any) error {
	const op = "storage.postgres.Get"

	query := `SELECT item FROM records WHERE table_name = $1 AND pk = $2 AND sk = $3`
	var data []byte
	err := t.db.QueryRowContext(ctx, query, t.name, key.PK, key.SK).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *Table) Query(ctx context.Context, pk string, out any) error {
	const op = "storage.postgres.Query"

	query := `SELECT item FROM records WHERE table_name = $1 AND pk = $2 ORDER BY sk`
	rows, err := t.db.QueryContext(ctx, query, t.name, pk)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		docs = append(docs, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return storage.Decode(docs, out)
}

// Update сливает заданные атрибуты в документ и удаляет атрибуты со значением nil.
func (t *Table) Update(ctx context.Context, key storage.Key, attrs map[string]any) error {
	const op = "storage.postgres.Update"

	if len(attrs) == 0 {
		return fmt.Errorf("%s: nothing to update", op)
	}
	set := make(map[string]any, len(attrs))
	remove := make([]string, 0)
	for name, value := range attrs {
		if name == storage.AttrPK || name == storage.AttrSK {
			return fmt.Errorf("%s: key attribute %q is immutable", op, name)
		}
		if value == nil {
			remove = append(remove, name)
			continue
		}
		set[name] = value
	}
	patch, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE records
			  SET item = (item || $4::jsonb) - $5::text[], updated_at = NOW()
			  WHERE table_name = $1 AND pk = $2 AND sk = $3`
	res, err := t.db.ExecContext(ctx, query, t.name, key.PK, key.SK, string(patch), remove)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}
