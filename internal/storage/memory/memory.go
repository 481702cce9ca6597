// Package memory реализует storage.Table в памяти процесса.
// Используется бэкендом "memory" для локального запуска и в тестах.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
)

// Table хранит документы одной таблицы, сгруппированные по partition key.
type Table struct {
	name  string
	mu    sync.RWMutex
	items map[string]map[string]storage.Item
}

func New(name string) *Table {
	return &Table{
		name:  name,
		items: make(map[string]map[string]storage.Item),
	}
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Put(ctx context.Context, items ...any) error {
	const op = "storage.memory.Put"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(items) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrEmptyWrite)
	}

	docs := make([]storage.Item, 0, len(items))
	for _, v := range items {
		doc, err := storage.ToItem(v)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if _, err := storage.KeyOf(doc); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		docs = append(docs, doc)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, doc := range docs {
		key, _ := storage.KeyOf(doc)
		part, ok := t.items[key.PK]
		if !ok {
			part = make(map[string]storage.Item)
			t.items[key.PK] = part
		}
		part[key.SK] = doc
	}
	return nil
}

func (t *Table) Get(ctx context.Context, key storage.Key, out any) error {
	const op = "storage.memory.Get"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	t.mu.RLock()
	doc, ok := t.items[key.PK][key.SK]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return storage.Decode(doc, out)
}

// Query возвращает записи partition key, упорядоченные по sort key.
func (t *Table) Query(ctx context.Context, pk string, out any) error {
	const op = "storage.memory.Query"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	t.mu.RLock()
	part := t.items[pk]
	sks := make([]string, 0, len(part))
	for sk := range part {
		sks = append(sks, sk)
	}
	sort.Strings(sks)
	docs := make([]storage.Item, 0, len(sks))
	for _, sk := range sks {
		docs = append(docs, part[sk])
	}
	t.mu.RUnlock()

	return storage.Decode(docs, out)
}

func (t *Table) Update(ctx context.Context, key storage.Key, attrs map[string]any) error {
	const op = "storage.memory.Update"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	patch, err := storage.ToItem(attrs)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	doc, ok := t.items[key.PK][key.SK]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	updated := make(storage.Item, len(doc))
	for k, v := range doc {
		updated[k] = v
	}
	if err := storage.Merge(updated, patch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	t.items[key.PK][key.SK] = updated
	return nil
}

// Len возвращает число записей в таблице.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, part := range t.items {
		n += len(part)
	}
	return n
}
