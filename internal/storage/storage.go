// Package storage описывает порт key-value хранилища записей и
// типизированные обёртки над ним для подписок и планов.
//
// Конкретные реализации (DynamoDB, PostgreSQL, память) живут в подпакетах
// и параметризуются только именем таблицы.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound — запись по ключу отсутствует.
	ErrNotFound = errors.New("record not found")
	// ErrEmptyWrite — запись пустого набора элементов.
	ErrEmptyWrite = errors.New("data cannot be empty")
)

// Имена атрибутов составного ключа.
const (
	AttrPK = "pk"
	AttrSK = "sk"
)

// Key — составной ключ записи.
type Key struct {
	PK string
	SK string
}

// Table — операции над одной таблицей хранилища.
type Table interface {
	// Put записывает элементы целиком. Пустой набор — ErrEmptyWrite.
	Put(ctx context.Context, items ...any) error
	// Get читает одну запись по ключу в out. Нет записи — ErrNotFound.
	Get(ctx context.Context, key Key, out any) error
	// Query читает все записи partition key в out (указатель на срез).
	Query(ctx context.Context, pk string, out any) error
	// Update меняет перечисленные атрибуты. Значение nil удаляет атрибут.
	// Нет записи — ErrNotFound.
	Update(ctx context.Context, key Key, attrs map[string]any) error
}

// Item — запись в виде документа, как её видят JSON-бэкенды.
type Item map[string]any

// ToItem переводит запись в документ через её json-теги.
func ToItem(v any) (Item, error) {
	const op = "storage.ToItem"

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

// KeyOf извлекает составной ключ из документа.
func KeyOf(item Item) (Key, error) {
	pk, _ := item[AttrPK].(string)
	sk, _ := item[AttrSK].(string)
	if pk == "" || sk == "" {
		return Key{}, fmt.Errorf("storage.KeyOf: item must have non-empty %q and %q", AttrPK, AttrSK)
	}
	return Key{PK: pk, SK: sk}, nil
}

// Decode раскладывает документ или срез документов в out.
func Decode(src any, out any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("storage.Decode: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("storage.Decode: %w", err)
	}
	return nil
}

// Merge применяет частичное обновление к документу.
func Merge(item Item, attrs map[string]any) error {
	for name, value := range attrs {
		if name == AttrPK || name == AttrSK {
			return fmt.Errorf("storage.Merge: key attribute %q is immutable", name)
		}
		if value == nil {
			delete(item, name)
			continue
		}
		item[name] = value
	}
	return nil
}
