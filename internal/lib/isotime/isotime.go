// Package isotime разбирает и форматирует метки времени ISO-8601,
// которые приходят от провайдера и хранятся в записях.
package isotime

import (
	"fmt"
	"strings"
	"time"
)

// Без смещения время считается UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Parse разбирает строку ISO-8601 и возвращает момент времени в UTC.
// Суффикс "Z" нормализуется в "+00:00" перед разбором.
func Parse(value string) (time.Time, error) {
	const op = "isotime.Parse"

	s := strings.TrimSpace(value)
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: invalid ISO-8601 timestamp %q", op, value)
}

// Valid сообщает, разбирается ли строка как ISO-8601.
func Valid(value string) bool {
	_, err := Parse(value)
	return err == nil
}

// Format возвращает время в UTC с обозначением "Z".
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Normalize приводит строку ISO-8601 к каноническому виду Format.
func Normalize(value string) (string, error) {
	t, err := Parse(value)
	if err != nil {
		return "", err
	}
	return Format(t), nil
}
