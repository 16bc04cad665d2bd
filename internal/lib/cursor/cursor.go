// Package cursor кодирует позицию keyset-пагинации в непрозрачный токен.
//
// Токен — base64 от JSON с парой (created_at, id) последнего элемента
// страницы. Клиент не должен разбирать и тем более конструировать токены:
// формат может поменяться без предупреждения.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformed возвращается при разборе токена, который сервис не выдавал.
var ErrMalformed = errors.New("malformed pagination cursor")

// Token — позиция в keyset-выборке.
type Token struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Encode сериализует токен в непрозрачную строку.
func Encode(t Token) string {
	data, err := json.Marshal(t)
	if err != nil {
		// Token состоит из сериализуемых полей, сюда попасть нельзя.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode разбирает токен. Пустая строка означает первую страницу
// и возвращает (nil, nil).
func Decode(s string) (*Token, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrMalformed
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, ErrMalformed
	}
	if t.ID == "" || t.CreatedAt.IsZero() {
		return nil, ErrMalformed
	}
	return &t, nil
}
