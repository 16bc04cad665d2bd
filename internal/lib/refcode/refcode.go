// Package refcode генерирует реферальные коды аккаунтов.
//
// Код выдается один раз при создании аккаунта и больше никогда не меняется.
// Уникальность в пределах всех аккаунтов гарантирует уникальный индекс в базе:
// при коллизии генерация повторяется на стороне вызывающего кода.
package refcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet — символы без визуально неразличимых пар (0/O, 1/I/L).
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 8

// Generate возвращает новый реферальный код вида "MP-XXXXXXXX".
func Generate() (string, error) {
	const op = "refcode.Generate"

	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var b strings.Builder
	b.Grow(codeLength + 3)
	b.WriteString("MP-")
	for _, c := range buf {
		b.WriteByte(Alphabet[int(c)%len(Alphabet)])
	}
	return b.String(), nil
}

// Valid сообщает, похожа ли строка на реферальный код, выданный сервисом.
// Используется для дешёвой отбраковки мусорных значений referred_by
// до похода в базу.
func Valid(code string) bool {
	if len(code) != codeLength+3 || !strings.HasPrefix(code, "MP-") {
		return false
	}
	for _, r := range code[3:] {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
