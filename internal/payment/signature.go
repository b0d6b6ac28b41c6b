package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader — имя заголовка с подписью вебхука.
const SignatureHeader = "X-Payment-Signature"

// DefaultTolerance — допустимое расхождение метки времени подписи.
const DefaultTolerance = 5 * time.Minute

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature проверяет подпись вебхука вида "t=<unix>,v1=<hex>".
// Подписывается строка "<t>.<payload>" через HMAC-SHA256 с общим секретом.
// Метка времени старше tolerance отвергается, сравнение — за постоянное время.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var tsPart, sigPart string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			tsPart = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			sigPart = strings.TrimPrefix(part, "v1=")
		}
	}
	if tsPart == "" || sigPart == "" {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	signedAt := time.Unix(ts, 0)
	if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := Sign(payload, secret, signedAt)
	if !hmac.Equal([]byte(expected), []byte(sigPart)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign вычисляет подпись полезной нагрузки — используется провайдером и тестами.
func Sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureFor собирает значение заголовка целиком, как его шлёт провайдер.
func SignatureFor(payload []byte, secret string, ts time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), Sign(payload, secret, ts))
}
