package chat

import "errors"

// KeyPrefix namespaces history keys, matching the layout LangChain's
// RedisChatMessageHistory writes.
const KeyPrefix = "message_store"

const keySeparator = ":"

// ErrTokenRequired reports a history key requested for an empty token.
var ErrTokenRequired = errors.New("session token is required")

// HistoryKey derives the storage key for a session token.
func HistoryKey(token string) (string, error) {
	if token == "" {
		return "", ErrTokenRequired
	}
	return KeyPrefix + keySeparator + token, nil
}
