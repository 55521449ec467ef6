package clients

import "time"

const (
	APP_ID = "quiznox-api"

	MAX_SDK_ATTEMPTS = 3

	VALKEY_MAX_RETRIES  = 3
	VALKEY_RETRY_DELAY  = 250 * time.Millisecond
	VALKEY_PING_TIMEOUT = 3 * time.Second
)
