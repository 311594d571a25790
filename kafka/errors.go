package kafka

import "strings"

// IsRetryableError reports whether a broker error is worth retrying: lost
// connections, missing leaders and timeouts. It fits RetryConfig.RetryIf
// of source.WithRetry around a Source.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"broker not available",
		"leader not available",
		"not enough replicas",
		"request timed out",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
