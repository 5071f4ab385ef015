package cex

import (
	"errors"

	"github.com/adshao/go-binance/v2/common"
)

// Binance error codes in the -1000 block that indicate a server or
// connectivity fault rather than a rejected request.
var retriableCodes = map[int64]bool{
	-1000: true, // UNKNOWN
	-1001: true, // DISCONNECTED
	-1003: true, // TOO_MANY_REQUESTS
	-1006: true, // UNEXPECTED_RESP
	-1007: true, // TIMEOUT
	-1016: true, // SERVICE_SHUTTING_DOWN
}

// IsRetriable classifies an error from the futures client: transport
// failures and server-side faults are retriable, venue rejects (precision,
// balance, filters, unknown order) are not.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return retriableCodes[apiErr.Code]
	}
	// Anything that never reached the venue (dial, timeout, context).
	return true
}

// IsFilterReject reports whether the venue rejected the order for precision
// or lot/tick filter reasons, which means the cached filters are stale.
func IsFilterReject(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1013, -1111, -4003, -4014:
			return true
		}
	}
	return false
}
