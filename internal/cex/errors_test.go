package cex

import (
	"errors"
	"testing"

	"github.com/adshao/go-binance/v2/common"
)

func TestIsRetriable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errors.New("dial tcp: connection refused"), true},
		{"server fault", &common.APIError{Code: -1001, Message: "DISCONNECTED"}, true},
		{"rate limited", &common.APIError{Code: -1003, Message: "TOO_MANY_REQUESTS"}, true},
		{"insufficient balance", &common.APIError{Code: -2019, Message: "Margin is insufficient"}, false},
		{"precision", &common.APIError{Code: -1111, Message: "Precision is over the maximum"}, false},
		{"unknown order", &common.APIError{Code: -2011, Message: "Unknown order sent"}, false},
	}
	for _, tc := range cases {
		if got := IsRetriable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetriable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsFilterReject(t *testing.T) {
	if !IsFilterReject(&common.APIError{Code: -1013, Message: "Filter failure: LOT_SIZE"}) {
		t.Fatal("expected filter reject")
	}
	if IsFilterReject(&common.APIError{Code: -2019}) {
		t.Fatal("balance reject is not a filter reject")
	}
	if IsFilterReject(errors.New("plain")) {
		t.Fatal("plain error is not a filter reject")
	}
}
