package conversation

import (
	"testing"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/service/gateway"
)

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"Shipping Times"`, "Shipping Times"},
		{`'Return Policy'`, "Return Policy"},
		{`  "Order Help"  `, "Order Help"},
		{`The "Best" Deals`, `The "Best" Deals`},
		{`Don't Panic`, `Don't Panic`},
		{`""Double""`, `"Double"`},
		{`"`, chat.DefaultTitle},
		{"   ", chat.DefaultTitle},
		{gateway.NoResponse, chat.DefaultTitle},
	}
	for _, tc := range cases {
		if got := cleanTitle(tc.raw); got != tc.want {
			t.Fatalf("cleanTitle(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
