package resolver

import "testing"

func TestResolveSuffixRules(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"orders_runtime", "orders"},
		{"product_333367878", "product"},
		{"order_bom_item_333367878_2018", "order_bom_item"},
		{"order_bom_0e9b60a4_d6ed_473d_a326_9e8c8f744ec2", "order_bom"},
		{"order_bom_item_05355967_c503_4a2d_9dd1_2dd7a9ffa15e_2030", "order_bom_item"},
		{"users_a1b2c3d4-e5f6-7890-abcd-ef1234567890", "users"},
		{"accounts_1a2b3c4d5e6f7890abcdef1234567890", "accounts"},
		{"employee", "employee"},
	}
	for _, c := range cases {
		if got := Resolve(c.raw); got != c.want {
			t.Errorf("Resolve(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestResolveRejectsNonNineDigitRuns(t *testing.T) {
	for _, raw := range []string{"table_12345678", "table_1234567890"} {
		if got := Resolve(raw); got != raw {
			t.Errorf("Resolve(%q) = %q, want input unchanged", raw, got)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	inputs := []string{
		"orders_runtime",
		"orders_runtime_runtime",
		"product_333367878",
		"order_bom_item_333367878_2018",
		"users_a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		"accounts_1a2b3c4d5e6f7890abcdef1234567890",
		"plain_table",
		"_runtime",
		"",
	}
	for _, raw := range inputs {
		once := Resolve(raw)
		if twice := Resolve(once); twice != once {
			t.Errorf("Resolve not idempotent for %q: first %q, second %q", raw, once, twice)
		}
	}
}

func TestResolveKeepsBareSuffixNames(t *testing.T) {
	// A name that is nothing but a suffix stays as-is rather than
	// resolving to the empty string.
	if got := Resolve("_runtime"); got != "_runtime" {
		t.Errorf("Resolve(%q) = %q, want input unchanged", "_runtime", got)
	}
}

func TestRulePriorityLongestFirst(t *testing.T) {
	// digits+year must win over the bare 9-digit rule, otherwise the year
	// would survive as a dangling suffix.
	if got := Resolve("order_bom_item_333367878_2018"); got != "order_bom_item" {
		t.Fatalf("digits+year under-stripped: got %q", got)
	}
	// uuid+year must win over the bare underscore uuid rule.
	raw := "order_bom_item_05355967_c503_4a2d_9dd1_2dd7a9ffa15e_2030"
	if got := Resolve(raw); got != "order_bom_item" {
		t.Fatalf("uuid+year under-stripped: got %q", got)
	}
}

func TestIdentity(t *testing.T) {
	if got := Identity("orders_runtime"); got != "orders_runtime" {
		t.Fatalf("Identity altered its input: %q", got)
	}
}
