package bank

import (
	"strings"
	"testing"
)

func TestResolveLinks(t *testing.T) {
	const hash = "00020101540425506304804C"
	links := ResolveLinks(hash)

	want := map[string]string{
		"DemirBank":  "https://retail.demirbank.kg/#" + hash,
		"O!Money":    "https://api.dengi.o.kg/ru/qr/#" + hash,
		"Balance.kg": "https://balance.kg/#" + hash,
		"Bakai":      "https://bakai24.app/#" + hash,
		"MegaPay":    "https://megapay.kg/#" + hash,
		"MBank":      "https://app.mbank.kg/qr/#" + hash,
	}
	for name, url := range want {
		if links[name] != url {
			t.Errorf("links[%q] = %q, want %q", name, links[name], url)
		}
		if links[strings.ToLower(name)] != url {
			t.Errorf("lowercase key %q missing or wrong", strings.ToLower(name))
		}
	}
	if len(links) != 12 {
		t.Errorf("len(links) = %d, want 12", len(links))
	}
}

func TestCanonicalBankNames(t *testing.T) {
	names := CanonicalBankNames()
	want := []string{"DemirBank", "O!Money", "Balance.kg", "Bakai", "MegaPay", "MBank"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestPickPrimary(t *testing.T) {
	links := ResolveLinks("HASH")
	cases := []struct {
		code string
		want string
	}{
		{"bakai", links["Bakai"]},
		{"BAKAI24", links["Bakai"]},
		{"o!money", links["O!Money"]},
		{"O MONEY", links["O!Money"]},
		{"balance.kg", links["Balance.kg"]},
		{"mega_pay", links["MegaPay"]},
		{"m-bank", links["MBank"]},
		{"demir", links["DemirBank"]},
		// Unknown or empty codes fall back to DemirBank.
		{"", links["DemirBank"]},
		{"sberbank", links["DemirBank"]},
	}
	for _, tc := range cases {
		if got := PickPrimary(tc.code, links); got != tc.want {
			t.Errorf("PickPrimary(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
