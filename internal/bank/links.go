package bank

import "strings"

// All six apps parse the same EMV-style fragment, so the identical artifact
// goes into every deep link regardless of which bank produced the checksum.
var linkTable = []struct {
	name string
	base string
}{
	{"DemirBank", "https://retail.demirbank.kg/#"},
	{"O!Money", "https://api.dengi.o.kg/ru/qr/#"},
	{"Balance.kg", "https://balance.kg/#"},
	{"Bakai", "https://bakai24.app/#"},
	{"MegaPay", "https://megapay.kg/#"},
	{"MBank", "https://app.mbank.kg/qr/#"},
}

// bank code aliases, lowercased
var bankAliases = map[string]string{
	"demirbank": "DemirBank",
	"demir": "DemirBank",
	"omoney": "O!Money",
	"o!money": "O!Money",
	"odengi": "O!Money",
	"balance": "Balance.kg",
	"balancekg": "Balance.kg",
	"balance.kg": "Balance.kg",
	"bakai": "Bakai",
	"bakai24": "Bakai",
	"megapay": "MegaPay",
	"mega": "MegaPay",
	"mbank": "MBank",
}

const defaultBank = "DemirBank"

// ResolveLinks embeds the QR artifact into every bank's deep-link template.
// Both the canonical and the lowercased names are present so lookups survive
// whatever casing the client sent.
func ResolveLinks(qrHash string) map[string]string {
	links := make(map[string]string, len(linkTable)*2)
	for _, row := range linkTable {
		url := row.base + qrHash
		links[row.name] = url
		links[strings.ToLower(row.name)] = url
	}
	return links
}

// CanonicalBankNames returns the six names in table order, for response
// annotation.
func CanonicalBankNames() []string {
	names := make([]string, 0, len(linkTable))
	for _, row := range linkTable {
		names = append(names, row.name)
	}
	return names
}

// PickPrimary selects the link for the requested bank code, falling back to
// DemirBank for unknown codes or absent keys.
func PickPrimary(bankCode string, links map[string]string) string {
	code := strings.ToLower(strings.TrimSpace(bankCode))
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "_", "")
	code = strings.ReplaceAll(code, "-", "")
	name, ok := bankAliases[code]
	if !ok {
		name = defaultBank
	}
	if url, ok := links[name]; ok {
		return url
	}
	return links[defaultBank]
}
