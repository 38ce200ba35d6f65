package token

import "sort"

// keywords is sorted so Lookup can binary-search it, per spec §4.1: "Keyword (looked up
// in a sorted, case-insensitive keyword table by binary search)". Words are stored upper-cased;
// Lookup upper-cases the candidate before searching.
var keywords = []string{
	"ALL",
	"AND",
	"AS",
	"ASC",
	"BY",
	"CALL",
	"CASE",
	"CONTAINS",
	"CREATE",
	"DELETE",
	"DESC",
	"DETACH",
	"DISTINCT",
	"ELSE",
	"END",
	"ENDS",
	"EXISTS",
	"FALSE",
	"IN",
	"IS",
	"LIMIT",
	"MATCH",
	"MERGE",
	"NOT",
	"NULL",
	"ON",
	"OPTIONAL",
	"OR",
	"ORDER",
	"REDUCE",
	"REMOVE",
	"RETURN",
	"SET",
	"SHORTESTPATH",
	"SKIP",
	"STARTS",
	"THEN",
	"TRUE",
	"UNION",
	"UNWIND",
	"WHEN",
	"WHERE",
	"WITH",
	"XOR",
	"YIELD",
}

func init() {
	if !sort.StringsAreSorted(keywords) {
		panic("token: keywords table is not sorted")
	}
}

// Lookup returns (upper-cased word, true) if word is a keyword (case-insensitive), and
// ("", false) otherwise. The scanner calls this for every scanned identifier so a keyword match
// "subsumes" an identifier per spec §4.1.
func Lookup(word string) (string, bool) {
	up := toUpperASCII(word)
	i := sort.SearchStrings(keywords, up)
	if i < len(keywords) && keywords[i] == up {
		return up, true
	}
	return "", false
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
