package filter

// Token is the kind of a lexeme.
type Token int

const (
	illegal Token = iota
	eol

	and
	or
	not
	in
	is
	null
	boolean

	equal
	notEqual
	less
	lte
	greater
	gte
	like
	notLike

	lbracket
	rbracket
	comma

	identifier
	stringLit
	regexLit
	quantity
)

var tokenNames = [...]string{
	illegal:    "illegal",
	eol:        "eol",
	and:        "and",
	or:         "or",
	not:        "not",
	in:         "in",
	is:         "is",
	null:       "null",
	boolean:    "boolean",
	equal:      "equal",
	notEqual:   "notEqual",
	less:       "less",
	lte:        "lte",
	greater:    "greater",
	gte:        "gte",
	like:       "like",
	notLike:    "notLike",
	lbracket:   "lbracket",
	rbracket:   "rbracket",
	comma:      "comma",
	identifier: "identifier",
	stringLit:  "stringLit",
	regexLit:   "regexLit",
	quantity:   "quantity",
}

func (t Token) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "unknown"
}

// comparison reports whether t compares a field with a plain value.
func (t Token) comparison() bool {
	return t >= equal && t <= gte
}

// keywords are matched case-insensitively.
var keywords = map[string]Token{
	"and":   and,
	"or":    or,
	"not":   not,
	"in":    in,
	"is":    is,
	"null":  null,
	"true":  boolean,
	"false": boolean,
}

// symbols is ordered so that two-character operators win over their prefixes.
var symbols = []struct {
	text string
	tok  Token
}{
	{"!=", notEqual},
	{"!~", notLike},
	{"<=", lte},
	{">=", gte},
	{"=", equal},
	{"<", less},
	{">", greater},
	{"~", like},
	{"(", lbracket},
	{")", rbracket},
	{",", comma},
}

var comparisonSql = map[Token]string{
	equal:    "=",
	notEqual: "!=",
	less:     "<",
	lte:      "<=",
	greater:  ">",
	gte:      ">=",
	and:      "AND",
	or:       "OR",
}
