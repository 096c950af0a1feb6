package filter

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Lexer", func() {
	scan := func(input string) string {
		l := newLexer([]byte(input))
		tokens := []string{}
		for {
			_, tok, _ := l.Scan()
			tokens = append(tokens, tok.String())
			if tok == eol || tok == illegal {
				break
			}
		}
		return strings.Join(tokens, " ")
	}

	DescribeTable("Scan",
		func(input, output string) {
			Expect(scan(input)).To(Equal(output))
		},
		// operators
		Entry(nil, "= != < <= > >= ~ !~", "equal notEqual less lte greater gte like notLike eol"),
		Entry(nil, "and or AND Or", "and or and or eol"),
		Entry(nil, "( )", "lbracket rbracket eol"),
		Entry(nil, "not in IS Null ,", "not in is null comma eol"),

		// strings
		Entry(nil, "'failed'", "stringLit eol"),
		Entry(nil, `"successful"`, "stringLit eol"),
		Entry(nil, "'a=b<c'", "stringLit eol"),
		Entry(nil, "''", "illegal"),
		Entry(nil, "'unclosed", "illegal"),
		Entry(nil, "'it''s'", "stringLit eol"),

		// regex
		Entry(nil, "/update/", "regexLit eol"),
		Entry(nil, "//", "regexLit eol"),
		Entry(nil, `/jobs\/[0-9]+/`, "regexLit eol"),
		Entry(nil, "/unclosed", "illegal"),

		// booleans
		Entry(nil, "true FALSE", "boolean boolean eol"),

		// durations
		Entry(nil, "30", "quantity eol"),
		Entry(nil, "1.5", "quantity eol"),
		Entry(nil, "30s", "quantity eol"),
		Entry(nil, "2m", "quantity eol"),
		Entry(nil, "1.5h", "quantity eol"),
		Entry(nil, "10S 10M 10H", "quantity quantity quantity eol"),
		Entry(nil, "10sec", "illegal"),
		Entry(nil, "10kb", "illegal"),
		Entry(nil, "1.", "illegal"),

		// identifiers
		Entry(nil, "status", "identifier eol"),
		Entry(nil, "job.status", "identifier eol"),
		Entry(nil, "android origin", "identifier identifier eol"),
		Entry(nil, "node2 is_null", "identifier identifier eol"),
		Entry(nil, "job..status", "illegal"),
		Entry(nil, "job.", "illegal"),

		// whitespace
		Entry(nil, "", "eol"),
		Entry(nil, " \t\n", "eol"),
		Entry(nil, "status='failed'", "identifier equal stringLit eol"),

		// illegal characters
		Entry(nil, "!", "illegal"),
		Entry(nil, "@", "illegal"),
		Entry(nil, ";", "illegal"),

		// whole filters
		Entry(nil, "status = 'failed' and elapsed > 2m", "identifier equal stringLit and identifier greater quantity eol"),
		Entry(nil, "name ~ /update/ or failed = true", "identifier like regexLit or identifier equal boolean eol"),
		Entry(nil, "(type = 'job' or type = 'system_job') and node != 'tower-1'",
			"lbracket identifier equal stringLit or identifier equal stringLit rbracket and identifier notEqual stringLit eol"),
	)

	It("should report positions", func() {
		l := newLexer([]byte("status = 'x'"))
		pos, tok, val := l.Scan()
		Expect([]any{pos, tok, val}).To(Equal([]any{0, identifier, "status"}))
		pos, tok, _ = l.Scan()
		Expect([]any{pos, tok}).To(Equal([]any{7, equal}))
		pos, tok, val = l.Scan()
		Expect([]any{pos, tok, val}).To(Equal([]any{9, stringLit, "x"}))
	})

	It("should unescape doubled quotes", func() {
		_, tok, val := newLexer([]byte(`"say ""hi"""`)).Scan()
		Expect(tok).To(Equal(stringLit))
		Expect(val).To(Equal(`say "hi"`))
	})
})
