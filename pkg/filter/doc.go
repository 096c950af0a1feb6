// Package filter parses the small expression language used to select job
// observations, and renders it as a SQL WHERE clause.
//
//	status = 'failed' and elapsed > 2m
//	name ~ /update/ or (type = 'system_job' and node != 'tower-1')
//	status not in ('successful', 'canceled') and finished is null
//
// Durations accept an s, m or h suffix and are compared in seconds.
// Regex matches become regexp_matches calls, which DuckDB understands.
//
// Grammar
//
//	expression  : term ( "or" term )* ;
//	term        : factor ( "and" factor )* ;
//	factor      : "not" factor | "(" expression ")" | predicate ;
//	predicate   : IDENTIFIER ( "=" | "!=" | "<" | "<=" | ">" | ">=" ) value
//	            | IDENTIFIER ( "~" | "!~" ) REGEX_LITERAL
//	            | IDENTIFIER [ "not" ] "in" "(" value ( "," value )* ")"
//	            | IDENTIFIER "is" [ "not" ] "null" ;
//	value       : STRING | QUANTITY | BOOLEAN ;
//
//	IDENTIFIER    : [a-zA-Z_][a-zA-Z0-9_]* ( "." [a-zA-Z_][a-zA-Z0-9_]* )* ;
//	REGEX_LITERAL : '/' ( '\\/' | . )*? '/' ;
//	STRING        : "'" ( "''" | . )+ "'" | "\"" ( "\"\"" | . )+ "\"" ;
//	BOOLEAN       : "true" | "false" ;
//	QUANTITY      : [0-9]+(\.[0-9]+)? ( 's' | 'm' | 'h' )? ;
//
// Keywords are case-insensitive. A doubled quote inside a string stands for
// the quote itself.
//
// The rendered clause is meant to be appended to
//
//	SELECT ... FROM job_observations WHERE <clause>
package filter
