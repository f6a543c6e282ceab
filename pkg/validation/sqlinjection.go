package validation

import (
	"regexp"
	"strings"
)

const injectionMessage = "Potential SQL injection detected"

// sqlKeywords are flagged on whole-word, case-insensitive matches only, so
// that e.g. "UPDATED" passes while "UPDATE test" fails.
var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE", "ALTER", "CREATE", "TABLE",
	"UNION", "EXEC", "EXECUTE", "SCRIPT", "DECLARE", "CAST", "CONVERT",
}

var keywordRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(sqlKeywords))
	for i, kw := range sqlKeywords {
		res[i] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return res
}()

// dangerousPatterns are flagged on case-insensitive substring matches.
var dangerousPatterns = []string{
	"';",
	"--",
	"/*",
	"*/",
	"xp_",
	"sp_",
	" OR 1=1",
	" OR '1'='1",
	"AND 1=1",
	"1=1",
	"1=2",
}

// CheckSQLInjection applies the injection heuristics to a single value. At
// most one error is returned; every rule reports the same message.
func CheckSQLInjection(fieldName, value string) []FieldError {
	for _, re := range keywordRes {
		if re.MatchString(value) {
			return []FieldError{{fieldName, injectionMessage}}
		}
	}

	upper := strings.ToUpper(value)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(upper, strings.ToUpper(pattern)) {
			return []FieldError{{fieldName, injectionMessage}}
		}
	}

	if quoteNearOperator(value) {
		return []FieldError{{fieldName, injectionMessage}}
	}
	return nil
}

// quoteNearOperator flags a single quote appearing within two characters of
// OR, AND, ';' or '='. The window logic intentionally mirrors legacy behavior
// including its false positives on apostrophes near the word OR.
func quoteNearOperator(value string) bool {
	for pos := 0; pos < len(value); pos++ {
		if value[pos] != '\'' {
			continue
		}
		var context string
		switch {
		case pos > 0 && pos < len(value)-1:
			start := pos - 2
			if start < 0 {
				start = 0
			}
			end := start + 5
			if end > len(value) {
				end = len(value)
			}
			context = value[start:end]
		case pos == 0 && len(value) > 1:
			end := 3
			if end > len(value) {
				end = len(value)
			}
			context = value[:end]
		case pos == len(value)-1 && len(value) > 1:
			start := pos - 2
			if start < 0 {
				start = 0
			}
			end := start + 3
			if end > len(value) {
				end = len(value)
			}
			context = value[start:end]
		}
		upper := strings.ToUpper(context)
		if strings.Contains(upper, "OR") || strings.Contains(upper, "AND") ||
			strings.Contains(upper, ";") || strings.Contains(upper, "=") {
			return true
		}
	}
	return false
}
