package tools

import (
	"regexp"
	"strconv"
	"strings"
)

// doubleQuotedEquality matches `= "value"` comparisons, which SOQL rejects.
var doubleQuotedEquality = regexp.MustCompile(`(\s*=\s*)"([^"]+)"`)

// NormalizeQuery rewrites double-quoted equality literals to single quotes:
// `Name = "Acme"` becomes `Name = 'Acme'`. Anything else is left alone.
func NormalizeQuery(soql string) string {
	return doubleQuotedEquality.ReplaceAllString(soql, "${1}'${2}'")
}

// BuildCountQuery returns SELECT COUNT() FROM objectType, with
// " WHERE <clause>" appended verbatim when where is non-empty.
func BuildCountQuery(objectType, where string) string {
	q := "SELECT COUNT() FROM " + objectType
	if where != "" {
		q += " WHERE " + where
	}
	return q
}

// BuildRecentQuery selects the newest limit records of objectType.
func BuildRecentQuery(objectType string, limit int) string {
	return "SELECT Id, Name, CreatedDate FROM " + objectType +
		" ORDER BY CreatedDate DESC LIMIT " + strconv.Itoa(limit)
}

const userInfoSelect = "SELECT Id, Name, Email, Username, Profile.Name, UserRole.Name FROM User"

// BuildUserQuery selects the profile of one user by id.
func BuildUserQuery(userID string) string {
	return userInfoSelect + " WHERE Id = " + quoteLiteral(userID)
}

// FallbackUserQuery selects the first visible user.
const FallbackUserQuery = userInfoSelect + " LIMIT 1"

// BuildSearch wraps a bare term in SOSL: FIND {term}.
func BuildSearch(term string) string {
	return "FIND {" + term + "}"
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteLiteral(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}
