// Package fieldtype decides whether two column types may be linked by a
// relationship.
package fieldtype

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Func is the type-compatibility predicate contract.
type Func func(sourceType, targetType, dialect string) bool

// Family groups column types that can reference each other.
type Family string

const (
	FamilyUnknown  Family = ""
	FamilyInteger  Family = "integer"
	FamilyDecimal  Family = "decimal"
	FamilyText     Family = "text"
	FamilyBoolean  Family = "boolean"
	FamilyTemporal Family = "temporal"
	FamilyUUID     Family = "uuid"
	FamilyBinary   Family = "binary"
	FamilyJSON     Family = "json"
)

var families = map[string]Family{
	"int": FamilyInteger, "integer": FamilyInteger, "smallint": FamilyInteger,
	"bigint": FamilyInteger, "tinyint": FamilyInteger, "mediumint": FamilyInteger,
	"int2": FamilyInteger, "int4": FamilyInteger, "int8": FamilyInteger,
	"serial": FamilyInteger, "smallserial": FamilyInteger, "bigserial": FamilyInteger,

	"decimal": FamilyDecimal, "numeric": FamilyDecimal, "real": FamilyDecimal,
	"float": FamilyDecimal, "double": FamilyDecimal, "double precision": FamilyDecimal,
	"float4": FamilyDecimal, "float8": FamilyDecimal, "money": FamilyDecimal,

	"text": FamilyText, "varchar": FamilyText, "char": FamilyText,
	"character": FamilyText, "character varying": FamilyText, "nvarchar": FamilyText,
	"nchar": FamilyText, "string": FamilyText, "citext": FamilyText,
	"tinytext": FamilyText, "mediumtext": FamilyText, "longtext": FamilyText,

	"bool": FamilyBoolean, "boolean": FamilyBoolean, "bit": FamilyBoolean,

	"date": FamilyTemporal, "time": FamilyTemporal, "datetime": FamilyTemporal,
	"datetime2": FamilyTemporal, "timestamp": FamilyTemporal, "timestamptz": FamilyTemporal,
	"timestamp with time zone": FamilyTemporal, "timestamp without time zone": FamilyTemporal,

	"uuid": FamilyUUID, "uniqueidentifier": FamilyUUID,

	"blob": FamilyBinary, "bytea": FamilyBinary, "binary": FamilyBinary,
	"varbinary": FamilyBinary, "longblob": FamilyBinary,

	"json": FamilyJSON, "jsonb": FamilyJSON,
}

// dialectAliases are checked before parameters are stripped.
var dialectAliases = map[string]map[string]Family{
	"mysql":   {"tinyint(1)": FamilyBoolean},
	"mariadb": {"tinyint(1)": FamilyBoolean},
	// SQLite stores booleans and timestamps in integer/text columns.
	"sqlite":     {"boolean": FamilyInteger, "bool": FamilyInteger, "datetime": FamilyText},
	"sql_server": {"bit": FamilyBoolean},
}

var (
	paramsRE = regexp.MustCompile(`\s*\(.*?\)`)
	spaceRE  = regexp.MustCompile(`\s+`)
)

// fold case-folds s. Casers are stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Normalize folds case, collapses whitespace and drops length/precision
// parameters, array suffixes and the unsigned modifier.
func Normalize(t string) string {
	s := fold(strings.TrimSpace(t))
	s = paramsRE.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "[]")
	s = strings.TrimSuffix(s, " unsigned")
	s = spaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FamilyOf classifies a type for a dialect.
func FamilyOf(t, dialect string) Family {
	raw := spaceRE.ReplaceAllString(fold(strings.TrimSpace(t)), " ")
	if aliases, ok := dialectAliases[fold(dialect)]; ok {
		if f, ok := aliases[raw]; ok {
			return f
		}
		if f, ok := aliases[Normalize(t)]; ok {
			return f
		}
	}
	return families[Normalize(t)]
}

// Compatible is the default predicate. Types of the same family are
// compatible; unknown types are compatible only with an identical type.
func Compatible(sourceType, targetType, dialect string) bool {
	sf := FamilyOf(sourceType, dialect)
	tf := FamilyOf(targetType, dialect)
	if sf == FamilyUnknown || tf == FamilyUnknown {
		return Normalize(sourceType) == Normalize(targetType)
	}
	return sf == tf
}
