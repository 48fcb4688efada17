package connector

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dbforensic/dbforensic/catalog"
)

var sizeParenRe = regexp.MustCompile(`\(([^)]*)\)`)

// NormalizeSqlServerType maps a sys.types name plus its declared max_length/
// precision/scale into a provider-independent catalog.NormalizedType.
func NormalizeSqlServerType(typeName string, maxLength, precision, scale int) catalog.NormalizedType {
	switch strings.ToLower(typeName) {
	case "tinyint", "smallint", "int", "bigint":
		return catalog.NormalizedType{Kind: catalog.KindInteger}
	case "decimal", "numeric":
		p, s := precision, scale
		return catalog.NormalizedType{Kind: catalog.KindDecimal, Precision: intPtr(p), Scale: intPtr(s)}
	case "float", "real", "money", "smallmoney":
		return catalog.NormalizedType{Kind: catalog.KindFloat}
	case "bit":
		return catalog.NormalizedType{Kind: catalog.KindBoolean}
	case "char", "varchar", "nchar", "nvarchar", "text", "ntext":
		if maxLength <= 0 {
			return catalog.NormalizedType{Kind: catalog.KindString}
		}
		length := maxLength
		if strings.HasPrefix(strings.ToLower(typeName), "n") && maxLength > 0 {
			length = maxLength / 2 // nchar/nvarchar store UTF-16 byte length
		}
		return catalog.NormalizedType{Kind: catalog.KindString, Length: intPtr(length)}
	case "date", "datetime", "datetime2", "smalldatetime", "datetimeoffset", "time":
		return catalog.NormalizedType{Kind: catalog.KindDateTime}
	case "binary", "varbinary", "image":
		return catalog.NormalizedType{Kind: catalog.KindBinary}
	case "uniqueidentifier":
		return catalog.NormalizedType{Kind: catalog.KindUUID}
	case "xml":
		return catalog.NormalizedType{Kind: catalog.KindOther}
	default:
		return catalog.NormalizedType{Kind: catalog.KindOther}
	}
}

// NormalizePostgresType maps an information_schema.columns data_type string
// (which already folds precision/scale into the textual form for some types,
// e.g. "character varying") into a catalog.NormalizedType.
func NormalizePostgresType(rawType string) catalog.NormalizedType {
	length := extractParenSize(rawType)
	base := strings.ToLower(strings.TrimSpace(sizeParenRe.ReplaceAllString(rawType, "")))

	switch base {
	case "smallint", "integer", "bigint", "serial", "bigserial", "smallserial":
		return catalog.NormalizedType{Kind: catalog.KindInteger}
	case "numeric", "decimal":
		return catalog.NormalizedType{Kind: catalog.KindDecimal}
	case "real", "double precision", "money":
		return catalog.NormalizedType{Kind: catalog.KindFloat}
	case "boolean":
		return catalog.NormalizedType{Kind: catalog.KindBoolean}
	case "character varying", "character", "varchar", "char", "text":
		if length == nil {
			return catalog.NormalizedType{Kind: catalog.KindString}
		}
		return catalog.NormalizedType{Kind: catalog.KindString, Length: length}
	case "date", "time without time zone", "time with time zone",
		"timestamp without time zone", "timestamp with time zone":
		return catalog.NormalizedType{Kind: catalog.KindDateTime}
	case "bytea":
		return catalog.NormalizedType{Kind: catalog.KindBinary}
	case "uuid":
		return catalog.NormalizedType{Kind: catalog.KindUUID}
	case "json", "jsonb":
		return catalog.NormalizedType{Kind: catalog.KindJSON}
	default:
		return catalog.NormalizedType{Kind: catalog.KindOther}
	}
}

// NormalizeRawType re-derives a NormalizedType from a raw type name alone,
// dispatching on provider. Used wherever only the textual type name survives
// (a persisted snapshot, a tbls-imported column) rather than the separate
// max_length/precision/scale a live sqlserver connection supplies, so sizing
// for sqlserver columns is best-effort: it is only recovered when the raw
// type itself carries a parenthesized size, as it would when parsed back out
// of DDL text.
func NormalizeRawType(provider catalog.Provider, rawType string) catalog.NormalizedType {
	if provider == catalog.ProviderSqlServer {
		base := strings.ToLower(strings.TrimSpace(sizeParenRe.ReplaceAllString(rawType, "")))
		length := 0
		if n := extractParenSize(rawType); n != nil {
			length = *n
		}
		return NormalizeSqlServerType(base, length, 0, 0)
	}
	return NormalizePostgresType(rawType)
}

func extractParenSize(rawType string) *int {
	m := sizeParenRe.FindStringSubmatch(rawType)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], ",")
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil
	}
	return &n
}

func intPtr(v int) *int { return &v }
