package backup

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
)

// timestampLayout is ISO-8601 in UTC with microseconds and no zone suffix.
// Scripts pin the session time_zone to UTC before any literal is read.
const timestampLayout = "2006-01-02T15:04:05.000000"

// QuoteLiteral encodes v as a SQL literal. Every value written into a backup
// script goes through this function. String literals only double embedded
// quotes, so scripts must be replayed with NO_BACKSLASH_ESCAPES in the
// session sql_mode. Binary values are written as hex literals.
func QuoteLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(val)
	case []byte:
		return "X'" + hex.EncodeToString(val) + "'"
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	case time.Time:
		return quoteString(val.UTC().Format(timestampLayout))
	case *time.Time:
		if val == nil {
			return "NULL"
		}
		return QuoteLiteral(*val)
	case json.RawMessage:
		return quoteString(string(val))
	case fmt.Stringer:
		return quoteString(val.String())
	default:
		encoded, err := gojson.Marshal(val)
		if err != nil {
			return quoteString(fmt.Sprintf("%v", val))
		}
		return quoteString(string(encoded))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// UnquoteLiteral reads back a single-quoted literal produced by QuoteLiteral
func UnquoteLiteral(literal string) (string, error) {
	if len(literal) < 2 || literal[0] != '\'' || literal[len(literal)-1] != '\'' {
		return "", fmt.Errorf("not a quoted literal: %q", literal)
	}

	body := literal[1 : len(literal)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] != '\'' {
			sb.WriteByte(body[i])
			continue
		}
		if i+1 >= len(body) || body[i+1] != '\'' {
			return "", fmt.Errorf("unescaped quote at offset %d", i+1)
		}
		sb.WriteByte('\'')
		i++
	}
	return sb.String(), nil
}
