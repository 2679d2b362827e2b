package store

import (
	"reflect"
	"strconv"
	"strings"
)

// Identifier is the set of types a record may use as its identity. Only
// string and integer kinds are allowed so every value renders to exactly
// one key.
type Identifier interface {
	~string |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Identifiable is implemented by records stored in a Collection.
// ID must be stable across saves of the same logical record.
type Identifiable[ID Identifier] interface {
	ID() ID
}

const (
	maxNamespaceLen = 200

	suffixCount        = "count"
	suffixLastSnapshot = "last-snapshot-date"
	suffixLastRestore  = "last-restore-date"
	suffixSingle       = "single-object"
)

// validateNamespace returns the reason a namespace is unusable, or "".
func validateNamespace(ns string) string {
	if ns == "" {
		return "namespace is empty"
	}
	if len(ns) > maxNamespaceLen {
		return "namespace longer than " + strconv.Itoa(maxNamespaceLen) + " bytes"
	}
	for i := 0; i < len(ns); i++ {
		c := ns[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case i > 0 && (c == '.' || c == '_' || c == '-'):
		default:
			return "namespace has invalid character " + strconv.QuoteRune(rune(c)) + " at " + strconv.Itoa(i)
		}
	}
	return ""
}

// keyspace derives every key of one namespace.
type keyspace struct {
	prefix string // namespace + "-"
}

func newKeyspace(ns string) keyspace {
	return keyspace{prefix: ns + "-"}
}

func (k keyspace) record(rendered string) []byte { return []byte(k.prefix + rendered) }
func (k keyspace) count() []byte                 { return []byte(k.prefix + suffixCount) }
func (k keyspace) lastSnapshot() []byte          { return []byte(k.prefix + suffixLastSnapshot) }
func (k keyspace) lastRestore() []byte           { return []byte(k.prefix + suffixLastRestore) }
func (k keyspace) single() []byte                { return []byte(k.prefix + suffixSingle) }
func (k keyspace) singleLastSnapshot() []byte {
	return []byte(k.prefix + suffixSingle + "-" + suffixLastSnapshot)
}
func (k keyspace) singleLastRestore() []byte {
	return []byte(k.prefix + suffixSingle + "-" + suffixLastRestore)
}

// isRecord reports whether key addresses a record rather than bookkeeping.
func (k keyspace) isRecord(key []byte) bool {
	rest, ok := strings.CutPrefix(string(key), k.prefix)
	return ok && rest != suffixCount && !strings.Contains(rest, "-")
}

// renderID turns an identifier into the escaped key suffix for its record.
func renderID[ID Identifier](id ID) string {
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.String:
		return escapeID(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return escapeID(strconv.FormatInt(v.Int(), 10))
	default:
		return strconv.FormatUint(v.Uint(), 10)
	}
}

// escapeID percent-encodes '%' and '-', then shields the one dash-free
// bookkeeping suffix. The mapping is injective: its output never holds a
// bare '-', and "%63ount" cannot come out of the first step.
func escapeID(s string) string {
	if strings.ContainsAny(s, "%-") {
		var b strings.Builder
		b.Grow(len(s) + 4)
		for i := 0; i < len(s); i++ {
			switch s[i] {
			case '%':
				b.WriteString("%25")
			case '-':
				b.WriteString("%2D")
			default:
				b.WriteByte(s[i])
			}
		}
		s = b.String()
	}
	if s == suffixCount {
		return "%63ount"
	}
	return s
}
