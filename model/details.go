package model

// This file contains attachment ("details") types and MIME content types.

import (
	"fmt"
	"sort"
	"strings"
)

// ContentType is a MIME type with optional parameters.
type ContentType struct {
	Type    string
	Subtype string
	// Params is nil when the type carries no parameters
	Params map[string]string
}

var (
	TracebackType   = ContentType{Type: "text", Subtype: "x-traceback", Params: map[string]string{"charset": "utf8"}}
	PlainTextType   = ContentType{Type: "text", Subtype: "plain"}
	UTF8TextType    = ContentType{Type: "text", Subtype: "plain", Params: map[string]string{"charset": "utf8"}}
	OctetStreamType = ContentType{Type: "application", Subtype: "octet-stream"}
)

// ParseContentType parses both the v1 multipart form
// "type/subtype;k=v,k2=v2" and the v2 form `type/subtype; k="v"`.
// Quoted values may hold separators and backslash escapes.
func ParseContentType(value string) (ContentType, error) {
	mediaType, params, _ := strings.Cut(value, ";")
	parts := strings.Split(mediaType, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ContentType{}, fmt.Errorf("invalid MIME type %q", value)
	}
	ct := ContentType{
		Type:    strings.TrimSpace(parts[0]),
		Subtype: strings.TrimSpace(parts[1]),
	}

	fields, err := splitParams(params)
	if err != nil {
		return ContentType{}, fmt.Errorf("%w in %q", err, value)
	}
	for _, param := range fields {
		k, v, ok := strings.Cut(param, "=")
		if !ok {
			return ContentType{}, fmt.Errorf("invalid MIME parameter %q in %q", param, value)
		}
		if ct.Params == nil {
			ct.Params = make(map[string]string)
		}
		ct.Params[strings.TrimSpace(k)] = unquoteParam(strings.TrimSpace(v))
	}
	return ct, nil
}

// splitParams splits on ',' and ';' outside double quotes and drops empty
// fields.
func splitParams(s string) ([]string, error) {
	var fields []string
	var quoted, escaped bool
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case !quoted && (c == ',' || c == ';'):
			if f := strings.TrimSpace(s[start:i]); f != "" {
				fields = append(fields, f)
			}
			start = i + 1
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quoted MIME parameter")
	}
	if f := strings.TrimSpace(s[start:]); f != "" {
		fields = append(fields, f)
	}
	return fields, nil
}

func unquoteParam(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	var sb strings.Builder
	escaped := false
	for _, r := range v[1 : len(v)-1] {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteRune(r)
	}
	return sb.String()
}

func quoteParam(v string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range v {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

// needsQuote reports whether a bare v1 parameter value would not survive
// ParseContentType.
func needsQuote(v string) bool {
	return v == "" || strings.ContainsAny(v, ",;\"\\= \t")
}

func (c ContentType) paramKeys() []string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the type the way v2 streams carry it.
func (c ContentType) String() string {
	var sb strings.Builder
	sb.WriteString(c.Type + "/" + c.Subtype)
	for _, k := range c.paramKeys() {
		sb.WriteString("; " + k + "=" + quoteParam(c.Params[k]))
	}
	return sb.String()
}

// V1String renders the type the way v1 multipart headers carry it.
func (c ContentType) V1String() string {
	s := c.Type + "/" + c.Subtype
	if len(c.Params) == 0 {
		return s
	}
	params := make([]string, 0, len(c.Params))
	for _, k := range c.paramKeys() {
		v := c.Params[k]
		if needsQuote(v) {
			v = quoteParam(v)
		}
		params = append(params, k+"="+v)
	}
	return s + ";" + strings.Join(params, ",")
}

// Equal compares types treating nil and empty parameter maps alike.
func (c ContentType) Equal(other ContentType) bool {
	if c.Type != other.Type || c.Subtype != other.Subtype || len(c.Params) != len(other.Params) {
		return false
	}
	for k, v := range c.Params {
		if ov, ok := other.Params[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Attachment is a MIME-typed blob owned by a single result.
type Attachment struct {
	ContentType ContentType
	Data        []byte
}

// Text builds a plain text attachment.
func Text(s string) Attachment {
	return Attachment{ContentType: PlainTextType, Data: []byte(s)}
}

// Traceback builds a traceback attachment.
func Traceback(s string) Attachment {
	return Attachment{ContentType: TracebackType, Data: []byte(s)}
}

// Details maps attachment names to attachments.
type Details map[string]Attachment

// Names returns the attachment names in sorted order.
func (d Details) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Text concatenates every attachment body in name order, used for matching.
func (d Details) Text() string {
	var sb strings.Builder
	for _, name := range d.Names() {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.Write(d[name].Data)
		sb.WriteString("\n")
	}
	return sb.String()
}
