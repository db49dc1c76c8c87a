package pgwire

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/syssam/velopg/pgval"
)

func (c *Codec) encodeList(list pgval.List) ([]byte, error) {
	buf := []byte{'{'}
	for i, elem := range list {
		if i > 0 {
			buf = append(buf, ',')
		}
		if pgval.IsNull(elem) {
			buf = append(buf, "NULL"...)
			continue
		}
		b, err := c.Encode(elem)
		if err != nil {
			return nil, err
		}
		if _, ok := elem.(pgval.List); ok {
			// sub-array braces are structure, never quoted
			buf = append(buf, b...)
			continue
		}
		buf = appendArrayElem(buf, b)
	}
	return append(buf, '}'), nil
}

func appendArrayElem(dst, elem []byte) []byte {
	if len(elem) > 0 && !elemNeedsQuote(elem) {
		return append(dst, elem...)
	}
	dst = append(dst, '"')
	for _, b := range elem {
		if b == '"' || b == '\\' {
			dst = append(dst, '\\')
		}
		dst = append(dst, b)
	}
	return append(dst, '"')
}

func elemNeedsQuote(elem []byte) bool {
	if strings.EqualFold(string(elem), "null") {
		return true
	}
	for _, b := range elem {
		switch b {
		case '{', '}', ',', '"', '\\', ' ', '\t', '\n', '\r':
			return true
		}
	}
	return false
}

func (c *Codec) decodeArray(elemOID uint32, src []byte) (pgval.Value, error) {
	s := src
	// a dimension prefix like [0:2]={...} may precede the literal
	if len(s) > 0 && s[0] == '[' {
		i := bytes.IndexByte(s, '=')
		if i < 0 {
			return nil, decodeErr("array", src, fmt.Errorf("malformed dimension prefix"))
		}
		s = s[i+1:]
	}
	list, rest, err := c.parseArrayLiteral(elemOID, s)
	if err != nil {
		return nil, decodeErr("array", src, err)
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return nil, decodeErr("array", src, fmt.Errorf("trailing data after literal"))
	}
	return list, nil
}

// parseArrayLiteral consumes one {...} literal from s and returns the
// remainder. Null markers are honored per element before the element
// decoder runs.
func (c *Codec) parseArrayLiteral(elemOID uint32, s []byte) (pgval.List, []byte, error) {
	if len(s) == 0 || s[0] != '{' {
		return nil, nil, fmt.Errorf("want {")
	}
	s = s[1:]
	list := pgval.List{}
	if len(s) > 0 && s[0] == '}' {
		return list, s[1:], nil
	}
	for {
		if len(s) == 0 {
			return nil, nil, fmt.Errorf("unterminated literal")
		}
		switch s[0] {
		case '{':
			sub, rest, err := c.parseArrayLiteral(elemOID, s)
			if err != nil {
				return nil, nil, err
			}
			list = append(list, sub)
			s = rest
		case '"':
			val, rest, err := parseQuotedElem(s)
			if err != nil {
				return nil, nil, err
			}
			v, err := c.decodeElem(elemOID, val)
			if err != nil {
				return nil, nil, err
			}
			list = append(list, v)
			s = rest
		default:
			i := 0
			for i < len(s) && s[i] != ',' && s[i] != '}' {
				i++
			}
			tok := s[:i]
			s = s[i:]
			if strings.EqualFold(string(tok), "null") {
				list = append(list, pgval.Null{})
				break
			}
			v, err := c.decodeElem(elemOID, tok)
			if err != nil {
				return nil, nil, err
			}
			list = append(list, v)
		}
		if len(s) == 0 {
			return nil, nil, fmt.Errorf("unterminated literal")
		}
		switch s[0] {
		case ',':
			s = s[1:]
		case '}':
			return list, s[1:], nil
		default:
			return nil, nil, fmt.Errorf("want , or } after element")
		}
	}
}

func (c *Codec) decodeElem(elemOID uint32, src []byte) (pgval.Value, error) {
	if fn, ok := c.decoders[elemOID]; ok {
		return fn(src)
	}
	raw := make(pgval.Raw, len(src))
	copy(raw, src)
	return raw, nil
}

func parseQuotedElem(s []byte) ([]byte, []byte, error) {
	var buf []byte
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return nil, nil, fmt.Errorf("dangling escape")
			}
			i++
			buf = append(buf, s[i])
		case '"':
			if buf == nil {
				buf = []byte{}
			}
			return buf, s[i+1:], nil
		default:
			buf = append(buf, s[i])
		}
	}
	return nil, nil, fmt.Errorf("unterminated quoted element")
}
