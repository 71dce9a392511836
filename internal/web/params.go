package web

import "strings"

// DecodeParams parses a query string or form body.
//
// The whole input is percent-decoded first ("%XX" to the byte, "%%" to "%",
// "+" to a space, an invalid escape kept as is), then split on "&" and on
// the first "=". A segment without "=" yields an empty value; empty names
// (from "=v" or an empty segment) are stored like any other. When a name
// repeats, the last value wins.
func DecodeParams(s string) map[string]string {
	params := make(map[string]string)
	if s == "" {
		return params
	}
	decoded := unescape(s)
	for _, seg := range strings.Split(decoded, "&") {
		name, value, _ := strings.Cut(seg, "=")
		params[name] = value
	}
	return params
}

func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+1 < len(s) && s[i+1] == '%':
			b.WriteByte('%')
			i++
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// DecodeCookies parses a Cookie header value. Leading blanks and control
// characters are stripped from each segment. Segments without "=" or with an
// empty name are dropped; an empty value is kept.
func DecodeCookies(s string) map[string]string {
	cookies := make(map[string]string)
	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimLeftFunc(seg, func(r rune) bool { return r <= ' ' || r == 0x7f })
		name, value, ok := strings.Cut(seg, "=")
		if !ok || name == "" {
			continue
		}
		cookies[name] = value
	}
	return cookies
}
