package consolelog

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/karolba/tconsole/formatting"
)

// DefaultPattern prints e.g. "[13:37:00 INFO]: Hello world key=value".
const DefaultPattern = "[%d{15:04:05} %highlight{%level}]: %minecraftFormatting{%msg}%attrs%n"

const defaultDateLayout = "15:04:05"

// Record is what a Layout renders: a log record with its attributes already flattened.
type Record struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []Attr
}

// Attr is a rendered attribute. Keys of attributes inside groups are qualified, e.g. "request.id".
type Attr struct {
	Key   string
	Value string
}

type LayoutOptions struct {
	// DisableAnsi turns %highlight into a no-op and makes %minecraftFormatting strip formatting codes.
	DisableAnsi bool
}

// Layout is a compiled pattern. The supported conversions are:
//
//	%d, %d{layout}           record time, formatted with a Go time layout (default 15:04:05)
//	%p, %level               level name
//	%m, %msg, %message       message
//	%attrs                   " key=value" for every attribute
//	%n                       newline
//	%%                       a literal percent sign
//	%highlight{pattern}      pattern, colored by the record's level
//	%minecraftFormatting{pattern}{strip}
//	%fmt{pattern}{strip}     pattern with § formatting codes turned into ANSI escapes; the optional
//	                         {strip} removes them instead
type Layout struct {
	pattern    string
	converters []converter
}

type converter func(dst []byte, r *Record) []byte

func Compile(pattern string, opts LayoutOptions) (*Layout, error) {
	p := &parser{pattern: pattern, ansi: !opts.DisableAnsi}

	converters, err := p.parse(false)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	return &Layout{pattern: pattern, converters: converters}, nil
}

func MustCompile(pattern string, opts LayoutOptions) *Layout {
	layout, err := Compile(pattern, opts)
	if err != nil {
		panic(err)
	}
	return layout
}

func (l *Layout) String() string {
	return l.pattern
}

// Append renders r and appends the result to dst.
func (l *Layout) Append(dst []byte, r *Record) []byte {
	return appendAll(dst, l.converters, r)
}

func (l *Layout) Format(r *Record) string {
	return string(l.Append(nil, r))
}

func appendAll(dst []byte, converters []converter, r *Record) []byte {
	for _, c := range converters {
		dst = c(dst, r)
	}
	return dst
}

type parser struct {
	pattern string
	pos     int
	ansi    bool
}

func isNameByte(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

// parse reads converters up to the end of the pattern, or up to (but excluding) the closing brace of a nested
// pattern.
func (p *parser) parse(nested bool) ([]converter, error) {
	var converters []converter
	var literal strings.Builder

	flushLiteral := func() {
		if literal.Len() > 0 {
			converters = append(converters, literalConverter(literal.String()))
			literal.Reset()
		}
	}

	for p.pos < len(p.pattern) {
		c := p.pattern[p.pos]

		if c == '}' && nested {
			flushLiteral()
			return converters, nil
		}

		if c != '%' {
			literal.WriteByte(c)
			p.pos++
			continue
		}

		p.pos++
		if p.pos >= len(p.pattern) {
			return nil, errors.New("pattern ends with a lone %")
		}
		if p.pattern[p.pos] == '%' {
			literal.WriteByte('%')
			p.pos++
			continue
		}

		start := p.pos
		for p.pos < len(p.pattern) && isNameByte(p.pattern[p.pos]) {
			p.pos++
		}
		name := p.pattern[start:p.pos]
		if name == "" {
			return nil, fmt.Errorf("missing conversion name at offset %d", start)
		}

		conv, err := p.conversion(name)
		if err != nil {
			return nil, err
		}

		flushLiteral()
		converters = append(converters, conv)
	}

	if nested {
		return nil, errors.New("missing closing }")
	}

	flushLiteral()
	return converters, nil
}

// option reads a raw {option} if one follows.
func (p *parser) option() (option string, present bool, err error) {
	if p.pos >= len(p.pattern) || p.pattern[p.pos] != '{' {
		return "", false, nil
	}

	end := strings.IndexByte(p.pattern[p.pos:], '}')
	if end == -1 {
		return "", false, errors.New("missing closing }")
	}

	option = p.pattern[p.pos+1 : p.pos+end]
	p.pos += end + 1
	return option, true, nil
}

func (p *parser) subpattern(name string) ([]converter, error) {
	if p.pos >= len(p.pattern) || p.pattern[p.pos] != '{' {
		return nil, fmt.Errorf("%%%s needs a {pattern}", name)
	}
	p.pos++

	converters, err := p.parse(true)
	if err != nil {
		return nil, err
	}

	// skip the closing brace
	p.pos++
	return converters, nil
}

func (p *parser) conversion(name string) (converter, error) {
	switch name {
	case "d", "date":
		layout, present, err := p.option()
		if err != nil {
			return nil, err
		}
		if !present || layout == "" {
			layout = defaultDateLayout
		}
		return dateConverter(layout), nil

	case "p", "level":
		return levelConverter, nil

	case "m", "msg", "message":
		return messageConverter, nil

	case "attrs":
		return attrsConverter, nil

	case "n":
		return literalConverter("\n"), nil

	case "highlight":
		sub, err := p.subpattern(name)
		if err != nil {
			return nil, err
		}
		return highlightConverter(sub, p.ansi), nil

	case "fmt", "minecraftFormatting":
		sub, err := p.subpattern(name)
		if err != nil {
			return nil, err
		}
		option, _, err := p.option()
		if err != nil {
			return nil, err
		}
		if option != "" && option != "strip" {
			return nil, fmt.Errorf("unknown %%%s option %q", name, option)
		}
		return formattingConverter(sub, p.ansi && option != "strip"), nil
	}

	return nil, fmt.Errorf("unknown conversion %%%s", name)
}

func literalConverter(text string) converter {
	return func(dst []byte, _ *Record) []byte {
		return append(dst, text...)
	}
}

func dateConverter(layout string) converter {
	return func(dst []byte, r *Record) []byte {
		return r.Time.AppendFormat(dst, layout)
	}
}

func levelConverter(dst []byte, r *Record) []byte {
	return append(dst, r.Level.String()...)
}

func messageConverter(dst []byte, r *Record) []byte {
	return append(dst, r.Message...)
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '=' || r == '"' || !strconv.IsPrint(r) {
			return true
		}
	}
	return false
}

func attrsConverter(dst []byte, r *Record) []byte {
	for _, attr := range r.Attrs {
		dst = append(dst, ' ')
		dst = append(dst, attr.Key...)
		dst = append(dst, '=')
		if needsQuoting(attr.Value) {
			dst = strconv.AppendQuote(dst, attr.Value)
		} else {
			dst = append(dst, attr.Value...)
		}
	}
	return dst
}

func formattingConverter(sub []converter, ansi bool) converter {
	return func(dst []byte, r *Record) []byte {
		start := len(dst)
		dst = appendAll(dst, sub, r)
		text := string(dst[start:])
		return formatting.AppendConvert(dst[:start], text, ansi)
	}
}
