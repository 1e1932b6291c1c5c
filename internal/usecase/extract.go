package usecase

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
)

const utf8BOM = "\uFEFF"

// how many lines between context checks
const ctxCheckEvery = 4096

// ExtractField reads r line by line, splits each line by s.Delimiter and
// writes the field at s.FieldIndex to w, one value per line. Blank lines,
// lines with too few fields and empty values are skipped. It returns the
// number of written values.
//
// \n, \r\n and a lone \r all end a line. Each maximal invalid UTF-8
// subsequence is replaced with one U+FFFD. A line longer than maxLine bytes is rejected as invalid input.
func ExtractField(ctx context.Context, r io.Reader, w io.Writer, s model.Settings, maxLine int) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, domain.InvalidInput("extract", err)
	}
	if maxLine <= 0 {
		maxLine = 1 << 20
	}

	sc := bufio.NewScanner(r)
	initial := 64 * 1024
	if initial > maxLine+2 {
		initial = maxLine + 2
	}
	sc.Buffer(make([]byte, 0, initial), maxLine+2)
	sc.Split(scanAnyLines)

	bw := bufio.NewWriter(w)
	written := 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return written, err
			}
		}
		raw := sc.Bytes()
		if len(raw) > maxLine {
			return written, domain.InvalidInput("extract", domain.ErrLineTooLong)
		}
		line := decodeReplacing(raw)
		if lineNo == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, s.Delimiter)
		if s.FieldIndex >= len(parts) {
			continue
		}
		value := strings.TrimSpace(parts[s.FieldIndex])
		if value == "" {
			continue
		}

		if _, err := bw.WriteString(value); err != nil {
			return written, domain.Internal("extract", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return written, domain.Internal("extract", err)
		}
		written++
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return written, domain.InvalidInput("extract", domain.ErrLineTooLong)
		}
		return written, domain.Internal("extract", err)
	}
	if err := bw.Flush(); err != nil {
		return written, domain.Internal("extract", err)
	}
	return written, nil
}

// scanAnyLines is bufio.ScanLines extended with lone '\r' terminators.
func scanAnyLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if !atEOF {
			// need one more byte to tell \r from \r\n
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// decodeReplacing converts b to a string, writing U+FFFD for every maximal
// subpart of an ill-formed sequence.
func decodeReplacing(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[maximalSubpart(b):]
			continue
		}
		sb.Write(b[:size])
		b = b[size:]
	}
	return sb.String()
}

// maximalSubpart is the length of the longest prefix of b that starts a
// well-formed sequence, at least 1. b must begin with an invalid sequence.
func maximalSubpart(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c >= 0xE1 && c <= 0xEC, c == 0xEE, c == 0xEF:
		need = 2
	case c == 0xED:
		need, hi = 2, 0x9F
	case c == 0xF0:
		need, lo = 3, 0x90
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	case c == 0xF4:
		need, hi = 3, 0x8F
	default:
		return 1
	}
	i := 1
	for ; i <= need && i < len(b); i++ {
		if b[i] < lo || b[i] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
	}
	return i
}
