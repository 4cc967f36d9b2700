package strictenc

import "fmt"

// Charset is a restricted ASCII alphabet for RText. The numeric values are
// part of the type identifier and of serialized descriptions.
type Charset uint8

const (
	AsciiPrintable Charset = iota + 1 // ' ' through '~'
	AlphaCaps                         // A-Z
	AlphaSmall                        // a-z
	Alpha                             // A-Z a-z
	Dec                               // 0-9
	HexDecCaps                        // 0-9 A-F
	HexDecSmall                       // 0-9 a-f
	AlphaCapsNum                      // 0-9 A-Z
	AlphaNum                          // 0-9 A-Z a-z
	AlphaNumDash                      // 0-9 A-Z a-z '-'
	AlphaNumLodash                    // 0-9 A-Z a-z '_'
)

var charsetNames = [...]string{
	AsciiPrintable: "ascii_printable",
	AlphaCaps:      "alpha_caps",
	AlphaSmall:     "alpha_small",
	Alpha:          "alpha",
	Dec:            "dec",
	HexDecCaps:     "hex_caps",
	HexDecSmall:    "hex_small",
	AlphaCapsNum:   "alpha_caps_num",
	AlphaNum:       "alpha_num",
	AlphaNumDash:   "alpha_num_dash",
	AlphaNumLodash: "alpha_num_lodash",
}

func (c Charset) valid() bool { return c >= AsciiPrintable && c <= AlphaNumLodash }

func (c Charset) String() string {
	if c.valid() {
		return charsetNames[c]
	}
	return fmt.Sprintf("charset(%d)", uint8(c))
}

// ParseCharset maps a name printed by String back to its Charset.
func ParseCharset(name string) (Charset, bool) {
	for c := AsciiPrintable; c <= AlphaNumLodash; c++ {
		if charsetNames[c] == name {
			return c, true
		}
	}
	return 0, false
}

// Contains reports whether b belongs to the alphabet.
func (c Charset) Contains(b byte) bool {
	digit := '0' <= b && b <= '9'
	caps := 'A' <= b && b <= 'Z'
	small := 'a' <= b && b <= 'z'
	switch c {
	case AsciiPrintable:
		return ' ' <= b && b <= '~'
	case AlphaCaps:
		return caps
	case AlphaSmall:
		return small
	case Alpha:
		return caps || small
	case Dec:
		return digit
	case HexDecCaps:
		return digit || ('A' <= b && b <= 'F')
	case HexDecSmall:
		return digit || ('a' <= b && b <= 'f')
	case AlphaCapsNum:
		return digit || caps
	case AlphaNum:
		return digit || caps || small
	case AlphaNumDash:
		return digit || caps || small || b == '-'
	case AlphaNumLodash:
		return digit || caps || small || b == '_'
	}
	return false
}

// checkRText finds the first byte of s outside its alphabet.
func checkRText(s string, first, rest Charset) error {
	for i := 0; i < len(s); i++ {
		cs := rest
		if i == 0 {
			cs = first
		}
		if !cs.Contains(s[i]) {
			return fmt.Errorf("%w: byte %#02x at %d is not %s", ErrInvalidText, s[i], i, cs)
		}
	}
	return nil
}

// WriteRText writes text restricted to ASCII alphabets: first for the
// leading character, rest for the others.
func WriteRText(w *Writer, text string, first, rest Charset, s Sizing) error {
	if err := checkRText(text, first, rest); err != nil {
		return err
	}
	if err := w.writeLen(len(text), s); err != nil {
		return err
	}
	return w.WriteRaw([]byte(text))
}

// ReadRText reads text written by WriteRText and rejects any byte outside
// the alphabets.
func ReadRText(r *Reader, first, rest Charset, s Sizing) (string, error) {
	n, err := r.readLen(s)
	if err != nil {
		return "", err
	}
	p, err := r.ReadRaw(n)
	if err != nil {
		return "", err
	}
	text := string(p)
	if err := checkRText(text, first, rest); err != nil {
		return "", fmt.Errorf("%w (offset %d)", err, r.Offset()-n)
	}
	return text, nil
}
