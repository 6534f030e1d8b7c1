// Package barcode implements the EAN-13 / UPC-A check digit used when new
// barcodes are generated for existing SKUs.
package barcode

import (
	"errors"
	"strconv"
	"strings"
)

// RawLength is the number of data digits in an EAN-13 code.
const RawLength = 12

var (
	// ErrEmptyRaw is returned when there is nothing to compute from.
	ErrEmptyRaw = errors.New("barcode: raw value is empty")
	// ErrInvalidRaw is returned for non-digit input or input longer than RawLength.
	ErrInvalidRaw = errors.New("barcode: raw value must be 1-12 digits")
)

// IsDigits reports whether s is non-empty and made of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Pad left-pads raw with zeros to RawLength. Longer input is returned as is.
func Pad(raw string) string {
	if len(raw) >= RawLength {
		return raw
	}
	return strings.Repeat("0", RawLength-len(raw)) + raw
}

// CheckDigit computes the modulo-10 check digit of raw after padding it to 12
// digits. Digits at even indexes weigh 1, odd indexes weigh 3.
func CheckDigit(raw string) (int, error) {
	if raw == "" {
		return 0, ErrEmptyRaw
	}
	if !IsDigits(raw) || len(raw) > RawLength {
		return 0, ErrInvalidRaw
	}
	padded := Pad(raw)

	oddSum, evenSum := 0, 0
	for i := 0; i < RawLength; i++ {
		d := int(padded[i] - '0')
		if i%2 == 0 {
			oddSum += d
		} else {
			evenSum += d
		}
	}
	total := oddSum + 3*evenSum
	return (10 - total%10) % 10, nil
}

// Generate returns raw followed by its check digit.
//
// The check digit is computed over the zero-padded value but appended to the
// unpadded input, so raw values shorter than 12 digits produce codes shorter
// than 13 digits. Callers that need a scannable code should pass 12 digits.
func Generate(raw string) (string, error) {
	digit, err := CheckDigit(raw)
	if err != nil {
		return "", err
	}
	return raw + strconv.Itoa(digit), nil
}

// ComputeEAN13 is the form level variant of Generate: input that cannot be
// computed (empty, non-digit, too long) yields an empty derived barcode.
func ComputeEAN13(raw string) string {
	code, err := Generate(raw)
	if err != nil {
		return ""
	}
	return code
}

// Valid reports whether code is a 13 digit EAN with a correct check digit.
func Valid(code string) bool {
	if len(code) != RawLength+1 || !IsDigits(code) {
		return false
	}
	digit, err := CheckDigit(code[:RawLength])
	if err != nil {
		return false
	}
	return int(code[RawLength]-'0') == digit
}
