package domain

import (
	"strconv"
	"time"
)

// Client is a registered borrower.
type Client struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	NIF         int32     `json:"nif"`
	Contact     int32     `json:"contact"`
	Address     string    `json:"address"`
}

// ClientRef identifies a client either by surrogate id or by NIF.
// When both fields are set they must name the same client.
type ClientRef struct {
	ID  int64
	NIF int32
}

// IsZero reports whether neither key is set.
func (r ClientRef) IsZero() bool {
	return r.ID == 0 && r.NIF == 0
}

// nifPrefixes lists the leading digits that designate a valid taxpayer class.
//
//nolint:gochecknoglobals // Static lookup table
var nifPrefixes = []string{
	"1", "2", "3", "5", "6", "8", "9",
	"45", "70", "71", "72", "74", "75", "77", "79",
}

// ValidNIF reports whether n is a well-formed Portuguese tax number:
// nine digits, a recognised taxpayer prefix and a mod-11 check digit.
func ValidNIF(n int64) bool {
	s := strconv.FormatInt(n, 10)
	if len(s) != 9 {
		return false
	}

	prefixOK := false
	for _, p := range nifPrefixes {
		if s[:len(p)] == p {
			prefixOK = true
			break
		}
	}
	if !prefixOK {
		return false
	}

	sum := 0
	for i := 0; i < 8; i++ {
		sum += int(s[i]-'0') * (9 - i)
	}
	check := 11 - sum%11
	if check >= 10 {
		check = 0
	}
	return check == int(s[8]-'0')
}

// ValidContact reports whether n is a nine-digit phone number.
func ValidContact(n int64) bool {
	return n >= 100_000_000 && n <= 999_999_999
}
