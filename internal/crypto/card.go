package crypto

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/txguard/internal/model"
)

var (
	reVisa       = regexp.MustCompile(`^4\d{12}(\d{3}){0,2}$`)
	reMastercard = regexp.MustCompile(`^(5[1-5]\d{14}|2(2[2-9][1-9]|2[3-9]\d|[3-6]\d{2}|7[01]\d|720)\d{12})$`)
	reAmex       = regexp.MustCompile(`^3[47]\d{13}$`)
	reDiscover   = regexp.MustCompile(`^6(011\d{12}|5\d{14}|4[4-9]\d{13})$`)
	reJCB        = regexp.MustCompile(`^35(2[89]|[3-8]\d)\d{12}$`)

	reExpiry = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
)

// CleanCardNumber strips spaces and dashes.
func CleanCardNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}

// DetectCardBrand matches the network by prefix and length.
func DetectCardBrand(number string) model.CardBrand {
	n := CleanCardNumber(number)
	switch {
	case reVisa.MatchString(n):
		return model.BrandVisa
	case reMastercard.MatchString(n):
		return model.BrandMastercard
	case reAmex.MatchString(n):
		return model.BrandAmex
	case reDiscover.MatchString(n):
		return model.BrandDiscover
	case reJCB.MatchString(n):
		return model.BrandJCB
	default:
		return model.BrandUnknown
	}
}

// ValidateCardNumber checks format (13..19 digits after stripping separators)
// and the Luhn checksum.
func ValidateCardNumber(number string) bool {
	n := CleanCardNumber(number)
	if len(n) < 13 || len(n) > 19 {
		return false
	}
	sum, alt := 0, false
	for i := len(n) - 1; i >= 0; i-- {
		c := int(n[i]) - '0'
		if c < 0 || c > 9 {
			return false
		}
		if alt {
			c *= 2
			if c > 9 {
				c -= 9
			}
		}
		sum += c
		alt = !alt
	}
	return sum%10 == 0
}

// ValidateExpiry reports whether expiry is a well-formed MM/YY date whose
// month has not ended at now.
func ValidateExpiry(expiry string, now time.Time) bool {
	m := reExpiry.FindStringSubmatch(strings.TrimSpace(expiry))
	if m == nil {
		return false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	// first instant after the expiry month
	end := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return now.Before(end)
}

// MaskCardNumber renders the last four digits behind a fixed mask.
func MaskCardNumber(lastFour string) string {
	return "**** **** **** " + lastFour
}
