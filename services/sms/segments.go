// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sms holds the Twilio REST client, TwiML rendering for inbound
// webhook replies, and segment-count estimation used to keep outbound
// bodies cheap.
package sms

import "strings"

// GSM-7 segment sizes: 160 chars in a single segment, 153 per segment once
// the message splits (7 chars go to the concatenation header). UCS-2 drops
// those to 70 and 67.
const (
	gsmSingleSegment = 160
	gsmMultiSegment  = 153
	ucsSingleSegment = 70
	ucsMultiSegment  = 67
)

// gsmBasicSet is the GSM 03.38 basic character set plus the extension
// characters Twilio transcodes without falling back to UCS-2.
const gsmBasicSet = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑܧ¿abcdefghijklmnopqrstuvwxyzäöñüà" +
	"^{}\\[~]|€"

// EstimateSegments returns how many SMS segments body will occupy. A single
// character outside the GSM-7 set forces the whole message to UCS-2, which
// more than halves the per-segment capacity — that cliff is why the
// formatter sticks to plain ASCII.
func EstimateSegments(body string) int {
	if body == "" {
		return 0
	}

	gsm := true
	count := 0
	for _, r := range body {
		count++
		if gsm && !strings.ContainsRune(gsmBasicSet, r) {
			gsm = false
		}
	}

	single, multi := gsmSingleSegment, gsmMultiSegment
	if !gsm {
		single, multi = ucsSingleSegment, ucsMultiSegment
	}
	if count <= single {
		return 1
	}
	return (count + multi - 1) / multi
}
