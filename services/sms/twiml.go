// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sms

import (
	"encoding/xml"
	"strings"
)

// TwiMLContentType is the Content-Type Twilio expects on webhook replies.
const TwiMLContentType = "text/xml; charset=utf-8"

// MessagingResponse renders the TwiML reply document for an inbound SMS
// webhook. Twilio sends the body back to the sender as a text message.
func MessagingResponse(body string) string {
	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(body))
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Message>` +
		escaped.String() + `</Message></Response>`
}

// EmptyResponse renders a TwiML document with no reply, used when the
// message was handled out of band (or dropped on purpose).
func EmptyResponse() string {
	return `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
}
