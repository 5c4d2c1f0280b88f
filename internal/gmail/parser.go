// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gmail

import (
	"encoding/base64"
	"strings"

	gm "google.golang.org/api/gmail/v1"

	"github.com/fareledger/receipts/internal/models"
)

// toRawMessage converts a full-format Gmail message.
func toRawMessage(msg *gm.Message) models.RawMessage {
	raw := models.RawMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if msg.Payload == nil {
		return raw
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			raw.Subject = h.Value
		case "from":
			raw.From = h.Value
		case "to":
			raw.To = h.Value
		case "date":
			raw.Date = h.Value
		}
	}

	body := extractBody(msg.Payload)
	if body.Text != "" || body.HTML != "" {
		raw.Body = &body
	}
	raw.Attachments = extractAttachments(msg.Payload)
	return raw
}

// extractBody takes text/plain and text/html content from the part tree.
// Direct children win over nested multipart content.
func extractBody(part *gm.MessagePart) models.MessageBody {
	var body models.MessageBody

	if part.Body != nil && part.Body.Data != "" {
		switch part.MimeType {
		case "text/plain":
			body.Text = decodeString(part.Body.Data)
		case "text/html":
			body.HTML = decodeString(part.Body.Data)
		}
	}

	for _, p := range part.Parts {
		if p.Body != nil && p.Body.Data != "" {
			switch p.MimeType {
			case "text/plain":
				body.Text = decodeString(p.Body.Data)
			case "text/html":
				body.HTML = decodeString(p.Body.Data)
			}
		}
		if len(p.Parts) > 0 {
			nested := extractBody(p)
			if body.Text == "" {
				body.Text = nested.Text
			}
			if body.HTML == "" {
				body.HTML = nested.HTML
			}
		}
	}
	return body
}

// extractAttachments lists every named part below the root.
func extractAttachments(root *gm.MessagePart) []models.Attachment {
	var out []models.Attachment
	var walk func(p *gm.MessagePart)
	walk = func(p *gm.MessagePart) {
		if p.Filename != "" {
			a := models.Attachment{Filename: p.Filename, MimeType: p.MimeType}
			if p.Body != nil {
				a.AttachmentID = p.Body.AttachmentId
				a.Data = p.Body.Data
			}
			out = append(out, a)
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	for _, p := range root.Parts {
		walk(p)
	}
	return out
}

// decodeData decodes Gmail's base64url payloads, padded or not.
func decodeData(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func decodeString(s string) string {
	b, err := decodeData(s)
	if err != nil {
		return ""
	}
	return string(b)
}
