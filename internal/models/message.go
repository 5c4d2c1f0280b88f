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

// Package models defines the data structures shared across the receipts service.
package models

import "time"

// PDFMimeType is the only MIME type accepted for attachment-based PDF links.
const PDFMimeType = "application/pdf"

// Credential is the opaque bearer token and account identifier forwarded to
// the mail provider.
type Credential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Attachment describes a file attached to a message. Data holds the inline
// base64url payload when the provider returned one.
type Attachment struct {
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	AttachmentID string `json:"attachment_id,omitempty"`
	Data         string `json:"data,omitempty"`
}

// IsPDF reports whether the attachment can back a download reference.
func (a Attachment) IsPDF() bool {
	return a.MimeType == PDFMimeType && a.AttachmentID != ""
}

// MessageBody holds the plain-text and HTML variants of a message body.
type MessageBody struct {
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}

// RawMessage is one fetched email as returned by the mail provider. It is
// read-only to the extraction pipeline and never persisted.
type RawMessage struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	Snippet     string       `json:"snippet"`
	Subject     string       `json:"subject,omitempty"`
	From        string       `json:"from,omitempty"`
	To          string       `json:"to,omitempty"`
	Date        string       `json:"date,omitempty"`
	Body        *MessageBody `json:"body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// HTML returns the HTML body, or "" when the message has none.
func (m RawMessage) HTML() string {
	if m.Body == nil {
		return ""
	}
	return m.Body.HTML
}

// Text returns the plain-text body, or "" when the message has none.
func (m RawMessage) Text() string {
	if m.Body == nil {
		return ""
	}
	return m.Body.Text
}

// SearchParams is a provider search request.
type SearchParams struct {
	Query      string
	Start      time.Time
	End        time.Time
	MaxResults int
}

// SearchResult is the provider's answer to a search.
type SearchResult struct {
	Messages           []RawMessage `json:"messages"`
	NextPageToken      string       `json:"next_page_token,omitempty"`
	ResultSizeEstimate int64        `json:"result_size_estimate"`
}
