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

// Package pdflink derives download references for receipt PDFs from
// attachment metadata. It never touches attachment bytes.
package pdflink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fareledger/receipts/internal/models"
)

const (
	DefaultDownloadPath = "/api/attachments/download"
	DefaultViewerURL    = "https://mail.google.com/mail/u/0/#inbox/"
	DefaultFilename     = "receipt.pdf"
)

// ErrNotDownloadReference is returned by ParseReference for strings that do
// not carry both a message id and an attachment id.
var ErrNotDownloadReference = errors.New("not an attachment download reference")

// Resolver builds references against the configured download endpoint and
// mail viewer. The zero value uses the defaults.
type Resolver struct {
	DownloadPath string
	ViewerURL    string
}

// Reference identifies one attachment of one message.
type Reference struct {
	MessageID    string
	AttachmentID string
	Filename     string
}

// Encode serialises the reference as query parameters on path.
func (r Reference) Encode(path string) string {
	q := url.Values{}
	q.Set("messageId", r.MessageID)
	q.Set("attachmentId", r.AttachmentID)
	q.Set("filename", r.Filename)
	return path + "?" + q.Encode()
}

// ParseReference recovers a Reference from an encoded download link.
func ParseReference(ref string) (Reference, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return Reference{}, fmt.Errorf("parse reference: %w", err)
	}
	q := u.Query()
	r := Reference{
		MessageID:    q.Get("messageId"),
		AttachmentID: q.Get("attachmentId"),
		Filename:     q.Get("filename"),
	}
	if r.MessageID == "" || r.AttachmentID == "" {
		return Reference{}, ErrNotDownloadReference
	}
	return r, nil
}

// Resolve returns a download reference for the first PDF attachment of msg,
// or a link to the message in the mail viewer when it has none.
func (res Resolver) Resolve(msg models.RawMessage, defaultFilename string) string {
	att, ok := firstPDF(msg)
	if !ok {
		return res.ViewerLink(msg.ID)
	}

	filename := att.Filename
	if filename == "" {
		filename = defaultFilename
	}
	if filename == "" {
		filename = DefaultFilename
	}

	return Reference{
		MessageID:    msg.ID,
		AttachmentID: att.AttachmentID,
		Filename:     filename,
	}.Encode(res.downloadPath())
}

// ViewerLink points at a message in the mail web client.
func (res Resolver) ViewerLink(messageID string) string {
	base := res.ViewerURL
	if base == "" {
		base = DefaultViewerURL
	}
	return base + messageID
}

// HasPDF reports whether msg carries an attachment Resolve can link to.
func HasPDF(msg models.RawMessage) bool {
	_, ok := firstPDF(msg)
	return ok
}

func (res Resolver) downloadPath() string {
	if p := strings.TrimSpace(res.DownloadPath); p != "" {
		return p
	}
	return DefaultDownloadPath
}

func firstPDF(msg models.RawMessage) (models.Attachment, bool) {
	for _, a := range msg.Attachments {
		if a.IsPDF() {
			return a, true
		}
	}
	return models.Attachment{}, false
}
