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

package uber

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/fareledger/receipts/internal/models"
)

// inlinePDF returns the first attachment that looks like a PDF and came
// with its bytes inline.
func inlinePDF(msg models.RawMessage) (models.Attachment, bool) {
	for _, a := range msg.Attachments {
		if strings.Contains(strings.ToLower(a.MimeType), "pdf") && a.Data != "" {
			return a, true
		}
	}
	return models.Attachment{}, false
}

// pdfPages counts the pages of an inline attachment. Only the page count is
// read; receipt text is taken from the HTML body.
func pdfPages(data string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader crashed: %v", r)
		}
	}()

	raw, err := decodeAttachment(data)
	if err != nil {
		return 0, err
	}

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return r.NumPage(), nil
}

// decodeAttachment accepts Gmail's base64url payloads with or without
// padding, and plain base64.
func decodeAttachment(data string) ([]byte, error) {
	data = strings.TrimRight(strings.TrimSpace(data), "=")
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	return b, nil
}
