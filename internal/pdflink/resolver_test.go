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

package pdflink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fareledger/receipts/internal/models"
)

func TestResolve_RoundTrip(t *testing.T) {
	msg := models.RawMessage{
		ID: "M1",
		Attachments: []models.Attachment{
			{Filename: "receipt.pdf", MimeType: models.PDFMimeType, AttachmentID: "A1"},
		},
	}

	ref := Resolver{}.Resolve(msg, "")
	assert.True(t, strings.HasPrefix(ref, DefaultDownloadPath+"?"), ref)

	got, err := ParseReference(ref)
	require.NoError(t, err)
	assert.Equal(t, Reference{MessageID: "M1", AttachmentID: "A1", Filename: "receipt.pdf"}, got)

	again := Resolver{}.Resolve(msg, "")
	assert.Equal(t, ref, again, "resolution is deterministic")
}

func TestResolve_ViewerFallback(t *testing.T) {
	msg := models.RawMessage{
		ID: "xyz123",
		Attachments: []models.Attachment{
			{Filename: "logo.png", MimeType: "image/png", AttachmentID: "IMG"},
		},
	}

	ref := Resolver{}.Resolve(msg, "rapido-receipt.pdf")
	assert.Equal(t, DefaultViewerURL+"xyz123", ref)
	assert.NotContains(t, ref, "attachmentId")

	_, err := ParseReference(ref)
	assert.ErrorIs(t, err, ErrNotDownloadReference)
}

func TestResolve_SkipsUnusableAttachments(t *testing.T) {
	msg := models.RawMessage{
		ID: "M2",
		Attachments: []models.Attachment{
			{Filename: "inline.pdf", MimeType: models.PDFMimeType},
			{Filename: "x.pdf", MimeType: "application/x-pdf", AttachmentID: "X"},
			{MimeType: models.PDFMimeType, AttachmentID: "A2"},
		},
	}

	res := Resolver{DownloadPath: "/dl", ViewerURL: "https://mail.example/#"}
	ref := res.Resolve(msg, "rapido-receipt.pdf")

	got, err := ParseReference(ref)
	require.NoError(t, err)
	assert.Equal(t, "A2", got.AttachmentID)
	assert.Equal(t, "rapido-receipt.pdf", got.Filename, "missing filename falls back to the caller default")
	assert.True(t, strings.HasPrefix(ref, "/dl?"))
	assert.True(t, HasPDF(msg))
	assert.False(t, HasPDF(models.RawMessage{ID: "none"}))
}

func TestResolver_ViewerLink(t *testing.T) {
	assert.Equal(t, DefaultViewerURL+"abc", Resolver{}.ViewerLink("abc"))
	assert.Equal(t, "https://mail.example/#abc", Resolver{ViewerURL: "https://mail.example/#"}.ViewerLink("abc"))
}

func TestParseReference_Escaping(t *testing.T) {
	in := Reference{MessageID: "m&1", AttachmentID: "a=b/c", Filename: "my receipt.pdf"}
	got, err := ParseReference(in.Encode("/api/attachments/download"))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
