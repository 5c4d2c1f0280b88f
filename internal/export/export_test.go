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

package export

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fareledger/receipts/internal/models"
)

func TestSummary(t *testing.T) {
	receipts := []models.Receipt{
		{ID: "b", Date: "2024-03-05", Amount: 20.25, PickupTime: "2:30 PM"},
		{ID: "a", Date: "2024-03-01", Amount: 10.1, PickupTime: "12:40 AM"},
		{ID: "c", Date: "2024-03-10", Amount: 5},
	}

	got := Summary(receipts)
	want := strings.Join([]string{
		"Date\tAmount",
		"2/29/2024\t10.1",
		"3/5/2024\t20.25",
		"3/10/2024\t5",
		"",
		"TOTAL\t35.35",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestSummary_TwentyFourHourPickup(t *testing.T) {
	got := Summary([]models.Receipt{
		{Date: "2024-01-01", Amount: 1, PickupTime: "09:15"},
		{Date: "2024-01-02", Amount: 2, PickupTime: "18:00"},
		{Date: "2024-01-03", Amount: 3, PickupTime: "Unknown"},
	})

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "12/31/2023\t1", lines[1])
	assert.Equal(t, "1/2/2024\t2", lines[2])
	assert.Equal(t, "1/3/2024\t3", lines[3])
}

func TestSummary_UnparseableDatesLast(t *testing.T) {
	got := Summary([]models.Receipt{
		{Date: "someday", Amount: 1},
		{Date: "2024-01-01", Amount: 2},
	})

	lines := strings.Split(got, "\n")
	assert.Equal(t, "1/1/2024\t2", lines[1])
	assert.Equal(t, "someday\t1", lines[2])
}

func TestDetailed(t *testing.T) {
	got := Detailed([]models.Receipt{
		{
			Date: "2024-06-07", Amount: 42.5, Location: "A to B",
			DropoffLocation: "Airport", PickupTime: "9:00 AM", DropoffTime: "9:40 AM",
			MailURL: "https://mail.example/#inbox/m1",
		},
		{Date: "2024-06-08", Amount: 7.5, PickupLocation: "Main\tSt"},
	})

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Date\tAmount\tPick Up Location\tDrop Location\tPick Up Time\tDrop Time\tEmail", lines[0])
	assert.Equal(t, "6/7/2024\t42.5\tA to B\tAirport\t9:00 AM\t9:40 AM\thttps://mail.example/#inbox/m1", lines[1])
	assert.Equal(t, "6/8/2024\t7.5\tMain St\t\t\t\t", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "TOTAL\t50\t\t\t\t\t", lines[4])
}

func TestRender(t *testing.T) {
	r := []models.Receipt{{Date: "2024-01-01", Amount: 1}}

	s, err := Render("", r)
	require.NoError(t, err)
	assert.Equal(t, Summary(r), s)

	d, err := Render(FormatDetailed, r)
	require.NoError(t, err)
	assert.Equal(t, Detailed(r), d)

	_, err = Render("xlsx", r)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestSummary_Empty(t *testing.T) {
	assert.Equal(t, "Date\tAmount\n\nTOTAL\t0", Summary(nil))
}
