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
	"regexp"
	"strings"

	"github.com/fareledger/receipts/internal/extract"
)

const (
	fieldAmount        extract.Field = "amount"
	fieldPickup        extract.Field = "pickup_location"
	fieldDropoff       extract.Field = "dropoff_location"
	fieldTripID        extract.Field = "trip_id"
	fieldTripType      extract.Field = "trip_type"
	fieldPickupTime    extract.Field = "pickup_time"
	fieldDropoffTime   extract.Field = "dropoff_time"
	fieldDuration      extract.Field = "duration"
	fieldPaymentMethod extract.Field = "payment_method"
	fieldDriver        extract.Field = "driver_name"
	fieldDistance      extract.Field = "distance"
)

// Uber18 template rows: a clock time cell followed by an address cell.
const (
	uber18Time     = `(\d{1,2}:\d{2}\s*[AP]M)`
	uber18TimeRow  = `(?i)<tr><td[^>]*>` + uber18Time + `</td></tr><tr><td[^>]*class="[^"]*Uber18_text_p1[^"]*"[^>]*>(.*?)</td></tr>`
	uber18TimeCell = `(?i)<td[^>]*>` + uber18Time + `</td></tr><tr><td[^>]*class="[^"]*Uber18_text_p1[^"]*"[^>]*>(.*?)</td>`
	uber18P2Cell   = `(?i)<td[^>]*class="[^"]*Uber18_text_p2[^"]*"[^>]*>` + uber18Time + `</td></tr><tr><td[^>]*class="[^"]*Uber18_text_p1[^"]*"[^>]*>(.*?)</td>`
)

// placePick prefers a captured place (group 2) over group 1 and never
// accepts a bare clock time as a place.
func placePick(m []string) string {
	if len(m) > 2 && strings.TrimSpace(m[2]) != "" {
		return m[2]
	}
	if len(m) > 1 && !extract.IsClockTime(m[1]) {
		return m[1]
	}
	return ""
}

var cardBrackets = strings.NewReplacer("<", "", ">", "")

func cardPick(m []string) string { return cardBrackets.Replace(m[0]) }

func place(expr string) extract.Matcher { return extract.RuleWith(expr, placePick) }

var table = extract.Table{
	Clean: extract.Trim,
	Fields: map[extract.Field]extract.Rules{
		fieldAmount: {
			extract.RuleWith(`(?i)Total\s*[:<].*?[$₹£€]([0-9.]+)`, extract.DecimalGroup),
			extract.RuleWith(`(?i)Amount\s*charged\s*[:<].*?[$₹£€]([0-9.]+)`, extract.DecimalGroup),
			extract.RuleWith(`(?i)<td[^>]*>.*?Total.*?</td>[^<]*<td[^>]*>.*?[$₹£€]([0-9.]+)`, extract.DecimalGroup),
			extract.RuleWith(`(?i)[$₹£€]\s*([0-9.]+)\s*Total`, extract.DecimalGroup),
		},
		fieldPickup: {
			place(`(?i)Pickup\s*[:<].*?>(.*?)<`),
			place(`(?i)From\s*[:<].*?>(.*?)<`),
			place(`(?i)>\s*Pickup\s*(?:location|point|address)?:\s*(.*?)(?:<|$)`),
			place(uber18TimeRow),
			place(uber18TimeCell),
			place(uber18P2Cell),
		},
		fieldDropoff: {
			place(`(?i)Dropoff\s*[:<].*?>(.*?)<`),
			place(`(?i)To\s*[:<].*?>(.*?)<`),
			place(`(?i)>\s*Dropoff\s*(?:location|point|address)?:\s*(.*?)(?:<|$)`),
			place(uber18TimeRow),
			place(uber18TimeCell),
			place(uber18P2Cell),
		},
		fieldTripID: {
			extract.Rule(`(?i)Trip\s*ID\s*[:<].*?([A-Za-z0-9-]+)`),
			extract.Rule(`(?i)Receipt\s*ID\s*[:<].*?([A-Za-z0-9-]+)`),
			extract.Rule(`(?i)Receipt\s*#\s*[:<].*?([A-Za-z0-9-]+)`),
		},
		fieldTripType: {
			extract.Rule(`(?i)Trip\s*type\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)<.*?>\s*(UberX|Uber Black|Uber Eats|Uber XL|UberPOOL)`),
		},
		fieldPickupTime: {
			extract.Rule(`(?i)Pickup\s*time\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)>\s*(\d{1,2}:\d{2}\s*[AP]M).*?Pickup`),
			extract.Rule(`(?i)<td[^>]*class="[^"]*Uber18_text_p2[^"]*"[^>]*>(\d{1,2}:\d{2}\s*[AP]M)</td>`),
			extract.Rule(`(?i)<tr><td[^>]*>(\d{1,2}:\d{2}\s*[AP]M)</td></tr>`),
		},
		fieldDropoffTime: {
			extract.Rule(`(?i)Dropoff\s*time\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)>\s*(\d{1,2}:\d{2}\s*[AP]M).*?Dropoff`),
			extract.Rule(`(?i)<td[^>]*class="[^"]*Uber18_text_p2[^"]*"[^>]*>(\d{1,2}:\d{2}\s*[AP]M)</td>`),
			extract.Rule(`(?i)<tr><td[^>]*>(\d{1,2}:\d{2}\s*[AP]M)</td></tr>`),
		},
		fieldDuration: {
			extract.Rule(`(?i)Duration\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)Trip\s*time\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)>\s*(\d+)\s*min(?:utes?)?<`),
		},
		fieldPaymentMethod: {
			extract.Rule(`(?i)Payment\s*method\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)Paid\s*with\s*[:<].*?>(.*?)<`),
			extract.RuleWith(`(?i)>\s*Visa\s*\*\d{4}<`, cardPick),
			extract.RuleWith(`(?i)>\s*Mastercard\s*\*\d{4}<`, cardPick),
			extract.RuleWith(`(?i)>\s*AMEX\s*\*\d{4}<`, cardPick),
		},
		fieldDriver: {
			extract.Rule(`(?i)Driver\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)Driver\s*name\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)Your\s*driver\s*[:<].*?>(.*?)<`),
		},
		fieldDistance: {
			extract.Rule(`(?i)Distance\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)Trip\s*distance\s*[:<].*?>(.*?)<`),
			extract.Rule(`(?i)>(\d+(?:\.\d+)?)\s*(?:miles|mi|km)</td>`),
		},
	},
}

// Address cells of the Uber18 template, used when the labelled patterns
// find nothing.
var (
	landmarkAddress = extract.Rules{
		extract.Rule(`(?i)<td[^>]*class="[^"]*Uber18_text_p1[^"]*"[^>]*>([^<]*(?:Road|Street|Avenue|Lane|Boulevard|Blvd|St|Rd|Ave|Ln|Drive|Dr|Court|Ct|Plaza|Pl|Square|Sq|Highway|Hwy|Sector|Colony|Nagar|Wadi|Park|Village|Apartment|Flat)[^<]*)</td>`),
	}
	commaAddress = extract.Rules{
		extract.Rule(`(?i)<td[^>]*class="[^"]*Uber18_text_p1[^"]*black[^"]*"[^>]*>([^<]+(?:,)[^<]+)</td>`),
	}
	// The first two time patterns are labelled; the rest are positional.
	labelledTimes = 2
	bareNumber    = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)
