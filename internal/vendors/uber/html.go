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
	"strings"

	"github.com/fareledger/receipts/internal/extract"
	"github.com/fareledger/receipts/internal/models"
)

const (
	unknownLocation = "Unknown location"
	defaultTripType = "Uber Receipt"
	eatsTripType    = "Uber Eats"
)

// parseHTML runs the field table over a receipt body. Fields that were not
// found are left empty; Location and TripType always get a value.
func parseHTML(html string) models.ParsedReceipt {
	var r models.ParsedReceipt

	r.PDFURL, _ = extract.SecondHref(html)

	if v, ok := table.Get(html, fieldAmount); ok {
		if amount, err := extract.ParseDecimal(v); err == nil {
			r.Amount = amount
		}
	}

	r.PickupLocation, r.DropoffLocation = locations(html)
	r.Location = summary(r.PickupLocation, r.DropoffLocation)

	r.ServiceID, _ = table.Get(html, fieldTripID)
	r.TripType = tripType(html)
	r.PickupTime, r.DropoffTime, r.Duration = times(html)
	r.PaymentMethod, _ = table.Get(html, fieldPaymentMethod)
	r.Currency, _ = extract.Currency(html)
	r.DriverName, _ = table.Get(html, fieldDriver)
	r.Distance = distance(html)

	return r
}

// locations picks pickup and dropoff among every candidate the labelled and
// template patterns produce. Dropoff is never the same text as pickup.
func locations(html string) (pickup, dropoff string) {
	pickups := table.All(html, fieldPickup)
	dropoffs := table.All(html, fieldDropoff)

	addrs := landmarkAddress.All(html, extract.Trim)
	switch {
	case len(addrs) >= 2:
		pickups = append(pickups, addrs[0])
		dropoffs = append(dropoffs, addrs[1])
	case len(addrs) == 1:
		pickups = append(pickups, addrs[0])
	}

	if len(pickups) == 0 || len(dropoffs) == 0 {
		simple := commaAddress.All(html, extract.Trim)
		switch {
		case len(simple) >= 2:
			if len(pickups) == 0 {
				pickups = append(pickups, simple[0])
			}
			if len(dropoffs) == 0 {
				dropoffs = append(dropoffs, simple[1])
			}
		case len(simple) == 1 && len(pickups) == 0:
			pickups = append(pickups, simple[0])
		}
	}

	if len(pickups) > 0 {
		pickup = pickups[0]
	}
	dropoff, _ = extract.FirstDistinct(dropoffs, pickup)
	return pickup, dropoff
}

func summary(pickup, dropoff string) string {
	switch {
	case pickup != "" && dropoff != "":
		return pickup + " to " + dropoff
	case pickup != "":
		return pickup
	case dropoff != "":
		return dropoff
	default:
		return unknownLocation
	}
}

func tripType(html string) string {
	if v, ok := table.Get(html, fieldTripType); ok {
		return v
	}
	if strings.Contains(html, "Uber Eats") || strings.Contains(html, "UberEats") {
		return eatsTripType
	}
	return defaultTripType
}

// times extracts pickup and dropoff clock times and the trip duration. When
// the receipt states no duration it is derived from the two times.
func times(html string) (pickup, dropoff, duration string) {
	pickup, _ = table.Get(html, fieldPickupTime)

	rules := table.Fields[fieldDropoffTime]
	for _, m := range rules[:labelledTimes] {
		if v, ok := (extract.Rules{m}).First(html, extract.Trim); ok && v != pickup {
			dropoff = v
			break
		}
	}
	if dropoff == "" {
		dropoff, _ = extract.FirstDistinct(rules[labelledTimes:].All(html, extract.Trim), pickup)
	}

	if v, ok := table.Get(html, fieldDuration); ok {
		duration = extract.Minutes(v)
	} else if pickup != "" && dropoff != "" {
		duration, _ = extract.DeriveDuration(pickup, dropoff)
	}
	return pickup, dropoff, duration
}

func distance(html string) string {
	v, ok := table.Get(html, fieldDistance)
	if !ok {
		return ""
	}
	if !bareNumber.MatchString(v) {
		return v
	}
	if strings.Contains(html, "km") || strings.Contains(html, "kilometer") {
		return v + " km"
	}
	return v + " mi"
}
