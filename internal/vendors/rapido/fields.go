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

package rapido

import "github.com/fareledger/receipts/internal/extract"

const (
	fieldCustomerName  extract.Field = "customer_name"
	fieldRideID        extract.Field = "ride_id"
	fieldDriverName    extract.Field = "driver_name"
	fieldVehicleNumber extract.Field = "vehicle_number"
	fieldVehicleType   extract.Field = "vehicle_type"
	fieldTimeOfRide    extract.Field = "time_of_ride"
	fieldAmount        extract.Field = "amount"
	fieldPickup        extract.Field = "pickup_location"
	fieldDropoff       extract.Field = "dropoff_location"
)

// labelled builds the two matchers Rapido uses for a label/value row: the
// exact value cell first, then any right-aligned cell after the label.
func labelled(label, class, value string) extract.Rules {
	return extract.Rules{
		extract.Rule(`(?i)` + label + `[\s\S]*?<div[^>]*class="[^"]*` + class + `[^"]*align-right[^"]*"[^>]*>\s*(` + value + `)`),
		extract.Rule(`(?i)` + label + `[\s\S]*?align-right[^>]*>\s*(` + value + `)`),
	}
}

const (
	anyText = `[^<\r\n]+`
	code    = `[A-Z0-9]+`
)

var table = extract.Table{
	Clean: extract.Collapse,
	Fields: map[extract.Field]extract.Rules{
		fieldCustomerName:  labelled("Customer Name", "ride-label", anyText),
		fieldRideID:        labelled("Ride ID", "ride-value", code),
		fieldDriverName:    labelled("Driver name", "ride-value", anyText),
		fieldVehicleNumber: labelled("Vehicle Number", "ride-value", code),
		fieldVehicleType:   labelled("Mode of Vehicle", "ride-value", anyText),
		fieldTimeOfRide:    labelled("Time of Ride", "ride-value", anyText),
		fieldAmount: {
			extract.Rule(`(?i)Selected Price[\s\S]*?₹\s*([0-9,]+)`),
			extract.Rule(`(?i)ride-cost[^>]*>[\s\S]*?₹\s*([0-9,]+)`),
			extract.Rule(`(?i)₹\s*([0-9,]+)`),
		},
		fieldPickup: {
			extract.Rule(`(?i)pickup\.png[\s\S]*?<div[^>]*class="[^"]*content[^"]*location[^"]*"[^>]*>\s*([^<]+)`),
			extract.Rule(`(?i)pickup-point[\s\S]*?class="[^"]*content[^"]*location[^"]*"[^>]*>\s*([^<]+)`),
		},
		fieldDropoff: {
			extract.Rule(`(?i)drop\.png[\s\S]*?<div[^>]*class="[^"]*content[^"]*location[^"]*"[^>]*>\s*([^<]+)`),
			extract.Rule(`(?i)drop-point[\s\S]*?class="[^"]*content[^"]*location[^"]*"[^>]*>\s*([^<]+)`),
		},
	},
}
