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

package models

// Trip statuses.
const (
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
	StatusError     = "Error"
)

// DateLayout is the calendar-day format used for receipt dates.
const DateLayout = "2006-01-02"

// ParsedReceipt is the normalized record a vendor parser produces for one
// message. Amount is never negative and Status is always set.
type ParsedReceipt struct {
	ID       string  `json:"id"`
	EmailID  string  `json:"email_id"`
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Location string  `json:"location"`
	Service  string  `json:"service"`
	Status   string  `json:"status"`

	PickupLocation  string `json:"pickup_location,omitempty"`
	DropoffLocation string `json:"dropoff_location,omitempty"`
	PickupTime      string `json:"pickup_time,omitempty"`
	DropoffTime     string `json:"dropoff_time,omitempty"`
	DriverName      string `json:"driver_name,omitempty"`
	VehicleInfo     string `json:"vehicle_info,omitempty"`
	ServiceID       string `json:"service_id,omitempty"`
	PDFURL          string `json:"pdf_url,omitempty"`
	MailURL         string `json:"mail_url,omitempty"`

	// Vendor-internal details, dropped by Project.
	TripType      string `json:"trip_type,omitempty"`
	Duration      string `json:"duration,omitempty"`
	Distance      string `json:"distance,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	VehicleNumber string `json:"vehicle_number,omitempty"`
	VehicleType   string `json:"vehicle_type,omitempty"`
	TimeOfRide    string `json:"time_of_ride,omitempty"`
	HasPDF        bool   `json:"has_pdf,omitempty"`
	PDFPages      int    `json:"pdf_pages,omitempty"`
}

// ParseOutcome wraps a receipt with the parser's verdict. A failed outcome
// carries a placeholder receipt, never partial extraction results.
type ParseOutcome struct {
	Receipt ParsedReceipt `json:"receipt"`
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
}

// Receipt is the vendor-agnostic row returned to API consumers.
type Receipt struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency,omitempty"`
	Location        string  `json:"location"`
	PickupLocation  string  `json:"pickupLocation,omitempty"`
	DropoffLocation string  `json:"dropoffLocation,omitempty"`
	PickupTime      string  `json:"pickupTime,omitempty"`
	DropoffTime     string  `json:"dropoffTime,omitempty"`
	PDFURL          string  `json:"pdfUrl,omitempty"`
	MailURL         string  `json:"gmailUrl,omitempty"`
	Service         string  `json:"service"`
	ServiceID       string  `json:"serviceId,omitempty"`
	DriverName      string  `json:"driverName,omitempty"`
	VehicleInfo     string  `json:"vehicleInfo,omitempty"`
	Status          string  `json:"status,omitempty"`
}

// Project drops vendor-internal fields.
func (r ParsedReceipt) Project() Receipt {
	return Receipt{
		ID:              r.ID,
		Date:            r.Date,
		Amount:          r.Amount,
		Currency:        r.Currency,
		Location:        r.Location,
		PickupLocation:  r.PickupLocation,
		DropoffLocation: r.DropoffLocation,
		PickupTime:      r.PickupTime,
		DropoffTime:     r.DropoffTime,
		PDFURL:          r.PDFURL,
		MailURL:         r.MailURL,
		Service:         r.Service,
		ServiceID:       r.ServiceID,
		DriverName:      r.DriverName,
		VehicleInfo:     r.VehicleInfo,
		Status:          r.Status,
	}
}
