package domain

import "time"

// RentalStatus enumerates the lifecycle of a rental record as reported by the
// rental service.
type RentalStatus string

// Rental status values.
const (
	RentalInProgress RentalStatus = "IN_PROGRESS"
	RentalFinished   RentalStatus = "FINISHED"
	RentalCanceled   RentalStatus = "CANCELED"
)

// PaymentStatus enumerates the lifecycle of a payment as reported by the payment service.
type PaymentStatus string

// Payment status values.
const (
	PaymentPaid     PaymentStatus = "PAID"
	PaymentCanceled PaymentStatus = "CANCELED"
)

// CarType enumerates the class of a car as returned by the cars service.
type CarType string

// Car type values used by the cars service's catalog.
const (
	CarTypeSedan   CarType = "SEDAN"
	CarTypeHatch   CarType = "HATCHBACK"
	CarTypeSUV     CarType = "SUV"
	CarTypeMinivan CarType = "MINIVAN"
)

// Car is the full car descriptor as returned by the cars service.
type Car struct {
	CarUID             string  `json:"carUid"`
	Brand              string  `json:"brand"`
	Model              string  `json:"model"`
	RegistrationNumber string  `json:"registrationNumber"`
	Power              *int    `json:"power,omitempty"`
	Price              int64   `json:"price"`
	Type               CarType `json:"type"`
	Available          bool    `json:"available"`
}

// CarInfo is the reduced car descriptor embedded in rental responses and stored
// in the fallback car cache.
type CarInfo struct {
	CarUID             string `json:"carUid"`
	Brand              string `json:"brand"`
	Model              string `json:"model"`
	RegistrationNumber string `json:"registrationNumber"`
}

// FromCar reduces a full Car descriptor to the CarInfo shape used in rental
// responses and cached for fallback lookups.
func FromCar(c Car) CarInfo {
	return CarInfo{
		CarUID:             c.CarUID,
		Brand:              c.Brand,
		Model:              c.Model,
		RegistrationNumber: c.RegistrationNumber,
	}
}

// PaymentInfo is the payment descriptor embedded in rental responses.
type PaymentInfo struct {
	PaymentUID string        `json:"paymentUid"`
	Status     PaymentStatus `json:"status"`
	Price      int64         `json:"price"`
}

// Payment is the full payment descriptor as returned by the payment service.
type Payment struct {
	PaymentUID string        `json:"paymentUid"`
	Status     PaymentStatus `json:"status"`
	Price      int64         `json:"price"`
}

// Rental is the full rental record as returned by the rental service.
type Rental struct {
	RentalUID  string       `json:"rentalUid"`
	Username   string       `json:"username"`
	PaymentUID string       `json:"paymentUid"`
	CarUID     string       `json:"carUid"`
	Status     RentalStatus `json:"status"`
	DateFrom   string       `json:"dateFrom"`
	DateTo     string       `json:"dateTo"`
}

// CreateRentalRequest is the client-facing body of POST /api/v1/rental.
type CreateRentalRequest struct {
	CarUID   string `json:"carUid" validate:"required"`
	DateFrom string `json:"dateFrom" validate:"required,datetime=2006-01-02"`
	DateTo   string `json:"dateTo" validate:"required,datetime=2006-01-02"`
}

// CreateRentalResponse is the client-facing response of a successful rental creation.
type CreateRentalResponse struct {
	RentalUID string       `json:"rentalUid"`
	Status    RentalStatus `json:"status"`
	CarUID    string       `json:"carUid"`
	DateFrom  string       `json:"dateFrom"`
	DateTo    string       `json:"dateTo"`
	Payment   PaymentInfo  `json:"payment"`
}

// RentalResponse is the client-facing composed view of a rental used by the read
// aggregator.
type RentalResponse struct {
	RentalUID string       `json:"rentalUid"`
	Status    RentalStatus `json:"status"`
	DateFrom  string       `json:"dateFrom"`
	DateTo    string       `json:"dateTo"`
	Car       CarInfo      `json:"car"`
	Payment   PaymentInfo  `json:"payment"`
}

// CarPage is the paginated response of GET /api/v1/cars.
type CarPage struct {
	Page          int   `json:"page"`
	PageSize      int   `json:"pageSize"`
	TotalElements int   `json:"totalElements"`
	Items         []Car `json:"items"`
}

// ParseDate parses an ISO-8601 date-only layout (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// RentalDays computes the whole-day span between two ISO dates.
// A same-day rental yields 0.
func RentalDays(dateFrom, dateTo string) (int64, error) {
	from, err := ParseDate(dateFrom)
	if err != nil {
		return 0, err
	}
	to, err := ParseDate(dateTo)
	if err != nil {
		return 0, err
	}
	d := to.Sub(from)
	days := int64(d.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, nil
}
