// Package aggregator joins rental records with car and payment details via
// fan-out, tolerating partial upstream failure through per-upstream breakers
// and fallbacks.
package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/carrental/gateway/internal/breaker"
	"github.com/carrental/gateway/internal/carcache"
	"github.com/carrental/gateway/internal/config"
	"github.com/carrental/gateway/internal/domain"
	"github.com/carrental/gateway/internal/upstream"
)

// Aggregator composes RentalResponse views by joining the rental, car, and
// payment services. It holds no mutable state of its own.
type Aggregator struct {
	cars    *upstream.Client
	payment *upstream.Client
	rental  *upstream.Client

	carsBreaker    *breaker.Breaker
	paymentBreaker *breaker.Breaker
	rentalBreaker  *breaker.Breaker

	cache *carcache.Cache
}

// New constructs an Aggregator, resolving its three breakers from the registry.
func New(cars, payment, rental *upstream.Client, breakers *breaker.Registry, cache *carcache.Cache, cfg config.Config) *Aggregator {
	byName := make(map[string]config.BreakerSettings, 3)
	for _, b := range cfg.Breakers() {
		byName[b.Name] = b
	}
	get := func(name string) *breaker.Breaker {
		s := byName[name]
		return breakers.Get(name, s.FailureThreshold, s.OpenTimeout)
	}
	return &Aggregator{
		cars:           cars,
		payment:        payment,
		rental:         rental,
		carsBreaker:    get("cars_service"),
		paymentBreaker: get("payment_service"),
		rentalBreaker:  get("rental_service"),
		cache:          cache,
	}
}

// ListRentals fetches every rental owned by username (rental breaker,
// fallback: empty list) and fans out car + payment detail for each.
func (a *Aggregator) ListRentals(ctx context.Context, username string) ([]domain.RentalResponse, error) {
	rentals, err := breaker.Call[[]domain.Rental](a.rentalBreaker, func() ([]domain.Rental, error) {
		var out []domain.Rental
		path := fmt.Sprintf("/api/v1/rental?username=%s", username)
		_, e := a.rental.Do(ctx, http.MethodGet, path, nil, &out)
		return out, e
	}, func() ([]domain.Rental, error) {
		return []domain.Rental{}, nil
	})
	if err != nil {
		return nil, err
	}

	responses := make([]domain.RentalResponse, len(rentals))
	var wg sync.WaitGroup
	for i, rental := range rentals {
		wg.Add(1)
		go func(i int, rental domain.Rental) {
			defer wg.Done()
			responses[i] = a.compose(ctx, rental)
		}(i, rental)
	}
	wg.Wait()
	return responses, nil
}

// GetRental fetches a single rental (rental breaker, no fallback — 404 must
// propagate) and joins car + payment detail.
func (a *Aggregator) GetRental(ctx context.Context, username, rentalUID string) (domain.RentalResponse, error) {
	var status int
	rental, err := breaker.Call[domain.Rental](a.rentalBreaker, func() (domain.Rental, error) {
		var out domain.Rental
		path := fmt.Sprintf("/api/v1/rental/%s?username=%s", rentalUID, username)
		st, e := a.rental.Do(ctx, http.MethodGet, path, nil, &out)
		status = st
		return out, e
	}, nil)
	if err != nil {
		if status == http.StatusNotFound {
			return domain.RentalResponse{}, domain.ErrNotFound
		}
		return domain.RentalResponse{}, err
	}
	return a.compose(ctx, rental), nil
}

// compose fans out the car and payment fetches for one rental, concurrently.
// Ordering between the two fetches is not observable to the caller.
func (a *Aggregator) compose(ctx context.Context, rental domain.Rental) domain.RentalResponse {
	var wg sync.WaitGroup
	var car domain.CarInfo
	var payment domain.PaymentInfo

	wg.Add(2)
	go func() {
		defer wg.Done()
		car = a.fetchCar(ctx, rental.CarUID)
	}()
	go func() {
		defer wg.Done()
		payment = a.fetchPayment(ctx, rental.PaymentUID)
	}()
	wg.Wait()

	return domain.RentalResponse{
		RentalUID: rental.RentalUID,
		Status:    rental.Status,
		DateFrom:  rental.DateFrom,
		DateTo:    rental.DateTo,
		Car:       car,
		Payment:   payment,
	}
}

func (a *Aggregator) fetchCar(ctx context.Context, carUID string) domain.CarInfo {
	// fallback never errors, so breaker.Call always returns a usable CarInfo here.
	info, _ := breaker.Call[domain.CarInfo](a.carsBreaker, func() (domain.CarInfo, error) {
		var full domain.Car
		_, e := a.cars.Do(ctx, http.MethodGet, "/api/v1/cars/"+carUID, nil, &full)
		if e != nil {
			return domain.CarInfo{}, e
		}
		info := domain.FromCar(full)
		a.cache.Put(info)
		return info, nil
	}, func() (domain.CarInfo, error) {
		return a.cache.GetOrEmpty(carUID), nil
	})
	return info
}

func (a *Aggregator) fetchPayment(ctx context.Context, paymentUID string) domain.PaymentInfo {
	// fallback never errors, so breaker.Call always returns a usable PaymentInfo here.
	info, _ := breaker.Call[domain.PaymentInfo](a.paymentBreaker, func() (domain.PaymentInfo, error) {
		var full domain.Payment
		_, e := a.payment.Do(ctx, http.MethodGet, "/api/v1/payment/"+paymentUID, nil, &full)
		if e != nil {
			return domain.PaymentInfo{}, e
		}
		return domain.PaymentInfo{PaymentUID: full.PaymentUID, Status: full.Status, Price: full.Price}, nil
	}, func() (domain.PaymentInfo, error) {
		return domain.PaymentInfo{PaymentUID: paymentUID, Status: domain.PaymentPaid, Price: 0}, nil
	})
	return info
}
