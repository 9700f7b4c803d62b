// Package saga implements the rental-creation transaction (fetch car →
// create payment → reserve car → create rental) plus the cancel and finish
// flows that unwind it, with best-effort compensations.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/carrental/gateway/internal/breaker"
	"github.com/carrental/gateway/internal/carcache"
	"github.com/carrental/gateway/internal/config"
	"github.com/carrental/gateway/internal/domain"
	"github.com/carrental/gateway/internal/observability"
	"github.com/carrental/gateway/internal/retryqueue"
	"github.com/carrental/gateway/internal/upstream"
)

// Coordinator sequences the rental-creation transaction and the cancel/finish
// unwind flows. It is safe for concurrent use: it holds no mutable state of
// its own, only shared references to the breaker registry, the car cache,
// and the retry queue.
type Coordinator struct {
	cars    *upstream.Client
	payment *upstream.Client
	rental  *upstream.Client

	carsBreaker    *breaker.Breaker
	paymentBreaker *breaker.Breaker
	rentalBreaker  *breaker.Breaker

	cache *carcache.Cache
	retry *retryqueue.Queue
}

// New constructs a Coordinator, resolving its three breakers up front from
// the registry using the configured thresholds.
func New(cars, payment, rental *upstream.Client, breakers *breaker.Registry, cache *carcache.Cache, retry *retryqueue.Queue, cfg config.Config) *Coordinator {
	byName := make(map[string]config.BreakerSettings, 3)
	for _, b := range cfg.Breakers() {
		byName[b.Name] = b
	}
	get := func(name string) *breaker.Breaker {
		s := byName[name]
		return breakers.Get(name, s.FailureThreshold, s.OpenTimeout)
	}
	return &Coordinator{
		cars:           cars,
		payment:        payment,
		rental:         rental,
		carsBreaker:    get("cars_service"),
		paymentBreaker: get("payment_service"),
		rentalBreaker:  get("rental_service"),
		cache:          cache,
		retry:          retry,
	}
}

// classify re-labels a breaker-open failure as an upstream transport failure,
// so that the HTTP surface can map both to the same uniform outage response.
// This applies only to rental creation: cancel and finish use
// classifyRentalFailure instead.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrBreakerOpen) {
		return fmt.Errorf("breaker open: %w", domain.ErrUpstreamTransport)
	}
	return err
}

// classifyRentalFailure maps any rental-service failure encountered while
// fetching, canceling, or finishing a rental to a plain internal error.
// Unlike rental creation, cancel and finish don't get the uniform transport-
// outage response: a rental-service failure here is a 500, whether it came
// from a live transport error or a breaker that's already open.
func classifyRentalFailure(err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrInternal, err)
}

// CreateRental executes the five-step rental-creation transaction.
func (s *Coordinator) CreateRental(ctx context.Context, username string, req domain.CreateRentalRequest) (domain.CreateRentalResponse, error) {
	var zero domain.CreateRentalResponse

	// Step 1: fetch car directly, no breaker — a missing car is a 404, never masked.
	var car domain.Car
	status, err := s.cars.Do(ctx, http.MethodGet, "/api/v1/cars/"+req.CarUID, nil, &car)
	if err != nil {
		if status == http.StatusNotFound {
			return zero, domain.ErrNotFound
		}
		return zero, err
	}
	s.cache.Put(domain.FromCar(car))

	// Step 2: compute price.
	days, err := domain.RentalDays(req.DateFrom, req.DateTo)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	totalPrice := days * car.Price

	// Step 3: create payment.
	var payment domain.Payment
	_, err = breaker.Call[struct{}](s.paymentBreaker, func() (struct{}, error) {
		_, e := s.payment.Do(ctx, http.MethodPost, "/api/v1/payment", map[string]any{"price": totalPrice}, &payment)
		return struct{}{}, e
	}, nil)
	if err != nil {
		return zero, classify(err)
	}

	// Step 4: reserve car. On failure, compensate by deleting the payment.
	_, err = breaker.Call[struct{}](s.carsBreaker, func() (struct{}, error) {
		path := fmt.Sprintf("/api/v1/cars/%s/availability?available=false", req.CarUID)
		_, e := s.cars.Do(ctx, http.MethodPatch, path, nil, nil)
		return struct{}{}, e
	}, nil)
	if err != nil {
		s.compensateDeletePayment(ctx, payment.PaymentUID)
		return zero, classify(err)
	}

	// Step 5: create rental. On failure, compensate by releasing the car and
	// deleting the payment.
	var rental domain.Rental
	_, err = breaker.Call[struct{}](s.rentalBreaker, func() (struct{}, error) {
		body := map[string]any{
			"username":   username,
			"paymentUid": payment.PaymentUID,
			"carUid":     req.CarUID,
			"dateFrom":   req.DateFrom,
			"dateTo":     req.DateTo,
		}
		_, e := s.rental.Do(ctx, http.MethodPost, "/api/v1/rental", body, &rental)
		return struct{}{}, e
	}, nil)
	if err != nil {
		s.compensateReleaseCar(ctx, req.CarUID)
		s.compensateDeletePayment(ctx, payment.PaymentUID)
		return zero, classify(err)
	}

	return domain.CreateRentalResponse{
		RentalUID: rental.RentalUID,
		Status:    rental.Status,
		CarUID:    req.CarUID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Payment: domain.PaymentInfo{
			PaymentUID: payment.PaymentUID,
			Status:     payment.Status,
			Price:      payment.Price,
		},
	}, nil
}

// CancelRental fetches the rental (404 propagates), deletes it at the rental
// service, and then attempts to release the car and cancel the payment,
// handing either compensation to the retry queue on failure.
func (s *Coordinator) CancelRental(ctx context.Context, username, rentalUID string) error {
	rental, err := s.fetchRental(ctx, username, rentalUID)
	if err != nil {
		return err
	}

	_, err = breaker.Call[struct{}](s.rentalBreaker, func() (struct{}, error) {
		path := fmt.Sprintf("/api/v1/rental/%s?username=%s", rentalUID, username)
		_, e := s.rental.Do(ctx, http.MethodDelete, path, nil, nil)
		return struct{}{}, e
	}, nil)
	if err != nil {
		return classifyRentalFailure(err)
	}

	s.compensateOrQueueReleaseCar(ctx, rental.CarUID)
	s.compensateOrQueueCancelPayment(ctx, rental.PaymentUID)
	return nil
}

// FinishRental fetches the rental (404 propagates), marks it finished at the
// rental service, and releases the car. Payment is left untouched: finishing
// a rental is not a refund.
func (s *Coordinator) FinishRental(ctx context.Context, username, rentalUID string) error {
	rental, err := s.fetchRental(ctx, username, rentalUID)
	if err != nil {
		return err
	}

	_, err = breaker.Call[struct{}](s.rentalBreaker, func() (struct{}, error) {
		path := fmt.Sprintf("/api/v1/rental/%s/finish?username=%s", rentalUID, username)
		_, e := s.rental.Do(ctx, http.MethodPost, path, nil, nil)
		return struct{}{}, e
	}, nil)
	if err != nil {
		return classifyRentalFailure(err)
	}

	s.compensateOrQueueReleaseCar(ctx, rental.CarUID)
	return nil
}

func (s *Coordinator) fetchRental(ctx context.Context, username, rentalUID string) (domain.Rental, error) {
	var rental domain.Rental
	var status int
	_, err := breaker.Call[struct{}](s.rentalBreaker, func() (struct{}, error) {
		path := fmt.Sprintf("/api/v1/rental/%s?username=%s", rentalUID, username)
		st, e := s.rental.Do(ctx, http.MethodGet, path, nil, &rental)
		status = st
		return struct{}{}, e
	}, nil)
	if err != nil {
		if status == http.StatusNotFound {
			return domain.Rental{}, domain.ErrNotFound
		}
		return domain.Rental{}, classifyRentalFailure(err)
	}
	return rental, nil
}

// compensateDeletePayment is the in-line, direct (no breaker) compensation
// invoked during rental creation. Creation compensations are best-effort and
// are never handed to the retry queue.
func (s *Coordinator) compensateDeletePayment(ctx context.Context, paymentUID string) {
	if paymentUID == "" {
		return
	}
	path := fmt.Sprintf("/api/v1/payment/%s", paymentUID)
	if _, err := s.payment.Do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		slog.Error("compensation failed: delete payment", slog.String("payment_uid", paymentUID), slog.Any("error", err))
	}
}

// compensateReleaseCar is the in-line, direct (no breaker) compensation
// invoked during rental creation.
func (s *Coordinator) compensateReleaseCar(ctx context.Context, carUID string) {
	path := fmt.Sprintf("/api/v1/cars/%s/availability?available=true", carUID)
	if _, err := s.cars.Do(ctx, http.MethodPatch, path, nil, nil); err != nil {
		slog.Error("compensation failed: release car", slog.String("car_uid", carUID), slog.Any("error", err))
	}
}

// compensateOrQueueReleaseCar is used by cancel/finish: the compensation is
// attempted in-line, and handed to the retry queue on failure.
func (s *Coordinator) compensateOrQueueReleaseCar(ctx context.Context, carUID string) {
	path := fmt.Sprintf("/api/v1/cars/%s/availability?available=true", carUID)
	if _, err := s.cars.Do(ctx, http.MethodPatch, path, nil, nil); err != nil {
		taskID := s.retry.Submit(retryqueue.ReleaseCarAction{Cars: s.cars, CarUID: carUID})
		slog.Warn("compensation queued for retry: release car",
			slog.String("car_uid", carUID), slog.String("task_id", taskID), slog.Any("error", err))
		observability.RetryQueueDepth.Set(float64(s.retry.Len()))
	}
}

// compensateOrQueueCancelPayment is used by cancel: the compensation is
// attempted in-line, and handed to the retry queue on failure.
func (s *Coordinator) compensateOrQueueCancelPayment(ctx context.Context, paymentUID string) {
	if paymentUID == "" {
		return
	}
	path := fmt.Sprintf("/api/v1/payment/%s", paymentUID)
	if _, err := s.payment.Do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		taskID := s.retry.Submit(retryqueue.CancelPaymentAction{Payment: s.payment, PaymentUID: paymentUID})
		slog.Warn("compensation queued for retry: cancel payment",
			slog.String("payment_uid", paymentUID), slog.String("task_id", taskID), slog.Any("error", err))
		observability.RetryQueueDepth.Set(float64(s.retry.Len()))
	}
}
