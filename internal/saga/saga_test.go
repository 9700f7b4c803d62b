package saga_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrental/gateway/internal/breaker"
	"github.com/carrental/gateway/internal/carcache"
	"github.com/carrental/gateway/internal/config"
	"github.com/carrental/gateway/internal/domain"
	"github.com/carrental/gateway/internal/retryqueue"
	"github.com/carrental/gateway/internal/saga"
	"github.com/carrental/gateway/internal/upstream"
)

func testConfig() config.Config {
	return config.Config{
		CarsBreakerFailureThreshold:    5,
		RentalBreakerFailureThreshold:  5,
		PaymentBreakerFailureThreshold: 5,
		CarsBreakerOpenTimeout:         time.Minute,
		RentalBreakerOpenTimeout:       time.Minute,
		PaymentBreakerOpenTimeout:      time.Minute,
	}
}

func newCoordinator(carsURL, paymentURL, rentalURL string) *saga.Coordinator {
	cars := upstream.New("cars_service", carsURL, time.Second)
	payment := upstream.New("payment_service", paymentURL, time.Second)
	rental := upstream.New("rental_service", rentalURL, time.Second)
	return saga.New(cars, payment, rental, breaker.NewRegistry(), carcache.New(), retryqueue.New(time.Hour, 5), testConfig())
}

// TestCreateRental_HappyPath covers the straight-through creation path: car
// found and available, payment succeeds, reservation succeeds, rental created.
func TestCreateRental_HappyPath(t *testing.T) {
	cars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(domain.Car{CarUID: "U1", Price: 3500})
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer cars.Close()

	payment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Payment{PaymentUID: "P1", Status: domain.PaymentPaid, Price: 7000})
	}))
	defer payment.Close()

	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Rental{RentalUID: "R1", Status: domain.RentalInProgress})
	}))
	defer rental.Close()

	c := newCoordinator(cars.URL, payment.URL, rental.URL)
	resp, err := c.CreateRental(context.Background(), "alice", domain.CreateRentalRequest{
		CarUID: "U1", DateFrom: "2021-10-08", DateTo: "2021-10-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "U1", resp.CarUID)
	assert.Equal(t, domain.RentalInProgress, resp.Status)
	assert.EqualValues(t, 7000, resp.Payment.Price)
}

// TestCreateRental_CarNotFound asserts that a missing car short-circuits the
// whole saga: no payment, availability, or rental calls are issued.
func TestCreateRental_CarNotFound(t *testing.T) {
	var paymentCalls, rentalCalls, availabilityCalls int32

	cars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			atomic.AddInt32(&availabilityCalls, 1)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer cars.Close()
	payment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&paymentCalls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer payment.Close()
	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&rentalCalls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer rental.Close()

	c := newCoordinator(cars.URL, payment.URL, rental.URL)
	_, err := c.CreateRental(context.Background(), "alice", domain.CreateRentalRequest{
		CarUID: "missing", DateFrom: "2021-10-08", DateTo: "2021-10-10",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(0), atomic.LoadInt32(&paymentCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&availabilityCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&rentalCalls))
}

// TestCreateRental_PaymentTransportFailure covers the uniform 503 outage path.
func TestCreateRental_PaymentTransportFailure(t *testing.T) {
	cars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Car{CarUID: "U1", Price: 100})
	}))
	defer cars.Close()
	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer rental.Close()

	c := newCoordinator(cars.URL, "http://127.0.0.1:1", rental.URL)
	_, err := c.CreateRental(context.Background(), "alice", domain.CreateRentalRequest{
		CarUID: "U1", DateFrom: "2021-10-08", DateTo: "2021-10-10",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTransport)
}

// TestCreateRental_ReserveFails_CompensatesPayment asserts that when the
// availability reservation fails, DELETE /payment/{paymentUid} is invoked
// exactly once to undo the payment already taken.
func TestCreateRental_ReserveFails_CompensatesPayment(t *testing.T) {
	var paymentDeletes int32

	cars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(domain.Car{CarUID: "U1", Price: 100})
			return
		}
		w.WriteHeader(http.StatusInternalServerError) // PATCH availability fails
	}))
	defer cars.Close()

	payment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&paymentDeletes, 1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.Payment{PaymentUID: "P1", Status: domain.PaymentPaid, Price: 200})
	}))
	defer payment.Close()

	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer rental.Close()

	c := newCoordinator(cars.URL, payment.URL, rental.URL)
	_, err := c.CreateRental(context.Background(), "alice", domain.CreateRentalRequest{
		CarUID: "U1", DateFrom: "2021-10-08", DateTo: "2021-10-09",
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&paymentDeletes))
}

// TestCreateRental_RentalFails_CompensatesBoth asserts that when the final
// rental-creation call fails, both the availability release PATCH and the
// payment DELETE run exactly once.
func TestCreateRental_RentalFails_CompensatesBoth(t *testing.T) {
	var carReleases, paymentDeletes int32

	cars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(domain.Car{CarUID: "U1", Price: 100})
		case r.Method == http.MethodPatch:
			atomic.AddInt32(&carReleases, 1)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer cars.Close()

	payment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&paymentDeletes, 1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.Payment{PaymentUID: "P1", Status: domain.PaymentPaid, Price: 200})
	}))
	defer payment.Close()

	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer rental.Close()

	c := newCoordinator(cars.URL, payment.URL, rental.URL)
	_, err := c.CreateRental(context.Background(), "alice", domain.CreateRentalRequest{
		CarUID: "U1", DateFrom: "2021-10-08", DateTo: "2021-10-09",
	})
	require.Error(t, err)
	// 2 PATCH calls total: reserve (available=false) + release compensation (available=true).
	assert.Equal(t, int32(2), atomic.LoadInt32(&carReleases))
	assert.Equal(t, int32(1), atomic.LoadInt32(&paymentDeletes))
}

// TestCancelRental_QueuesFailedCompensations asserts that a cancel succeeds
// even when the in-line compensations fail, and those failures are handed
// over to the retry queue rather than surfaced to the caller.
func TestCancelRental_QueuesFailedCompensations(t *testing.T) {
	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(domain.Rental{RentalUID: "R1", CarUID: "U1", PaymentUID: "P1", Status: domain.RentalInProgress})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer rental.Close()
	cars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer cars.Close()
	payment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer payment.Close()

	retry := retryqueue.New(time.Hour, 5)
	c := saga.New(
		upstream.New("cars_service", cars.URL, time.Second),
		upstream.New("payment_service", payment.URL, time.Second),
		upstream.New("rental_service", rental.URL, time.Second),
		breaker.NewRegistry(), carcache.New(), retry, testConfig())
	err := c.CancelRental(context.Background(), "alice", "R1")
	assert.NoError(t, err)
	// One release-car task and one cancel-payment task.
	assert.Equal(t, 2, retry.Len())
}

// TestCancelRental_RentalServiceDown_ReturnsInternal asserts that a failed
// cancel at the rental service surfaces as a plain internal error, not the
// uniform transport-outage error used during creation.
func TestCancelRental_RentalServiceDown_ReturnsInternal(t *testing.T) {
	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(domain.Rental{RentalUID: "R1", CarUID: "U1", PaymentUID: "P1", Status: domain.RentalInProgress})
		case http.MethodDelete:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer rental.Close()

	c := newCoordinator("http://127.0.0.1:1", "http://127.0.0.1:1", rental.URL)
	err := c.CancelRental(context.Background(), "alice", "R1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotErrorIs(t, err, domain.ErrUpstreamTransport)
}

// TestFinishRental_RentalServiceDown_ReturnsInternal is the finish-flow
// counterpart of TestCancelRental_RentalServiceDown_ReturnsInternal.
func TestFinishRental_RentalServiceDown_ReturnsInternal(t *testing.T) {
	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(domain.Rental{RentalUID: "R1", CarUID: "U1", PaymentUID: "P1", Status: domain.RentalInProgress})
		case http.MethodPost:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer rental.Close()

	c := newCoordinator("http://127.0.0.1:1", "http://127.0.0.1:1", rental.URL)
	err := c.FinishRental(context.Background(), "alice", "R1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotErrorIs(t, err, domain.ErrUpstreamTransport)
}

// TestFinishRental_NoPaymentTouch confirms finish never touches payment.
func TestFinishRental_NoPaymentTouch(t *testing.T) {
	var paymentCalls int32

	rental := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(domain.Rental{RentalUID: "R1", CarUID: "U1", PaymentUID: "P1", Status: domain.RentalInProgress})
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer rental.Close()
	cars := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer cars.Close()
	payment := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&paymentCalls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer payment.Close()

	c := newCoordinator(cars.URL, payment.URL, rental.URL)
	err := c.FinishRental(context.Background(), "alice", "R1")
	assert.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&paymentCalls))
}
