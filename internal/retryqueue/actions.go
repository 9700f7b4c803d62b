package retryqueue

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carrental/gateway/internal/upstream"
)

// ReleaseCarAction reverts a car's availability flag to true. It is submitted
// when a rental is canceled or finished and the in-line car release fails.
// Compensations during rental creation are never submitted to the queue.
type ReleaseCarAction struct {
	Cars   *upstream.Client
	CarUID string
}

func (a ReleaseCarAction) Kind() string { return "release_car" }

func (a ReleaseCarAction) Apply(ctx context.Context) error {
	path := fmt.Sprintf("/api/v1/cars/%s/availability?available=true", a.CarUID)
	_, err := a.Cars.Do(ctx, http.MethodPatch, path, nil, nil)
	return err
}

// CancelPaymentAction cancels the payment of a canceled rental when the
// in-line payment cancellation fails.
type CancelPaymentAction struct {
	Payment    *upstream.Client
	PaymentUID string
}

func (a CancelPaymentAction) Kind() string { return "cancel_payment" }

func (a CancelPaymentAction) Apply(ctx context.Context) error {
	path := fmt.Sprintf("/api/v1/payment/%s", a.PaymentUID)
	_, err := a.Payment.Do(ctx, http.MethodDelete, path, nil, nil)
	return err
}
