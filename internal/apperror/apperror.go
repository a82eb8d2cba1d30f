package apperror

import "errors"

// Kind describes a stable error category that can be mapped to HTTP status codes.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindCouponRejected Kind = "coupon_rejected"
	KindDuplicate      Kind = "duplicate"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
)

// Reason is a machine-readable code that clients can use to render a precise message.
type Reason string

const (
	ReasonInvalidQuantity     Reason = "invalid_quantity"
	ReasonUnknownProduct      Reason = "unknown_product"
	ReasonOutOfStock          Reason = "out_of_stock"
	ReasonCartNotFound        Reason = "cart_not_found"
	ReasonItemNotFound        Reason = "item_not_found"
	ReasonCouponNotFound      Reason = "coupon_not_found"
	ReasonCouponInactive      Reason = "coupon_inactive"
	ReasonCouponOutsideWindow Reason = "coupon_outside_window"
	ReasonMinSubtotalNotMet   Reason = "min_subtotal_not_met"
	ReasonCartNotEligible     Reason = "cart_not_eligible"
	ReasonUsageLimitReached   Reason = "usage_limit_reached"
	ReasonUserLimitReached    Reason = "user_limit_reached"
	ReasonZeroDiscount        Reason = "zero_discount"
	ReasonDuplicateRedemption Reason = "duplicate_redemption"
)

// Error is a typed error with a stable Kind and a human-readable message.
// Msg should be safe to return to clients for every kind except internal failures.
type Error struct {
	Kind   Kind
	Reason Reason
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Reason != "" {
		return string(e.Reason)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WithReason создаёт ошибку с машинно-читаемой причиной.
func WithReason(kind Kind, reason Reason, msg string, err error) error {
	return &Error{Kind: kind, Reason: reason, Msg: msg, Err: err}
}

func NotFound(msg string, err error) error     { return New(KindNotFound, msg, err) }
func Validation(msg string, err error) error   { return New(KindValidation, msg, err) }
func Conflict(msg string, err error) error     { return New(KindConflict, msg, err) }
func Unauthorized(msg string, err error) error { return New(KindUnauthorized, msg, err) }
func Forbidden(msg string, err error) error    { return New(KindForbidden, msg, err) }

// CouponRejected сообщает, что купон не прошёл одну из проверок применимости.
func CouponRejected(reason Reason, msg string) error {
	return WithReason(KindCouponRejected, reason, msg, nil)
}

// Duplicate сообщает о повторной записи погашения для той же пары заказ/купон.
func Duplicate(msg string, err error) error {
	return WithReason(KindDuplicate, ReasonDuplicateRedemption, msg, err)
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// ReasonOf возвращает причину ошибки или пустую строку.
func ReasonOf(err error) Reason {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Reason
}
