package coupon

import "errors"

var (
	ErrUnauthorized          = errors.New("coupon: unauthorized")
	ErrInsufficientLiquidity = errors.New("coupon: insufficient free liquidity to reserve")
	ErrInsufficientFreeFunds = errors.New("coupon: withdrawal exceeds free balance")
	ErrDuplicateCoupon       = errors.New("coupon: coupon already exists")
	ErrInvalidAmount         = errors.New("coupon: amount must be positive")
	ErrCouponNotFound        = errors.New("coupon: coupon not found")
	ErrAlreadyRedeemed       = errors.New("coupon: coupon already redeemed")
	ErrAlreadyBurned         = errors.New("coupon: coupon already burned")
	ErrInvalidSignature      = errors.New("coupon: signature verification failed")
	ErrTransferFailed        = errors.New("coupon: transfer failed")
)
