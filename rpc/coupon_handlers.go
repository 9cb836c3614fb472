package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"ocex/crypto"
	"ocex/native/coupon"
)

const (
	codeCouponInvalidParams = -32061
	codeCouponNotFound      = -32062
	codeCouponUnauthorized  = -32063
	codeCouponConflict      = -32064
	codeCouponLiquidity     = -32065
	codeCouponSignature     = -32066
	codeCouponTransfer      = -32067
	codeCouponInternal      = -32068
)

type couponSpecJSON struct {
	PublicKey string `json:"publicKey"`
	Amount    string `json:"amount"`
}

type addCouponParams struct {
	Caller    string `json:"caller"`
	PublicKey string `json:"publicKey"`
	Amount    string `json:"amount"`
}

type addCouponsParams struct {
	Caller  string           `json:"caller"`
	Coupons []couponSpecJSON `json:"coupons"`
}

type burnCouponsParams struct {
	Caller     string   `json:"caller"`
	PublicKeys []string `json:"publicKeys"`
}

type checkCouponParams struct {
	PublicKey string `json:"publicKey"`
}

type activateCouponParams struct {
	Receiver  string `json:"receiver"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type withdrawFreeParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

type transferOwnershipParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

type depositParams struct {
	Amount string `json:"amount"`
}

type balanceOfParams struct {
	Address string `json:"address"`
}

type eventsParams struct {
	Limit *int `json:"limit,omitempty"`
}

type okResult struct {
	OK bool `json:"ok"`
}

type checkCouponResult struct {
	Active bool   `json:"active"`
	Amount string `json:"amount"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type addressResult struct {
	Address string `json:"address"`
}

type instanceResult struct {
	InstanceID string `json:"instanceId"`
}

type eventJSON struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddressParam(value string) ([32]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseHexBytes(value string, expected int) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != expected {
		return nil, fmt.Errorf("expected %d bytes, got %d", expected, len(decoded))
	}
	return decoded, nil
}

func parsePublicKeyParam(value string) ([32]byte, error) {
	decoded, err := parseHexBytes(value, 32)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], decoded)
	return out, nil
}

func parseSignatureParam(value string) ([64]byte, error) {
	decoded, err := parseHexBytes(value, 64)
	if err != nil {
		return [64]byte{}, err
	}
	var out [64]byte
	copy(out[:], decoded)
	return out, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func writeInvalidParams(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeCouponInvalidParams, "invalid_params", err.Error())
}

func (s *Server) writeCouponError(w http.ResponseWriter, method string, id interface{}, err error) {
	status := http.StatusInternalServerError
	code := codeCouponInternal
	switch {
	case errors.Is(err, coupon.ErrUnauthorized):
		status, code = http.StatusForbidden, codeCouponUnauthorized
	case errors.Is(err, coupon.ErrCouponNotFound):
		status, code = http.StatusNotFound, codeCouponNotFound
	case errors.Is(err, coupon.ErrDuplicateCoupon),
		errors.Is(err, coupon.ErrAlreadyRedeemed),
		errors.Is(err, coupon.ErrAlreadyBurned):
		status, code = http.StatusConflict, codeCouponConflict
	case errors.Is(err, coupon.ErrInsufficientLiquidity),
		errors.Is(err, coupon.ErrInsufficientFreeFunds):
		status, code = http.StatusConflict, codeCouponLiquidity
	case errors.Is(err, coupon.ErrInvalidAmount):
		status, code = http.StatusBadRequest, codeCouponInvalidParams
	case errors.Is(err, coupon.ErrInvalidSignature):
		status, code = http.StatusBadRequest, codeCouponSignature
	case errors.Is(err, coupon.ErrTransferFailed):
		status, code = http.StatusBadGateway, codeCouponTransfer
	}
	s.metrics.ObserveError(method, fmt.Sprintf("%d", code))
	writeError(w, status, id, code, "coupon_error", err.Error())
}

func (s *Server) handleAddCoupon(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params addCouponParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	publicKey, err := parsePublicKeyParam(params.PublicKey)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.AddCoupon(caller, publicKey, amount); err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleAddCoupons(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params addCouponsParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if len(params.Coupons) == 0 {
		writeInvalidParams(w, req.ID, fmt.Errorf("empty coupon batch"))
		return
	}
	specs := make([]coupon.Spec, 0, len(params.Coupons))
	for _, entry := range params.Coupons {
		publicKey, err := parsePublicKeyParam(entry.PublicKey)
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
		amount, err := parsePositiveBigInt(entry.Amount)
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
		specs = append(specs, coupon.Spec{PublicKey: publicKey, Amount: amount})
	}
	if err := s.node.AddCoupons(caller, specs); err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleBurnCoupons(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params burnCouponsParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if len(params.PublicKeys) == 0 {
		writeInvalidParams(w, req.ID, fmt.Errorf("empty burn batch"))
		return
	}
	publicKeys := make([][32]byte, 0, len(params.PublicKeys))
	for _, entry := range params.PublicKeys {
		publicKey, err := parsePublicKeyParam(entry)
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
		publicKeys = append(publicKeys, publicKey)
	}
	if err := s.node.BurnCoupons(caller, publicKeys); err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleCheckCoupon(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params checkCouponParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	publicKey, err := parsePublicKeyParam(params.PublicKey)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	active, amount, err := s.node.CheckCoupon(publicKey)
	if err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, checkCouponResult{Active: active, Amount: amount.String()})
}

func (s *Server) handleActivateCoupon(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params activateCouponParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	receiver, err := parseAddressParam(params.Receiver)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	publicKey, err := parsePublicKeyParam(params.PublicKey)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	sig, err := parseSignatureParam(params.Signature)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.Activate(receiver, publicKey, sig); err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleGetFreeBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params callerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	free, err := s.node.FreeBalance(caller)
	if err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: free.String()})
}

func (s *Server) handleWithdrawFree(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params withdrawFreeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	to, err := parseAddressParam(params.To)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.WithdrawFree(caller, amount, to); err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleWithdrawAll(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params callerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	swept, err := s.node.WithdrawAll(caller)
	if err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: swept.String()})
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params transferOwnershipParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddressParam(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	newOwner, err := parseAddressParam(params.NewOwner)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.TransferOwnership(caller, newOwner); err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params depositParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.node.Deposit(amount); err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	owner, err := s.node.Owner()
	if err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, addressResult{Address: crypto.NewAddress(crypto.OcexPrefix, owner[:]).String()})
}

func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	id, err := s.node.InstanceID()
	if err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, instanceResult{InstanceID: "0x" + hex.EncodeToString(id[:])})
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceOfParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddressParam(params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		s.writeCouponError(w, req.Method, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: balance.String()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	params := eventsParams{}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
	} else if len(req.Params) > 1 {
		writeInvalidParams(w, req.ID, fmt.Errorf("at most one parameter object expected"))
		return
	}
	feed := s.node.Events()
	if params.Limit != nil && *params.Limit >= 0 && *params.Limit < len(feed) {
		feed = feed[len(feed)-*params.Limit:]
	}
	out := make([]eventJSON, 0, len(feed))
	for _, evt := range feed {
		out = append(out, eventJSON{Type: evt.EventType(), Attributes: evt.Attributes()})
	}
	writeResult(w, req.ID, out)
}
